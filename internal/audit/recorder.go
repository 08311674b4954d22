package audit

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/sellora/internal/audit/domain"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/observability/metrics"
	"github.com/smallbiznis/sellora/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const denyWriteTimeout = 2 * time.Second

type DenyRecorderParams struct {
	fx.In

	Log     *zap.Logger
	Service auditdomain.Service
	Limiter *ratelimit.DenyAuditLimiter `optional:"true"`
}

// DenyRecorder persists denied authorization decisions as audit rows. The
// limiter sheds audit writes under denial floods; the decisions themselves
// are never affected. Failures are logged and counted, never surfaced.
type DenyRecorder struct {
	log     *zap.Logger
	svc     auditdomain.Service
	limiter *ratelimit.DenyAuditLimiter
}

func NewDenyRecorder(p DenyRecorderParams) authzdomain.DenyRecorder {
	return &DenyRecorder{
		log:     p.Log.Named("audit.deny_recorder"),
		svc:     p.Service,
		limiter: p.Limiter,
	}
}

func (r *DenyRecorder) RecordDeny(ctx context.Context, event authzdomain.DenyEvent) {
	if !r.allow(ctx, event) {
		metrics.Access().IncDenyAudit(metrics.DenyAuditStatusDropped)
		return
	}

	// Detach from request cancellation; an aborted request should still
	// leave its denial on record.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), denyWriteTimeout)
	defer cancel()

	action := auditdomain.ActionAuthorizationDenied
	targetType := string(event.Resource.Entity)
	var targetID *string
	if event.Permission == "" {
		action = auditdomain.ActionAssignmentDenied
		targetType = string(authzdomain.EntityUser)
		if event.Resource.OwnerID != 0 {
			owner := event.Resource.OwnerID.String()
			targetID = &owner
		}
	}

	orgID := event.Principal.OrgID
	if orgID == 0 {
		orgID = event.Resource.OrgID
	}
	actorID := event.Principal.UserID.String()

	err := r.svc.Record(writeCtx, auditdomain.Entry{
		OrgID:      orgIDPointer(orgID),
		ActorType:  string(auditdomain.ActorTypeUser),
		ActorID:    &actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   r.metadata(event),
	})
	if err != nil {
		metrics.Access().IncDenyAudit(metrics.DenyAuditStatusFailed)
		r.log.Warn("denial audit write failed",
			zap.String("reason", string(event.Reason)),
			zap.Error(err),
		)
		return
	}
	metrics.Access().IncDenyAudit(metrics.DenyAuditStatusRecorded)
}

// allow consults the flood-control buckets. Limiter outages fail open so a
// redis blip never silences the audit trail.
func (r *DenyRecorder) allow(ctx context.Context, event authzdomain.DenyEvent) bool {
	if !r.limiter.Enabled() {
		return true
	}

	if event.Principal.OrgID != 0 {
		ok, err := r.limiter.AllowOrg(ctx, event.Principal.OrgID.String())
		if err != nil {
			r.log.Debug("deny audit org bucket unavailable", zap.Error(err))
			return true
		}
		if !ok {
			return false
		}
	}

	ok, err := r.limiter.AllowPrincipal(ctx, event.Principal.UserID.String())
	if err != nil {
		r.log.Debug("deny audit principal bucket unavailable", zap.Error(err))
		return true
	}
	return ok
}

func orgIDPointer(orgID snowflake.ID) *snowflake.ID {
	if orgID == 0 {
		return nil
	}
	return &orgID
}

func (r *DenyRecorder) metadata(event authzdomain.DenyEvent) map[string]any {
	payload := map[string]any{
		"reason": string(event.Reason),
		"role":   string(event.Principal.Role),
	}
	if event.Permission != "" {
		payload["permission"] = string(event.Permission)
	}
	if event.Resource.Entity != "" {
		payload["entity"] = string(event.Resource.Entity)
	}
	if event.Resource.OrgID != 0 {
		payload["resource_org_id"] = event.Resource.OrgID.String()
	}
	if event.Resource.TeamID != 0 {
		payload["resource_team_id"] = event.Resource.TeamID.String()
	}
	if event.Resource.OwnerID != 0 {
		payload["resource_owner_id"] = event.Resource.OwnerID.String()
	}
	if !event.At.IsZero() {
		payload["denied_at"] = event.At.UTC().Format(time.RFC3339)
	}
	return payload
}
