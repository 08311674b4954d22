package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/sellora/internal/audit/domain"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedAudit struct {
	orgID      *snowflake.ID
	actorType  string
	actorID    *string
	action     string
	targetType string
	targetID   *string
	metadata   map[string]any
}

type captureAuditService struct {
	calls []capturedAudit
	err   error
}

func (c *captureAuditService) Record(ctx context.Context, entry auditdomain.Entry) error {
	c.calls = append(c.calls, capturedAudit{
		orgID:      entry.OrgID,
		actorType:  entry.ActorType,
		actorID:    entry.ActorID,
		action:     entry.Action,
		targetType: entry.TargetType,
		targetID:   entry.TargetID,
		metadata:   entry.Metadata,
	})
	return c.err
}

func (c *captureAuditService) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func newTestRecorder(svc auditdomain.Service) authzdomain.DenyRecorder {
	return NewDenyRecorder(DenyRecorderParams{
		Log:     zap.NewNop(),
		Service: svc,
	})
}

func TestRecordDenyWritesAuthorizationAction(t *testing.T) {
	svc := &captureAuditService{}
	recorder := newTestRecorder(svc)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	userID := node.Generate()
	orgID := node.Generate()
	foreignOrg := node.Generate()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	recorder.RecordDeny(context.Background(), authzdomain.DenyEvent{
		Principal: authzdomain.Principal{
			UserID: userID,
			OrgID:  orgID,
			Role:   authzdomain.RoleOrgAdmin,
		},
		Permission: "contact.org.edit",
		Resource: authzdomain.Resource{
			Entity: authzdomain.EntityContact,
			OrgID:  foreignOrg,
		},
		Reason: authzdomain.ReasonOrganizationMismatch,
		At:     at,
	})

	require.Len(t, svc.calls, 1)
	call := svc.calls[0]
	assert.Equal(t, auditdomain.ActionAuthorizationDenied, call.action)
	assert.Equal(t, string(auditdomain.ActorTypeUser), call.actorType)
	require.NotNil(t, call.actorID)
	assert.Equal(t, userID.String(), *call.actorID)
	require.NotNil(t, call.orgID)
	assert.Equal(t, orgID, *call.orgID)
	assert.Equal(t, "contact", call.targetType)
	assert.Nil(t, call.targetID)

	assert.Equal(t, "contact.org.edit", call.metadata["permission"])
	assert.Equal(t, string(authzdomain.ReasonOrganizationMismatch), call.metadata["reason"])
	assert.Equal(t, foreignOrg.String(), call.metadata["resource_org_id"])
	assert.Equal(t, "2026-03-01T12:00:00Z", call.metadata["denied_at"])
}

func TestRecordDenyAssignmentTargetsOwner(t *testing.T) {
	svc := &captureAuditService{}
	recorder := newTestRecorder(svc)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	userID := node.Generate()
	orgID := node.Generate()
	target := node.Generate()

	recorder.RecordDeny(context.Background(), authzdomain.DenyEvent{
		Principal: authzdomain.Principal{
			UserID: userID,
			OrgID:  orgID,
			Role:   authzdomain.RoleMember,
		},
		Resource: authzdomain.Resource{
			OrgID:   orgID,
			OwnerID: target,
		},
		Reason: authzdomain.ReasonAssignmentNotPermitted,
		At:     time.Now(),
	})

	require.Len(t, svc.calls, 1)
	call := svc.calls[0]
	assert.Equal(t, auditdomain.ActionAssignmentDenied, call.action)
	assert.Equal(t, "user", call.targetType)
	require.NotNil(t, call.targetID)
	assert.Equal(t, target.String(), *call.targetID)
	assert.NotContains(t, call.metadata, "permission")
}

func TestRecordDenySwallowsWriteFailure(t *testing.T) {
	svc := &captureAuditService{err: errors.New("insert failed")}
	recorder := newTestRecorder(svc)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	// Must not panic or surface the repository error.
	recorder.RecordDeny(context.Background(), authzdomain.DenyEvent{
		Principal: authzdomain.Principal{
			UserID: node.Generate(),
			OrgID:  node.Generate(),
			Role:   authzdomain.RoleMember,
		},
		Permission: "contact.self.view",
		Resource:   authzdomain.Resource{Entity: authzdomain.EntityContact},
		Reason:     authzdomain.ReasonRoleLacksPermission,
		At:         time.Now(),
	})

	assert.Len(t, svc.calls, 1)
}
