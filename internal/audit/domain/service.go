package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sellora/pkg/db/pagination"
)

// Action names recorded by the access engine. Features append their own
// action strings; these are only the ones this package itself emits.
const (
	ActionAuthorizationDenied = "authorization.denied"
	ActionAssignmentDenied    = "authorization.assignment_denied"
	ActionInvariantBreach     = "authorization.invariant_breach"
)

// Entry is one audit event as the caller hands it over. Fields left empty
// are filled from the request context where possible: the organization from
// the active tenant, the actor from the authenticated principal.
type Entry struct {
	OrgID      *snowflake.ID
	ActorType  string
	ActorID    *string
	Action     string
	TargetType string
	TargetID   *string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrInvalidTimeRange    = errors.New("invalid_time_range")
	ErrInvalidAction       = errors.New("invalid_action")
)
