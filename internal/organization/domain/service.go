package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
)

type Service interface {
	// Create provisions a tenant and makes the creator its org admin in one
	// transaction. New organizations start in trial.
	Create(ctx context.Context, creatorID snowflake.ID, req CreateOrganizationRequest) (*OrganizationResponse, error)
	Get(ctx context.Context, orgID snowflake.ID) (*OrganizationResponse, error)

	Suspend(ctx context.Context, orgID snowflake.ID) error
	Reactivate(ctx context.Context, orgID snowflake.ID) error
	SoftDelete(ctx context.Context, orgID snowflake.ID) error

	CreateTeam(ctx context.Context, orgID snowflake.ID, req CreateTeamRequest) (*TeamResponse, error)
	ListTeams(ctx context.Context, orgID snowflake.ID) ([]TeamResponse, error)

	AddMember(ctx context.Context, orgID snowflake.ID, req AddMemberRequest) (*MemberResponse, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]MemberResponse, error)
	UpdateMemberRole(ctx context.Context, orgID, userID snowflake.ID, role string) error
	AssignMemberTeam(ctx context.Context, orgID, userID, teamID snowflake.ID) error
	RemoveMember(ctx context.Context, orgID, userID snowflake.ID) error

	// TransferMember moves a user to another organization. It is the only
	// sanctioned way a principal's org id changes; the move is serialized
	// through a distributed lock and demotes the member to MEMBER with no
	// team in the destination.
	TransferMember(ctx context.Context, userID, fromOrgID, toOrgID snowflake.ID) error

	// OrganizationState feeds the tenant context builder. A nil state means
	// the organization does not exist.
	OrganizationState(ctx context.Context, orgID snowflake.ID) (*authzdomain.OrganizationState, error)
}

type CreateOrganizationRequest struct {
	Name         string
	SupportEmail string
}

type CreateTeamRequest struct {
	Name string
}

type AddMemberRequest struct {
	UserID snowflake.ID
	TeamID snowflake.ID
	Role   string
}

type OrganizationResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	SupportEmail string     `json:"support_email,omitempty"`
	Status       string     `json:"status"`
	TrialEndsAt  *time.Time `json:"trial_ends_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type TeamResponse struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type MemberResponse struct {
	UserID   string    `json:"user_id"`
	OrgID    string    `json:"org_id"`
	TeamID   string    `json:"team_id,omitempty"`
	Role     string    `json:"role"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidTeam         = errors.New("invalid_team")
	ErrOrgNotFound         = errors.New("organization_not_found")
	ErrTeamNotFound        = errors.New("team_not_found")
	ErrMemberNotFound      = errors.New("member_not_found")
	ErrMemberExists        = errors.New("member_exists")
	ErrSlugTaken           = errors.New("slug_taken")
	ErrTeamNameTaken       = errors.New("team_name_taken")
	ErrLastOrgAdmin        = errors.New("last_org_admin")
	ErrSameOrganization    = errors.New("same_organization")
	ErrTargetOrgNotActive  = errors.New("target_org_not_active")
	ErrTransferInProgress  = errors.New("transfer_in_progress")
)
