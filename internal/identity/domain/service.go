package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	ChangePassword(ctx context.Context, userID snowflake.ID, newPassword string) error
	GetUser(ctx context.Context, userID snowflake.ID) (*User, error)

	// ResolvePrincipal re-derives the caller's org, team and role from the
	// membership row on every call. Results are never cached and never read
	// from the session, so a role change or transfer takes effect on the
	// next request. Missing or inactive memberships orphan the principal;
	// role strings outside the closed set fail with ErrInvalidRole.
	ResolvePrincipal(ctx context.Context, userID snowflake.ID) (authzdomain.Principal, error)
}

type CreateUserRequest struct {
	Email       string
	Password    string
	DisplayName string
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	User      *User
	RawToken  string
	ExpiresAt time.Time
	SessionID snowflake.ID
}
