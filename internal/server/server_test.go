package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/sellora/internal/audit/domain"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/config"
	identitydomain "github.com/smallbiznis/sellora/internal/identity/domain"
	"github.com/smallbiznis/sellora/internal/identity/session"
	"go.uber.org/zap"
)

type fakeIdentityService struct {
	loginFn            func(req identitydomain.LoginRequest) (*identitydomain.LoginResult, error)
	logoutFn           func(rawToken string) error
	authenticateFn     func(rawToken string) (*identitydomain.Session, error)
	changePasswordFn   func(userID snowflake.ID, newPassword string) error
	getUserFn          func(userID snowflake.ID) (*identitydomain.User, error)
	resolvePrincipalFn func(userID snowflake.ID) (authzdomain.Principal, error)
}

func (f *fakeIdentityService) CreateUser(ctx context.Context, req identitydomain.CreateUserRequest) (*identitydomain.User, error) {
	return nil, errors.New("unexpected CreateUser call")
}

func (f *fakeIdentityService) Login(ctx context.Context, req identitydomain.LoginRequest) (*identitydomain.LoginResult, error) {
	if f.loginFn == nil {
		return nil, identitydomain.ErrInvalidCredentials
	}
	return f.loginFn(req)
}

func (f *fakeIdentityService) Logout(ctx context.Context, rawToken string) error {
	if f.logoutFn == nil {
		return nil
	}
	return f.logoutFn(rawToken)
}

func (f *fakeIdentityService) Authenticate(ctx context.Context, rawToken string) (*identitydomain.Session, error) {
	if f.authenticateFn == nil {
		return nil, identitydomain.ErrInvalidSession
	}
	return f.authenticateFn(rawToken)
}

func (f *fakeIdentityService) ChangePassword(ctx context.Context, userID snowflake.ID, newPassword string) error {
	if f.changePasswordFn == nil {
		return nil
	}
	return f.changePasswordFn(userID, newPassword)
}

func (f *fakeIdentityService) GetUser(ctx context.Context, userID snowflake.ID) (*identitydomain.User, error) {
	if f.getUserFn == nil {
		return nil, identitydomain.ErrUserNotFound
	}
	return f.getUserFn(userID)
}

func (f *fakeIdentityService) ResolvePrincipal(ctx context.Context, userID snowflake.ID) (authzdomain.Principal, error) {
	if f.resolvePrincipalFn == nil {
		return authzdomain.Principal{}, authzdomain.ErrOrphanedPrincipal
	}
	return f.resolvePrincipalFn(userID)
}

type fakeAuthzService struct {
	buildContextFn func(principal authzdomain.Principal) (authzdomain.TenantContext, error)
	authorizeFn    func(tc authzdomain.TenantContext, permission authzdomain.Permission, resource authzdomain.Resource) (authzdomain.Decision, error)
	buildFilterFn  func(tc authzdomain.TenantContext, entity authzdomain.EntityType) (authzdomain.Filter, error)
}

func (f *fakeAuthzService) BuildContext(ctx context.Context, principal authzdomain.Principal) (authzdomain.TenantContext, error) {
	if f.buildContextFn == nil {
		var org *authzdomain.OrganizationState
		if principal.OrgID != 0 {
			org = &authzdomain.OrganizationState{ID: principal.OrgID, Status: authzdomain.OrgActive}
		}
		return authzdomain.BuildTenantContext(principal, org, time.Now(), 0)
	}
	return f.buildContextFn(principal)
}

func (f *fakeAuthzService) Authorize(ctx context.Context, tc authzdomain.TenantContext, permission authzdomain.Permission, resource authzdomain.Resource) (authzdomain.Decision, error) {
	if f.authorizeFn == nil {
		return authzdomain.Allow(), nil
	}
	return f.authorizeFn(tc, permission, resource)
}

func (f *fakeAuthzService) BuildFilter(ctx context.Context, tc authzdomain.TenantContext, entity authzdomain.EntityType) (authzdomain.Filter, error) {
	if f.buildFilterFn == nil {
		return authzdomain.MatchNothing(), nil
	}
	return f.buildFilterFn(tc, entity)
}

func (f *fakeAuthzService) ValidateAssignment(ctx context.Context, tc authzdomain.TenantContext, targetOwnerID snowflake.ID) (authzdomain.Decision, error) {
	return authzdomain.Deny(authzdomain.ReasonAssignmentNotPermitted), nil
}

type auditEntry struct {
	action     string
	actorID    string
	targetType string
	metadata   map[string]any
}

type fakeAuditService struct {
	entries []auditEntry
}

func (f *fakeAuditService) Record(ctx context.Context, in auditdomain.Entry) error {
	entry := auditEntry{action: in.Action, targetType: in.TargetType, metadata: in.Metadata}
	if in.ActorID != nil {
		entry.actorID = *in.ActorID
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditService) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func (f *fakeAuditService) find(action string) (auditEntry, bool) {
	for _, entry := range f.entries {
		if entry.action == action {
			return entry, true
		}
	}
	return auditEntry{}, false
}

func newTestServer(t *testing.T) (*Server, *fakeIdentityService, *fakeAuthzService, *fakeAuditService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	identity := &fakeIdentityService{}
	authz := &fakeAuthzService{}
	audit := &fakeAuditService{}

	s := &Server{
		cfg:      config.Config{},
		log:      zap.NewNop(),
		sessions: session.NewManager(config.Config{}),
		identity: identity,
		authz:    authz,
		audit:    audit,
	}
	return s, identity, authz, audit
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	return r
}

func testSession(userID snowflake.ID) *identitydomain.Session {
	return &identitydomain.Session{
		ID:        snowflake.ID(900),
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func testTenantContext(t *testing.T, p authzdomain.Principal) authzdomain.TenantContext {
	t.Helper()
	var org *authzdomain.OrganizationState
	if p.OrgID != 0 {
		org = &authzdomain.OrganizationState{ID: p.OrgID, Status: authzdomain.OrgActive}
	}
	tc, err := authzdomain.BuildTenantContext(p, org, time.Now(), 0)
	if err != nil {
		t.Fatalf("build tenant context: %v", err)
	}
	return tc
}

func decodeErrorPayload(t *testing.T, body []byte) errorPayload {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode error response: %v (body %s)", err, body)
	}
	return resp.Error
}
