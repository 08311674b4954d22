package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/sellora/internal/audit/domain"
	"github.com/smallbiznis/sellora/internal/auditcontext"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/authzcontext"
	identitydomain "github.com/smallbiznis/sellora/internal/identity/domain"
	obscontext "github.com/smallbiznis/sellora/internal/observability/context"
	"github.com/smallbiznis/sellora/internal/orgcontext"
	"go.uber.org/zap"
)

const (
	HeaderOrg = "X-Org-ID"

	contextSessionKey = "identity_session"
	contextUserIDKey  = "user_id"
)

// SessionRequired authenticates the cookie and nothing more. It is the tier
// for account-level endpoints (me, change-password, first-organization
// bootstrap) where the caller may not have a tenancy yet.
func (s *Server) SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := s.authenticateSession(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextSessionKey, session)
		c.Set(contextUserIDKey, session.UserID)
		c.Next()
	}
}

// AuthRequired authenticates the cookie, then resolves the caller's
// membership into a principal and builds the tenant context for the request.
// Resolution happens on every request; nothing tenant-shaped survives from
// one request to the next.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := s.authenticateSession(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()

		principal, err := s.identity.ResolvePrincipal(ctx, session.UserID)
		if err != nil {
			s.auditInvariantBreach(c, session.UserID, err)
			AbortWithError(c, err)
			return
		}

		tc, err := s.authz.BuildContext(ctx, principal)
		if err != nil {
			s.auditInvariantBreach(c, session.UserID, err)
			AbortWithError(c, err)
			return
		}

		ctx = authzcontext.WithTenantContext(ctx, tc)
		ctx = obscontext.WithActor(ctx, "user", principal.UserID.String())
		ctx = auditcontext.WithActor(ctx, "user", principal.UserID.String())
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Set(contextSessionKey, session)
		c.Set(contextUserIDKey, session.UserID)
		c.Next()
	}
}

// OrgContext pins the organization the request acts on. It defaults to the
// caller's own organization; the X-Org-ID header may point elsewhere, but
// only platform-scope callers reach past their own boundary, and the gate
// still re-checks each operation against the tenant context.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := authzcontext.TenantContextFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		active := tc.Principal().OrgID
		if raw := strings.TrimSpace(c.GetHeader(HeaderOrg)); raw != "" {
			parsed, err := snowflake.ParseString(raw)
			if err != nil || parsed == 0 {
				AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid org id"))
				return
			}
			if !tc.CanAccessOrganization(parsed) {
				AbortWithError(c, authzdomain.ErrDenied("", authzdomain.Deny(authzdomain.ReasonOrganizationMismatch)))
				return
			}
			active = parsed
		}

		if active != 0 {
			ctx := orgcontext.WithOrgID(c.Request.Context(), int64(active))
			ctx = obscontext.WithOrgID(ctx, active.String())
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func (s *Server) authenticateSession(c *gin.Context) (*identitydomain.Session, error) {
	token, ok := s.sessions.ReadToken(c)
	if !ok {
		return nil, ErrUnauthorized
	}
	return s.identity.Authenticate(c.Request.Context(), token)
}

func (s *Server) sessionFromContext(c *gin.Context) (*identitydomain.Session, bool) {
	value, exists := c.Get(contextSessionKey)
	if !exists {
		return nil, false
	}
	session, ok := value.(*identitydomain.Session)
	if !ok || session == nil {
		return nil, false
	}
	return session, true
}

func (s *Server) userIDFromSession(c *gin.Context) (snowflake.ID, bool) {
	session, ok := s.sessionFromContext(c)
	if !ok {
		return 0, false
	}
	return session.UserID, true
}

// auditInvariantBreach records a failed principal resolution with elevated
// severity. An orphaned principal or an out-of-catalog role is broken state,
// not a user hitting a permission wall, and operators page on it.
func (s *Server) auditInvariantBreach(c *gin.Context, userID snowflake.ID, cause error) {
	if !errors.Is(cause, authzdomain.ErrOrphanedPrincipal) && !errors.Is(cause, authzdomain.ErrInvalidRole) {
		return
	}

	actorID := userID.String()
	if err := s.audit.Record(c.Request.Context(), auditdomain.Entry{
		ActorType:  "user",
		ActorID:    &actorID,
		Action:     auditdomain.ActionInvariantBreach,
		TargetType: "principal",
		TargetID:   &actorID,
		Metadata: map[string]any{
			"severity": "critical",
			"cause":    cause.Error(),
			"path":     c.FullPath(),
		},
	}); err != nil {
		s.log.Warn("failed to audit invariant breach",
			zap.String("user_id", actorID),
			zap.Error(err),
		)
	}
}

func activeOrgID(c *gin.Context) (snowflake.ID, bool) {
	return orgcontext.OrgIDFromContext(c.Request.Context())
}
