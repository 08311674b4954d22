package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/sellora/internal/audit/domain"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	identitydomain "github.com/smallbiznis/sellora/internal/identity/domain"
	"github.com/smallbiznis/sellora/internal/identity/password"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	email := strings.TrimSpace(req.Email)
	result, err := s.identity.Login(c.Request.Context(), identitydomain.LoginRequest{
		Email:     email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		_ = s.audit.Record(c.Request.Context(), auditdomain.Entry{
			ActorType:  "user",
			Action:     "user.login_failed",
			TargetType: "user",
			Metadata:   map[string]any{"email": email},
		})
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)

	userID := result.User.ID.String()
	_ = s.audit.Record(c.Request.Context(), auditdomain.Entry{
		ActorType:  "user",
		ActorID:    &userID,
		Action:     "user.login",
		TargetType: "user",
		TargetID:   &userID,
		Metadata:   map[string]any{"email": email},
	})

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":           result.User.ID.String(),
			"email":        result.User.Email,
			"display_name": result.User.DisplayName,
		},
		"expires_at": result.ExpiresAt,
	})
}

func (s *Server) Logout(c *gin.Context) {
	token, ok := s.sessions.ReadToken(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.identity.Logout(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

// Me reports the account plus its resolved tenancy. A caller with no
// membership yet gets principal null rather than an error; that state is the
// entry to the create-organization flow.
func (s *Server) Me(c *gin.Context) {
	session, ok := s.sessionFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	user, err := s.identity.GetUser(c.Request.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, identitydomain.ErrUserNotFound) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		AbortWithError(c, err)
		return
	}

	body := gin.H{
		"user": gin.H{
			"id":                   user.ID.String(),
			"email":                user.Email,
			"display_name":         user.DisplayName,
			"must_change_password": user.IsDefault || user.LastPasswordChanged == nil,
		},
		"principal": nil,
	}

	principal, err := s.identity.ResolvePrincipal(c.Request.Context(), session.UserID)
	switch {
	case err == nil:
		body["principal"] = gin.H{
			"org_id":  principal.OrgID.String(),
			"team_id": principal.TeamID.String(),
			"role":    string(principal.Role),
		}
	case errors.Is(err, authzdomain.ErrOrphanedPrincipal):
		// No tenancy yet, or the organization is gone.
	default:
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, body)
}

func (s *Server) ChangePassword(c *gin.Context) {
	session, ok := s.sessionFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	currentPassword := strings.TrimSpace(req.CurrentPassword)
	newPassword := strings.TrimSpace(req.NewPassword)
	if currentPassword == "" {
		AbortWithError(c, newValidationError("current_password", "required", "current password is required"))
		return
	}
	if newPassword == "" {
		AbortWithError(c, newValidationError("new_password", "required", "new password is required"))
		return
	}
	if currentPassword == newPassword {
		AbortWithError(c, newValidationError("new_password", "must_differ", "new password must be different"))
		return
	}
	if len(newPassword) < 8 {
		AbortWithError(c, newValidationError("new_password", "weak_password", "password must be at least 8 characters"))
		return
	}

	user, err := s.identity.GetUser(c.Request.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, identitydomain.ErrUserNotFound) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		AbortWithError(c, err)
		return
	}
	if user.PasswordHash == nil || !password.Verify(currentPassword, *user.PasswordHash) {
		AbortWithError(c, identitydomain.ErrInvalidCredentials)
		return
	}

	if err := s.identity.ChangePassword(c.Request.Context(), session.UserID, newPassword); err != nil {
		AbortWithError(c, err)
		return
	}

	userID := session.UserID.String()
	_ = s.audit.Record(c.Request.Context(), auditdomain.Entry{
		ActorType:  "user",
		ActorID:    &userID,
		Action:     "user.password_changed",
		TargetType: "user",
		TargetID:   &userID,
	})

	c.Status(http.StatusNoContent)
}
