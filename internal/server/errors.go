package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/sellora/internal/audit/domain"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	contactdomain "github.com/smallbiznis/sellora/internal/contact/domain"
	dealdomain "github.com/smallbiznis/sellora/internal/deal/domain"
	identitydomain "github.com/smallbiznis/sellora/internal/identity/domain"
	orgdomain "github.com/smallbiznis/sellora/internal/organization/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

// errorPayload is the stable wire shape for every failure. Reason and
// Permission are set on denials only; the reason code is the whole story the
// client gets, nothing about the record leaks.
type errorPayload struct {
	Type       string            `json:"type"`
	Message    string            `json:"message"`
	Reason     string            `json:"reason,omitempty"`
	Permission string            `json:"permission,omitempty"`
	Errors     []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var denied *authzdomain.DeniedError
	if errors.As(err, &denied) {
		return http.StatusForbidden, errorPayload{
			Type:       "forbidden",
			Message:    "forbidden",
			Reason:     string(denied.Reason),
			Permission: string(denied.Permission),
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authzdomain.ErrOrphanedPrincipal),
		errors.Is(err, contactdomain.ErrNoTenantContext),
		errors.Is(err, dealdomain.ErrNoTenantContext),
		errors.Is(err, identitydomain.ErrInvalidCredentials),
		errors.Is(err, identitydomain.ErrInvalidSession),
		errors.Is(err, identitydomain.ErrSessionExpired),
		errors.Is(err, identitydomain.ErrSessionRevoked):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, authzdomain.ErrInvalidRole),
		errors.Is(err, identitydomain.ErrUserExists),
		errors.Is(err, orgdomain.ErrMemberExists),
		errors.Is(err, orgdomain.ErrSlugTaken),
		errors.Is(err, orgdomain.ErrTeamNameTaken),
		errors.Is(err, orgdomain.ErrLastOrgAdmin),
		errors.Is(err, orgdomain.ErrSameOrganization),
		errors.Is(err, orgdomain.ErrTargetOrgNotActive),
		errors.Is(err, orgdomain.ErrTransferInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, authzdomain.ErrMembershipUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isOrganizationValidationError(err),
		isContactValidationError(err),
		isDealValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, contactdomain.ErrNotFound),
		errors.Is(err, dealdomain.ErrNotFound),
		errors.Is(err, orgdomain.ErrOrgNotFound),
		errors.Is(err, orgdomain.ErrTeamNotFound),
		errors.Is(err, orgdomain.ErrMemberNotFound),
		errors.Is(err, identitydomain.ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog labels request errors for the access log. Denials and
// invariant breaches get their own classes so they can be alerted on apart
// from plain 4xx noise.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}

	var denied *authzdomain.DeniedError
	if errors.As(err, &denied) {
		return "forbidden", string(denied.Reason)
	}

	switch {
	case errors.Is(err, authzdomain.ErrOrphanedPrincipal):
		return "invariant_breach", "orphaned_principal"
	case errors.Is(err, authzdomain.ErrInvalidRole):
		return "invariant_breach", "invalid_role"
	case errors.Is(err, authzdomain.ErrMembershipUnavailable):
		return "service_unavailable", "membership_unavailable"
	}

	status, payload := mapError(err)
	code := payload.Type
	if status == http.StatusBadRequest && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func isAuditValidationError(err error) bool {
	switch err {
	case auditdomain.ErrInvalidOrganization,
		auditdomain.ErrInvalidPageToken,
		auditdomain.ErrInvalidTimeRange,
		auditdomain.ErrInvalidAction:
		return true
	default:
		return false
	}
}
