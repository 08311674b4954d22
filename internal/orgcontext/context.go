// Package orgcontext carries the organization a request is acting on. For
// regular members this always equals their home organization; for platform
// operators it may name a foreign org they are inspecting.
package orgcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// OrgContextKey is the request context key for the active organization ID.
type OrgContextKey struct{}

// WithOrgID stores the org ID in the context.
func WithOrgID(ctx context.Context, orgID int64) context.Context {
	return context.WithValue(ctx, OrgContextKey{}, orgID)
}

// OrgIDFromContext returns the org ID from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	value := ctx.Value(OrgContextKey{})
	if value != nil {
		if id, ok := coerceOrgID(value); ok {
			return id, true
		}
	}

	// Legacy string key, still written by older middleware.
	if id, ok := coerceOrgID(ctx.Value("org_id")); ok {
		return id, true
	}
	return 0, false
}

// OrgIDString returns the active org as a decimal string, or empty.
func OrgIDString(ctx context.Context) string {
	id, ok := OrgIDFromContext(ctx)
	if !ok || id == 0 {
		return ""
	}
	return id.String()
}

func coerceOrgID(value any) (snowflake.ID, bool) {
	switch typed := value.(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}
