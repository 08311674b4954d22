// Package authzcontext carries the resolved tenant context of the
// authenticated caller through the request. The session middleware is the
// only writer; feature services read it instead of rebuilding it.
package authzcontext

import (
	"context"

	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
)

type tenantContextKey struct{}

// WithTenantContext stores the tenant context in the request context.
func WithTenantContext(ctx context.Context, tc authzdomain.TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// TenantContextFromContext returns the tenant context, if the request passed
// the session middleware.
func TenantContextFromContext(ctx context.Context) (authzdomain.TenantContext, bool) {
	if ctx == nil {
		return authzdomain.TenantContext{}, false
	}
	tc, ok := ctx.Value(tenantContextKey{}).(authzdomain.TenantContext)
	return tc, ok
}
