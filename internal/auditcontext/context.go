// Package auditcontext carries request metadata destined for audit records.
// It is separate from observability context so audit enrichment survives even
// when tracing is disabled.
package auditcontext

import (
	"context"
	"strings"
)

type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	ipAddressKey  contextKey = "ip_address"
	userAgentKey  contextKey = "user_agent"
	actorKey      contextKey = "actor"
	permissionKey contextKey = "permission"
	entityKey     contextKey = "entity"
)

type actorValue struct {
	Type string
	ID   string
}

// WithRequestID stores the request identifier on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request identifier or empty.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithIPAddress stores the caller IP address on the context.
func WithIPAddress(ctx context.Context, ip string) context.Context {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ipAddressKey, ip)
}

// IPAddressFromContext returns the caller IP address or empty.
func IPAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(ipAddressKey).(string)
	return value
}

// WithUserAgent stores the caller user agent on the context.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ctx
	}
	return context.WithValue(ctx, userAgentKey, userAgent)
}

// UserAgentFromContext returns the caller user agent or empty.
func UserAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userAgentKey).(string)
	return value
}

// WithActor stores the acting principal on the context.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey, actorValue{
		Type: strings.TrimSpace(actorType),
		ID:   strings.TrimSpace(actorID),
	})
}

// ActorFromContext returns the actor type and id, or empty strings.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey).(actorValue)
	if !ok {
		return "", ""
	}
	return value.Type, value.ID
}

// WithPermission stores the permission being evaluated on the context.
func WithPermission(ctx context.Context, permission string) context.Context {
	permission = strings.TrimSpace(permission)
	if permission == "" {
		return ctx
	}
	return context.WithValue(ctx, permissionKey, permission)
}

// PermissionFromContext returns the evaluated permission or empty.
func PermissionFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(permissionKey).(string)
	return value
}

// WithEntity stores the entity type under access on the context.
func WithEntity(ctx context.Context, entity string) context.Context {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return ctx
	}
	return context.WithValue(ctx, entityKey, entity)
}

// EntityFromContext returns the entity type under access or empty.
func EntityFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(entityKey).(string)
	return value
}
