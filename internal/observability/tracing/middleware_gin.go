package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/sellora/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware instruments inbound HTTP requests.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("sellora/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		ctx, span := tracer.Start(ctx, "HTTP "+strings.ToUpper(c.Request.Method), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withRequestBaggage(ctx, requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		finishSpan(c, span, start)
	}
}

// withRequestBaggage carries the request id across service boundaries.
func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}

func finishSpan(c *gin.Context, span trace.Span, start time.Time) {
	route := c.FullPath()
	if route == "" {
		route = "unknown"
	}

	span.SetName("HTTP " + strings.ToUpper(c.Request.Method) + " " + route)
	span.SetAttributes(SafeAttributes(
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", c.Writer.Status()),
		attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
	)...)

	// Tenant and actor resolve after the span begins; read them back off the
	// request context the auth middleware rebuilt.
	reqCtx := c.Request.Context()
	if orgID := obscontext.OrgIDFromContext(reqCtx); orgID != "" {
		span.SetAttributes(attribute.String("org_id", orgID))
	}
	if _, actorID := obscontext.ActorFromContext(reqCtx); actorID != "" {
		span.SetAttributes(attribute.String("actor_id", actorID))
	}

	if c.Writer.Status() >= http.StatusInternalServerError {
		if lastErr := c.Errors.Last(); lastErr != nil {
			if safeErr := SafeError(lastErr.Err); safeErr != nil {
				span.RecordError(safeErr)
			}
		}
		span.SetStatus(codes.Error, "request error")
	}
}
