package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/arenahq/bot-arena/internal/observability"
)

// Tracing opens one span per request under the process tracer set up by
// observability.SetupTracing, tagging it with the route and outcome status
// so a stdout trace dump reads like a request log with timing attached.
func Tracing() gin.HandlerFunc {
	tracer := observability.Tracer()
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.String("http.route", c.FullPath()),
		)
		if c.Writer.Status() >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	}
}
