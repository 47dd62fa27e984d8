package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/looplj/todohub/internal/tracing"
)

func headerName(configured, fallback string) string {
	if configured != "" {
		return configured
	}

	return fallback
}

// WithLoggingTracing stores the trace id, request id and operation name in the request context for the log hooks.
// An inbound trace id is kept, the request id is always new and echoed in the response.
func WithLoggingTracing(config tracing.Config) gin.HandlerFunc {
	traceHeader := headerName(config.TraceHeader, "TH-Trace-Id")
	requestHeader := headerName(config.RequestHeader, "TH-Request-Id")

	return func(c *gin.Context) {
		traceID := c.GetHeader(traceHeader)
		if traceID == "" {
			traceID = tracing.GenerateTraceID()
		}

		requestID := tracing.GenerateRequestID()
		c.Header(requestHeader, requestID)

		operation := c.FullPath()
		if operation == "" {
			operation = "unmatched"
		}

		ctx := tracing.WithTraceID(c.Request.Context(), traceID)
		ctx = tracing.WithRequestID(ctx, requestID)
		ctx = tracing.WithOperationName(ctx, c.Request.Method+" "+operation)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
