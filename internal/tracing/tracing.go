package tracing

import (
	"context"

	"github.com/google/uuid"
)

type Config struct {
	// TraceHeader is read from inbound requests, defaults to "TH-Trace-Id".
	TraceHeader string `conf:"trace_header" yaml:"trace_header" json:"trace_header"`

	// RequestHeader is set on every response, defaults to "TH-Request-Id".
	RequestHeader string `conf:"request_header" yaml:"request_header" json:"request_header"`
}

type (
	traceIDKey       struct{}
	requestIDKey     struct{}
	operationNameKey struct{}
)

func GenerateTraceID() string {
	return "th-" + uuid.NewString()
}

func GenerateRequestID() string {
	return uuid.NewString()
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

func GetTraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey{}).(string)
	return v, ok && v != ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func GetRequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey{}).(string)
	return v, ok && v != ""
}

func WithOperationName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationNameKey{}, name)
}

func GetOperationName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(operationNameKey{}).(string)
	return v, ok && v != ""
}
