package tracing

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	_, ok := GetTraceID(ctx)
	assert.False(t, ok)

	ctx = WithTraceID(ctx, "th-abc")
	traceID, ok := GetTraceID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "th-abc", traceID)

	_, ok = GetTraceID(WithTraceID(context.Background(), ""))
	assert.False(t, ok)
}

func TestRequestIDAndOperationName(t *testing.T) {
	ctx := WithRequestID(context.Background(), "r-1")
	ctx = WithOperationName(ctx, "POST /api/auth/sign-in/email")

	requestID, ok := GetRequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "r-1", requestID)

	name, ok := GetOperationName(ctx)
	assert.True(t, ok)
	assert.Equal(t, "POST /api/auth/sign-in/email", name)
}

func TestGenerateIDs(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateTraceID(), "th-"))
	assert.NotEqual(t, GenerateRequestID(), GenerateRequestID())
}
