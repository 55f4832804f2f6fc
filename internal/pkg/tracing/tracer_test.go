package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerProvider_WithoutEndpoint(t *testing.T) {
	tp, err := InitTracerProvider("storefront-test", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	assert.Len(t, GetTraceIDFromContext(ctx), 32)
	assert.Equal(t, "", GetTraceIDFromContext(context.Background()))
}
