package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTracing_DisabledWithoutEndpoint(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	shutdown, err := SetupTracing(ctx, Config{})

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
}

func TestSetupTracing_CustomEndpoint(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Endpoint:    "collector:4318",
		Environment: "staging",
		ServiceName: "custom-service",
	}

	ctx := context.Background()
	shutdown, err := SetupTracing(ctx, cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// No spans were recorded, so shutdown flushes nothing and must not
	// attempt to reach the collector.
	assert.NoError(t, shutdown(ctx))
}

func TestSetupTracing_CollectorUnavailable_GracefulDegradation(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Endpoint:    "localhost:99999", // Invalid port
		Environment: "test",
		ServiceName: "graceful-test",
	}

	ctx := context.Background()
	shutdown, err := SetupTracing(ctx, cfg)

	// Should NOT fail - graceful degradation
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
}

func TestDefaultServiceName_Value(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "gorp", DefaultServiceName)
}
