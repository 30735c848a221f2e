package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorplabs/gorp/internal/config"
)

func TestApp_Close(t *testing.T) {
	tests := []struct {
		name     string
		setupApp func() *App
	}{
		{
			name:     "close minimal app",
			setupApp: func() *App { return &App{} },
		},
		{
			name: "close with otel shutdown",
			setupApp: func() *App {
				return &App{
					otelShutdown: func(context.Context) error { return nil },
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.setupApp()
			assert.NoError(t, a.Close())
		})
	}
}

func TestApp_Close_Idempotent(t *testing.T) {
	a := &App{
		otelShutdown: func(context.Context) error { return nil },
	}

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestSetup_InvalidConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config", func(t *testing.T) {
		var cfg *config.Config
		_, err := Setup(ctx, cfg)
		assert.ErrorIs(t, err, config.ErrConfigNil)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := &config.Config{
			Provider:        "skynet",
			ModelName:       "m",
			Temperature:     0.8,
			MaxTokens:       1024,
			Addr:            ":8080",
			SessionCapacity: 10,
			SessionTTL:      time.Minute,
		}
		_, err := Setup(ctx, cfg)
		assert.ErrorIs(t, err, config.ErrInvalidProvider)
	})
}
