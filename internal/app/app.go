// Package app provides application initialization and dependency wiring.
//
// App is the container that holds every long-lived component: Genkit, the
// session store, the Gorp agent, the chat flow, and the HTTP server. Setup
// builds them in dependency order; Close releases them.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"

	"github.com/gorplabs/gorp/internal/api"
	"github.com/gorplabs/gorp/internal/chat"
	"github.com/gorplabs/gorp/internal/config"
	"github.com/gorplabs/gorp/internal/session"
)

// App is the core application container.
type App struct {
	Config *config.Config

	Genkit       *genkit.Genkit
	SessionStore *session.Store
	Agent        *chat.Agent
	Flow         *chat.Flow
	Server       *api.Server

	// Lifecycle management
	otelShutdown func(context.Context) error
}

// Close gracefully shuts down all resources. Safe to call on a partially
// initialized App.
func (a *App) Close() error {
	slog.Info("shutting down application")

	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			slog.Warn("shutting down tracer provider", "error", err)
		}
	}

	return nil
}
