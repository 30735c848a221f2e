package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/firebase/genkit/go/genkit"

	"github.com/gorplabs/gorp/internal/chat"
	"github.com/gorplabs/gorp/internal/session"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Agent        *chat.Agent    // Required: forced-skill endpoints
	Flow         *chat.Flow     // Required: SSE chat endpoint
	SessionStore *session.Store // Required
	CORSOrigins  []string       // Allowed origins for CORS
	TrustProxy   bool           // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst    int            // Rate limiter burst size per IP (0 = default 60)
}

// Server is the Gorp HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.SessionStore == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Agent == nil {
		return nil, errors.New("chat agent is required")
	}
	if cfg.Flow == nil {
		return nil, errors.New("chat flow is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sh := &sessionHandler{store: cfg.SessionStore, logger: logger}
	ch := &chatHandler{flow: cfg.Flow, store: cfg.SessionStore, logger: logger}
	sk := &skillHandler{agent: cfg.Agent, logger: logger}

	mux := http.NewServeMux()

	// Session lifecycle
	mux.HandleFunc("POST /chat/session", sh.create)
	mux.HandleFunc("GET /chat/{session_id}/history", sh.history)

	// Streaming chat
	mux.HandleFunc("POST /chat/{session_id}/message", ch.sendMessage)

	// Forced-skill endpoints
	mux.HandleFunc("POST /chat/{session_id}/sarcasm", sk.sarcasm)
	mux.HandleFunc("POST /chat/{session_id}/joke_explanation", sk.jokeExplanation)
	mux.HandleFunc("GET /chat/{session_id}/joke_delivery", sk.jokeDelivery)

	// Skill schema discovery
	mux.HandleFunc("GET /api/skills", sk.schemas)

	// Synchronous chat via Genkit's built-in Flow handler
	mux.Handle("POST /api/chat", genkit.Handler(cfg.Flow))

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery -> RequestID -> Logging -> CORS -> RateLimit -> Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Use a top-level mux to separate health probes from the middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.SessionStore))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
