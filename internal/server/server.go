package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/emberfall/regnum/internal/engine"
	"github.com/emberfall/regnum/internal/ratelimit"
)

// Server is the Regnum HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Pinger, Limiter, MCPServer, OpenAPISpec.
type ServerConfig struct {
	// Required dependencies.
	Engine *engine.Engine
	Logger *slog.Logger

	// Optional dependencies (nil = disabled).
	Pinger    Pinger
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64

	// Optional embedded assets.
	OpenAPISpec []byte // Embedded OpenAPI YAML.

	// ExtraRoutes are called after all built-in routes are registered.
	ExtraRoutes []func(mux *http.ServeMux)
	// Middlewares wrap the handler chain outermost-first.
	Middlewares []func(http.Handler) http.Handler
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Engine:              cfg.Engine,
		Pinger:              cfg.Pinger,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         cfg.OpenAPISpec,
	})

	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}

	// Resolutions and notes are the write paths; reads are unlimited.
	writeRL := ratelimit.Middleware(cfg.Limiter, ipKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Resolution pipeline.
	mux.Handle("POST /v1/issues/{issue_id}/resolve", writeRL(http.HandlerFunc(h.HandleResolve)))
	mux.HandleFunc("GET /v1/issues/current", h.HandleCurrentIssue)

	// Game state and catalog.
	mux.HandleFunc("GET /v1/state", h.HandleState)
	mux.HandleFunc("GET /v1/config", h.HandleConfig)

	// Resolution ledger.
	mux.HandleFunc("GET /v1/history", h.HandleHistory)

	// Private notes.
	mux.Handle("POST /v1/notes", writeRL(http.HandlerFunc(h.HandleSendNote)))
	mux.HandleFunc("GET /v1/notes", h.HandleListNotes)
	mux.Handle("POST /v1/notes/{note_id}/read", writeRL(http.HandlerFunc(h.HandleMarkNoteRead)))

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", mcpHTTP)
	}

	// OpenAPI spec (no rate limit).
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Health (no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	for _, register := range cfg.ExtraRoutes {
		register(mux)
	}

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
