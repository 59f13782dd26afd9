package regnum

import (
	"context"
	"net/http"
)

// Generator produces a narrative outcome for a player decision.
// When provided via WithGenerator, it replaces the built-in providers
// (OpenAI when OPENAI_API_KEY is set, static otherwise). Failures are
// absorbed: the engine substitutes a neutral fallback outcome, so a
// Generator error never fails the originating resolution.
type Generator interface {
	Generate(ctx context.Context, input DecisionInput) (DecisionOutcome, error)
}

// RouteRegistrar registers additional routes on the shared HTTP mux.
// Extension routes share the mux and the request ID, tracing, logging,
// and recovery middleware with built-in routes. The function is called
// once during New() after all built-in routes are registered.
type RouteRegistrar func(mux *http.ServeMux)

// Middleware wraps the root HTTP handler. Applied outermost (before
// routing), so it sees all requests including /health. Multiple
// middlewares are applied in registration order (first-registered =
// outermost).
type Middleware func(http.Handler) http.Handler
