package regnum

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port             int
	databaseURL      string
	logger           *slog.Logger
	version          string
	generator        Generator
	issueOrder       []string
	haltAfterResolve bool
	memoryStore      bool
	routeRegistrars  []RouteRegistrar
	middlewares      []Middleware
}

// WithPort overrides the TCP port from config (REGNUM_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the database connection string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithGenerator replaces the built-in narrative providers (OpenAI when
// OPENAI_API_KEY is set, static otherwise) with a custom implementation.
// Only the last call wins.
func WithGenerator(g Generator) Option {
	return func(o *resolvedOptions) { o.generator = g }
}

// WithIssueOrder fixes the sequence in which issues activate after each
// resolution. Ids not in the catalog are skipped. If not set, issues
// advance in catalog creation order.
func WithIssueOrder(ids ...string) Option {
	return func(o *resolvedOptions) { o.issueOrder = append(o.issueOrder, ids...) }
}

// WithHaltAfterResolve stops the game from activating a successor issue
// after each resolution. The game idles until an operator activates the
// next issue by hand.
func WithHaltAfterResolve() Option {
	return func(o *resolvedOptions) { o.haltAfterResolve = true }
}

// WithMemoryStore forces the in-memory store regardless of REGNUM_STORE,
// seeded with the built-in scenario. Intended for tests and local
// development; all state is lost on shutdown.
func WithMemoryStore() Option {
	return func(o *resolvedOptions) { o.memoryStore = true }
}

// WithExtraRoutes registers additional routes on the shared HTTP mux.
// Multiple registrars may be registered; all are called in registration order.
func WithExtraRoutes(fn RouteRegistrar) Option {
	return func(o *resolvedOptions) { o.routeRegistrars = append(o.routeRegistrars, fn) }
}

// WithMiddleware registers an outermost HTTP middleware.
// Multiple middlewares may be registered. Applied in registration order:
// the first-registered middleware is outermost (called first by every request).
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}
