// Package regnum is the public API for embedding the Regnum issue
// resolution server.
//
// Game hosts and tooling import this package to construct and extend the
// server without forking it:
//
//	app, err := regnum.New(
//	    regnum.WithVersion(version),
//	    regnum.WithLogger(logger),
//	    regnum.WithGenerator(myGenerator),
//	    regnum.WithExtraRoutes(myRoutes),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: regnum (root) imports
// internal/*, but internal/* never imports regnum (root). Public types
// (DecisionInput, DecisionOutcome) are standalone structs with no internal
// imports; the generatorAdapter lives here because this is the only file
// that sees both sides of the boundary.
package regnum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/emberfall/regnum/api"
	"github.com/emberfall/regnum/internal/config"
	"github.com/emberfall/regnum/internal/engine"
	"github.com/emberfall/regnum/internal/mcp"
	"github.com/emberfall/regnum/internal/narrative"
	"github.com/emberfall/regnum/internal/ratelimit"
	"github.com/emberfall/regnum/internal/seed"
	"github.com/emberfall/regnum/internal/server"
	"github.com/emberfall/regnum/internal/storage"
	"github.com/emberfall/regnum/internal/storage/memory"
	"github.com/emberfall/regnum/internal/telemetry"
	"github.com/emberfall/regnum/migrations"
)

// App is the Regnum server lifecycle. Construct with New(), run with Run().
// App has no public fields; use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB // nil with the memory store
	srv          *server.Server
	limiter      ratelimit.Limiter
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the Regnum server. It connects to the store, runs
// migrations, wires all subsystems, and returns a ready-to-run App.
// It does NOT start any goroutines or accept HTTP connections; call Run().
func New(opts ...Option) (*App, error) {
	// Apply options.
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.memoryStore {
		cfg.Store = config.StoreMemory
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("regnum starting", "version", version, "port", cfg.Port, "store", cfg.Store)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Connect the store. The memory store arrives pre-seeded with the
	// built-in scenario; Postgres is seeded separately (cmd/seed).
	var store engine.Store
	var db *storage.DB
	var pinger server.Pinger
	switch cfg.Store {
	case config.StorePostgres:
		db, err = storage.New(context.Background(), cfg.DatabaseURL, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("storage: %w", err)
		}
		if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("migrations: %w", err)
		}
		store = db
		pinger = db
	case config.StoreMemory:
		mem := memory.New()
		applySeed(mem, seed.Default())
		store = mem
		logger.Info("memory store: seeded with built-in scenario")
	default:
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	// Narrative provider. An external override takes priority over auto-detect.
	var provider narrative.Provider
	switch {
	case o.generator != nil:
		provider = &generatorAdapter{g: o.generator}
		logger.Info("narrative provider: external")
	case cfg.OpenAIAPIKey != "":
		provider = narrative.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.NarrativeModel)
		logger.Info("narrative provider: openai", "model", cfg.NarrativeModel)
	default:
		provider = narrative.NewStaticProvider()
		logger.Info("narrative provider: static (no OPENAI_API_KEY)")
	}
	adapter := narrative.NewAdapter(provider, cfg.NarrativeTimeout, logger)

	// Issue succession policy.
	var policy engine.Policy
	switch {
	case o.haltAfterResolve:
		policy = engine.HaltPolicy{}
	case len(o.issueOrder) > 0:
		policy = engine.QueuePolicy{Order: o.issueOrder}
	}

	eng := engine.New(store, adapter, policy, logger)

	// Rate limiter for the write paths.
	var limiter ratelimit.Limiter
	if cfg.ResolveRateLimit > 0 {
		limiter = ratelimit.NewMemoryLimiter(cfg.ResolveRateLimit, cfg.ResolveRateBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rate", cfg.ResolveRateLimit, "burst", cfg.ResolveRateBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	// MCP server.
	mcpSrv := mcp.New(eng, version, logger)

	// Adapt extension points to the internal server format.
	var extraRoutes []func(*http.ServeMux)
	for _, fn := range o.routeRegistrars {
		extraRoutes = append(extraRoutes, fn)
	}
	var middlewares []func(http.Handler) http.Handler
	for _, mw := range o.middlewares {
		middlewares = append(middlewares, mw)
	}

	srv := server.New(server.ServerConfig{
		Engine:              eng,
		Logger:              logger,
		Pinger:              pinger,
		Limiter:             limiter,
		MCPServer:           mcpSrv.MCPServer(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
		ExtraRoutes:         extraRoutes,
		Middlewares:         middlewares,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or a fatal
// server error occurs. On return, Shutdown is called automatically;
// callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown drains in-flight HTTP requests, then closes the rate limiter,
// the OTEL provider, and the database pool.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("regnum shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	cancel()

	_ = a.limiter.Close()
	_ = a.otelShutdown(context.Background())
	if a.db != nil {
		a.db.Close()
	}

	a.logger.Info("regnum stopped")
	return nil
}

// applySeed loads a starting scenario into a memory store.
func applySeed(store *memory.Store, data seed.Data) {
	for _, role := range data.Roles {
		store.UpsertRole(role)
	}
	for _, issue := range data.Issues {
		store.UpsertIssue(issue)
	}
	for _, v := range data.Variables {
		store.UpsertVariable(v)
	}
	store.PutState(data.State)
}

// generatorAdapter bridges a public Generator to the internal narrative
// provider interface.
type generatorAdapter struct {
	g Generator
}

func (a *generatorAdapter) Generate(ctx context.Context, input narrative.Input) (narrative.Outcome, error) {
	out, err := a.g.Generate(ctx, DecisionInput{
		IssueTitle:       input.IssueTitle,
		IssueDescription: input.IssueDescription,
		PlayerRole:       input.PlayerRole,
		ResolutionChoice: input.ResolutionChoice,
		Variables:        input.Variables,
		Context:          input.Context,
	})
	if err != nil {
		return narrative.Outcome{}, err
	}
	return narrative.Outcome{
		Narrative:    out.Narrative,
		StateChanges: out.StateChanges,
		Success:      out.Success,
	}, nil
}
