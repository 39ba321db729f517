// Package app wires all voxpreview subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until its context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject test doubles via functional options (WithSampleStore,
// WithRecorder, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voxpreview/internal/api"
	"github.com/MrWong99/voxpreview/internal/audit"
	"github.com/MrWong99/voxpreview/internal/config"
	"github.com/MrWong99/voxpreview/internal/generate"
	"github.com/MrWong99/voxpreview/internal/health"
	"github.com/MrWong99/voxpreview/internal/observe"
	"github.com/MrWong99/voxpreview/internal/resilience"
	"github.com/MrWong99/voxpreview/internal/samples"
	"github.com/MrWong99/voxpreview/internal/session"
	"github.com/MrWong99/voxpreview/internal/speech"
	"github.com/MrWong99/voxpreview/pkg/blob"
	"github.com/MrWong99/voxpreview/pkg/provider/tts"
	"github.com/MrWong99/voxpreview/pkg/voice"
)

// Providers holds the external backends. Populated by main.go via the
// config registry.
type Providers struct {
	TTS  tts.Provider
	Blob blob.Publisher
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics  *observe.Metrics
	registry *voice.Registry
	pool     *pgxpool.Pool
	store    samples.Store
	recorder audit.Recorder

	gateway   *speech.Gateway
	samples   *samples.Manager
	generator *generate.Service
	sessions  *session.Tracker

	handler http.Handler
	server  *http.Server

	mu       sync.Mutex
	listener net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSampleStore injects a sample store instead of creating one from config.
func WithSampleStore(s samples.Store) Option {
	return func(a *App) { a.store = s }
}

// WithRecorder injects an audit recorder instead of creating one from config.
func WithRecorder(r audit.Recorder) Option {
	return func(a *App) { a.recorder = r }
}

// WithMetrics records all instruments on m instead of the process default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
//
// New performs all initialisation synchronously: voice catalogue, database
// connection and migrations, sample store, audit log, synthesis gateway and
// the HTTP handler tree.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.TTS == nil || providers.Blob == nil {
		return nil, errors.New("app: tts and blob providers are required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	reg, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("app: voices: %w", err)
	}
	a.registry = reg

	if err := a.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("app: init database: %w", err)
	}
	if err := a.initSampleStore(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init sample store: %w", err)
	}
	if err := a.initRecorder(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init audit: %w", err)
	}

	a.initServices()
	a.initHTTP()

	slog.Info("app initialised",
		"voices", reg.Len(),
		"tts", cfg.Providers.TTS.Name,
		"blob", cfg.Providers.Blob.Name,
		"database", a.pool != nil,
		"quota_enforced", cfg.Session.Enforce,
	)
	return a, nil
}

// ─── Initialisation helpers ──────────────────────────────────────────────────

func (a *App) needsDatabase() bool {
	if a.cfg.Database.PostgresDSN == "" {
		return false
	}
	return a.store == nil || (a.recorder == nil && a.cfg.Audit.Backend == config.AuditPostgres)
}

func (a *App) initDatabase(ctx context.Context) error {
	if !a.needsDatabase() {
		return nil
	}

	pcfg, err := pgxpool.ParseConfig(a.cfg.Database.PostgresDSN)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	if a.cfg.Database.MaxConns > 0 {
		pcfg.MaxConns = a.cfg.Database.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping: %w", err)
	}

	a.pool = pool
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	return nil
}

func (a *App) initSampleStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	if a.pool == nil {
		slog.Warn("no database configured; preview samples are kept in memory")
		a.store = samples.NewMemStore()
		return nil
	}
	ps := samples.NewPostgresStore(a.pool)
	if err := ps.Migrate(ctx); err != nil {
		return err
	}
	a.store = ps
	return nil
}

func (a *App) initRecorder(ctx context.Context) error {
	if a.recorder != nil {
		return nil
	}
	switch a.cfg.Audit.Backend {
	case config.AuditFile:
		a.recorder = audit.NewFileStore(a.cfg.Audit.Path)
	case config.AuditPostgres:
		if a.pool == nil {
			return errors.New("audit backend postgres requires database.postgres_dsn")
		}
		ps := audit.NewPostgresStore(a.pool)
		if err := ps.Migrate(ctx); err != nil {
			return err
		}
		a.recorder = ps
	default:
		a.recorder = audit.Nop{}
	}
	return nil
}

func (a *App) initServices() {
	syn := a.cfg.Synthesis

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "tts/" + a.cfg.Providers.TTS.Name,
		MaxFailures:  syn.BreakerMaxFailures,
		ResetTimeout: syn.BreakerResetTimeout,
	})
	audio := tts.DefaultAudio()
	if syn.SpeakingRate != 0 {
		audio.SpeakingRate = syn.SpeakingRate
	}
	audio.Pitch = syn.Pitch

	a.gateway = speech.New(a.registry, a.providers.TTS,
		speech.WithTimeout(syn.Timeout),
		speech.WithBreaker(breaker),
		speech.WithRetry(resilience.RetryPolicy{Retries: syn.Retries}),
		speech.WithMetrics(a.metrics),
		speech.WithProviderName(a.cfg.Providers.TTS.Name),
		speech.WithAudio(audio),
	)

	pub := blob.WithTimeout(a.providers.Blob, syn.PublishTimeout)
	a.samples = samples.NewManager(a.registry, a.gateway, pub, a.store, samples.WithMetrics(a.metrics))
	a.generator = generate.New(a.registry, a.gateway, pub,
		generate.WithRecorder(a.recorder),
		generate.WithMetrics(a.metrics),
	)
	a.sessions = session.NewTracker(
		session.WithLimit(a.cfg.Session.Limit),
		session.WithTTL(a.cfg.Session.TTL),
		session.WithMetrics(a.metrics),
	)
}

func (a *App) initHTTP() {
	mux := http.NewServeMux()

	media, _ := blob.AsOpener(a.providers.Blob)
	api.New(api.Config{
		Registry:     a.registry,
		Samples:      a.samples,
		Generator:    a.generator,
		Sessions:     a.sessions,
		EnforceQuota: a.cfg.Session.Enforce,
		Media:        media,
	}).Register(mux)

	var checkers []health.Checker
	if a.pool != nil {
		checkers = append(checkers, health.Checker{Name: "database", Check: a.pool.Ping})
	}
	if p, ok := a.providers.Blob.(blob.Pinger); ok {
		checkers = append(checkers, health.Checker{Name: "blob", Check: p.Ping})
	}
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler())

	a.handler = observe.Middleware(a.metrics)(api.CORS(a.cfg.Server.CORSOrigins)(mux))
	a.server = &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Samples returns the preview sample manager.
func (a *App) Samples() *samples.Manager { return a.samples }

// Addr returns the address the server is listening on, or nil before Run
// has bound its listener.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and runs the session janitor until ctx is cancelled or the
// server fails. When samples.prewarm is set, missing samples are generated
// in the background.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.cfg.Server.ListenAddr, err)
	}
	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	a.sessions.Start(ctx)

	if a.cfg.Samples.Prewarm {
		go a.prewarm(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	slog.Info("app running", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	}
}

func (a *App) prewarm(ctx context.Context) {
	start := time.Now()
	rep := a.samples.Prewarm(ctx, nil)
	slog.Info("sample prewarm finished",
		"created", rep.Created,
		"cached", rep.Cached,
		"failed", len(rep.Failed),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops accepting requests, waits for in-flight requests until ctx
// expires, stops the session janitor and runs all closers in order. Safe to
// call multiple times.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}
		a.sessions.Stop()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs closers after a failed New.
func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
}
