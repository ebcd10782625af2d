package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jordanhubbard/protogate/internal/catalog"
	"github.com/jordanhubbard/protogate/internal/circuitbreaker"
	"github.com/jordanhubbard/protogate/internal/events"
	"github.com/jordanhubbard/protogate/internal/health"
	"github.com/jordanhubbard/protogate/internal/httpapi"
	"github.com/jordanhubbard/protogate/internal/logging"
	"github.com/jordanhubbard/protogate/internal/logsink"
	"github.com/jordanhubbard/protogate/internal/metrics"
	"github.com/jordanhubbard/protogate/internal/orchestrator"
	"github.com/jordanhubbard/protogate/internal/principal"
	"github.com/jordanhubbard/protogate/internal/retry"
	"github.com/jordanhubbard/protogate/internal/scheduler"
	"github.com/jordanhubbard/protogate/internal/strategy"
	"github.com/jordanhubbard/protogate/internal/temporal"
	"github.com/jordanhubbard/protogate/internal/tracing"
	"github.com/jordanhubbard/protogate/internal/upstream"
	"github.com/jordanhubbard/protogate/internal/vault"
)

// vaultKeyPrefix marks a Provider.APIKey value in a bootstrap file as a
// vault reference rather than a plaintext key, e.g. "vault:" for provider
// "p1" resolves via vault.ProviderCredentialKey("p1"). Resolution happens
// once here, at load time, never per-request (see loadCatalog).
const vaultKeyPrefix = "vault:"

// Server is the composition root: it owns every long-lived component —
// catalog, orchestrator, and the full ambient stack (logging, tracing,
// metrics, vault, health, circuit breaker, scheduler, events) — and wires
// them into a runnable gateway.
type Server struct {
	cfg Config
	log *slog.Logger

	repo         *catalog.MemRepo
	orchestrator *orchestrator.Orchestrator
	resolver     *principal.StaticResolver

	sink     logsink.Sink
	ticker   *scheduler.Ticker // used when cfg.TemporalEnabled is false
	temporal *temporal.Manager // used when cfg.TemporalEnabled is true
	vault    *vault.Vault
	health   *health.Tracker
	breaker  *circuitbreaker.Registry
	bus      *events.Bus
	metrics  *metrics.Registry

	tracingShutdown func(context.Context) error

	router  chi.Router
	http    *http.Server
	started bool // true once Start has begun the ticker/temporal worker
}

// compositeAvailability implements selector.Availability and
// orchestrator's implicit candidate-filter use by requiring BOTH the
// health tracker and the circuit breaker to consider a provider live,
// since either subsystem can independently veto it.
type compositeAvailability struct {
	health  *health.Tracker
	breaker *circuitbreaker.Registry
}

func (c compositeAvailability) IsAvailable(providerID string) bool {
	if c.health != nil && !c.health.IsAvailable(providerID) {
		return false
	}
	if c.breaker != nil && !c.breaker.IsAvailable(providerID) {
		return false
	}
	return true
}

// NewServer builds a fully wired Server from cfg but does not start
// listening; call Start to do that.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	log := logging.Setup(cfg.LogLevel)

	shutdown, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing setup: %w", err)
	}

	v, err := vault.New(cfg.VaultEnabled, vault.WithAutoLockDuration(15*time.Minute))
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("vault init: %w", err)
	}
	if cfg.VaultEnabled && cfg.VaultPassword != "" {
		if err := v.Unlock([]byte(cfg.VaultPassword)); err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("vault unlock: %w", err)
		}
	}

	bus := events.NewBus()
	healthTracker := health.NewTracker(health.DefaultConfig(), health.WithEventBus(bus))
	breakerRegistry := circuitbreaker.NewRegistry(
		circuitbreaker.WithThreshold(cfg.CircuitFailThreshold),
		circuitbreaker.WithCooldown(time.Duration(cfg.CircuitResetAfterSecs)*time.Second),
	)

	repo, resolver, err := loadCatalog(cfg, v)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	sink, err := newLogSink(ctx, cfg)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("open log sink: %w", err)
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSecs) * time.Second}
	httpClient.Transport = tracing.HTTPTransport(http.DefaultTransport)

	orch := &orchestrator.Orchestrator{
		Repo: repo,
		Strategies: map[catalog.Strategy]strategy.Strategy{
			catalog.StrategyRoundRobin: strategy.NewRoundRobin(),
			catalog.StrategyPriority:   strategy.NewPriority(),
		},
		Availability: compositeAvailability{health: healthTracker, breaker: breakerRegistry},
		Client:       upstream.New(httpClient),
		Sink:         sink,
		Health:       healthTracker,
		Breaker:      breakerRegistry,
		RetryOptions: retry.Options{MaxAttempts: cfg.RetryMaxAttempts, DelayMs: cfg.RetryDelayMs},
	}

	metricsRegistry := metrics.New()

	s := &Server{
		cfg:             cfg,
		log:             log,
		repo:            repo,
		orchestrator:    orch,
		resolver:        resolver,
		sink:            sink,
		vault:           v,
		health:          healthTracker,
		breaker:         breakerRegistry,
		bus:             bus,
		metrics:         metricsRegistry,
		tracingShutdown: shutdown,
	}

	if cfg.TemporalEnabled {
		mgr, err := temporal.New(temporal.Config{
			HostPort:      cfg.TemporalHostPort,
			Namespace:     cfg.TemporalNamespace,
			TaskQueue:     cfg.TemporalTaskQueue,
			CronSchedule:  fmt.Sprintf("0 %d * * *", cfg.LogCleanupHour),
			RetentionDays: cfg.LogRetentionDays,
		}, &temporal.Activities{Sink: sink, RetentionDays: cfg.LogRetentionDays})
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("temporal init: %w", err)
		}
		s.temporal = mgr
	} else {
		s.ticker = scheduler.NewTicker(sink, cfg.LogRetentionDays, cfg.LogCleanupHour, log)
	}

	s.router = s.buildRouter()
	return s, nil
}

// loadCatalog builds the Repo and credential Resolver from cfg.BootstrapFile,
// resolving any vault: reference in Provider.APIKey to its plaintext value
// once here rather than per request, so a locked vault or a missing
// credential simply yields an inactive provider with no key (fewer
// candidates downstream) instead of a new runtime error kind.
func loadCatalog(cfg Config, v *vault.Vault) (*catalog.MemRepo, *principal.StaticResolver, error) {
	var repo *catalog.MemRepo
	if cfg.BootstrapFile != "" {
		loaded, err := catalog.LoadBootstrapFile(cfg.BootstrapFile)
		if err != nil {
			return nil, nil, err
		}
		repo = loaded
	} else {
		repo = catalog.NewMemRepo()
	}

	for _, p := range repo.Providers() {
		if !strings.HasPrefix(p.APIKey, vaultKeyPrefix) {
			continue
		}
		key := ""
		if v != nil && !v.IsLocked() {
			if k, err := v.GetProviderCredential(p.ID); err == nil {
				key = k
			}
		}
		p.APIKey = key
		if key == "" {
			p.Active = false
		}
		repo.PutProvider(p)
	}

	resolver := principal.NewStaticResolver(nil)
	return repo, resolver, nil
}

func newLogSink(ctx context.Context, cfg Config) (logsink.Sink, error) {
	dsn := cfg.LogSinkDSN
	if dsn == "" || dsn == "file::memory:" {
		return logsink.NewMemSink(), nil
	}
	return logsink.NewSQLiteSink(ctx, dsn)
}

// buildRouter assembles the chi middleware chain (RequestID -> RealIP ->
// RequestLogger -> tracing.Middleware -> Recoverer -> CORS) and mounts the
// external surface.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(s.log))
	r.Use(tracing.Middleware())
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "x-api-key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var bus *events.Bus
	if s.cfg.EventsEndpointEnabled {
		bus = s.bus
	}
	httpapi.MountRoutes(r, httpapi.Dependencies{
		Orchestrator: s.orchestrator,
		Metrics:      s.metrics,
		Events:       bus,
		Ready:        s.ready,
	}, s.resolver)
	return r
}

// ready is the readiness check behind /healthz. It always reports true; it
// does not inspect the catalog's mappings or bindings.
func (s *Server) ready() bool {
	return true
}

// Start begins listening. It blocks until the listener stops (on Shutdown
// or a fatal accept error other than http.ErrServerClosed).
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		WriteTimeout:      0, // SSE streams must not be cut off
	}
	if s.temporal != nil {
		if err := s.temporal.Start(); err != nil {
			return fmt.Errorf("temporal worker start: %w", err)
		}
		if err := s.temporal.EnsureCronSchedule(); err != nil {
			return err
		}
	} else {
		s.ticker.Start()
	}
	s.started = true
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Reload re-reads cfg and swaps in a freshly loaded catalog, for SIGHUP.
// The HTTP listener and its middleware chain are left running.
func (s *Server) Reload(cfg Config) error {
	repo, resolver, err := loadCatalog(cfg, s.vault)
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.repo = repo
	s.resolver = resolver
	s.orchestrator.Repo = repo
	s.router = s.buildRouter()
	if s.http != nil {
		s.http.Handler = s.router
	}
	return nil
}

// Shutdown drains in-flight HTTP requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Close stops every background worker in the reverse order Start brought
// them up.
func (s *Server) Close() error {
	if s.started && s.ticker != nil {
		s.ticker.Stop()
	}
	if s.started && s.temporal != nil {
		s.temporal.Stop()
	}
	if s.vault != nil {
		s.vault.Lock()
	}
	if err := s.sink.Close(); err != nil {
		s.log.Error("close log sink", "error", err)
	}
	if s.tracingShutdown != nil {
		return s.tracingShutdown(context.Background())
	}
	return nil
}
