package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/api"
	"github.com/dennisdiepolder/monti/callrouter/internal/callqueue"
	"github.com/dennisdiepolder/monti/callrouter/internal/config"
	"github.com/dennisdiepolder/monti/callrouter/internal/dashboard"
	"github.com/dennisdiepolder/monti/callrouter/internal/directory"
	"github.com/dennisdiepolder/monti/callrouter/internal/metrics"
	"github.com/dennisdiepolder/monti/callrouter/internal/router"
	"github.com/dennisdiepolder/monti/callrouter/internal/rules"
	"github.com/dennisdiepolder/monti/callrouter/internal/storage"
	"github.com/dennisdiepolder/monti/callrouter/internal/telemetry"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/dennisdiepolder/monti/callrouter/internal/websocket"
	"github.com/dennisdiepolder/monti/callrouter/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the routing engine HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

// engine bundles the wired routing components
type engine struct {
	router *router.Router
	queues *callqueue.Manager
	hub    *websocket.Hub
	store  storage.Store
}

func newEngine(cfg *config.Config, store storage.Store, logger zerolog.Logger) *engine {
	dir := directory.New()

	queues := callqueue.NewManager(dir, callqueue.Options{
		WaitFloor:   cfg.WaitFloor,
		SLThreshold: cfg.SLThreshold,
	}, logger)
	queues.SetStore(store)
	queues.Configure(callqueue.DefaultConfigs())

	rt := router.New(dir, queues,
		rules.NewStore(logger),
		rules.NewEvaluator(cfg.Location, logger),
		router.Options{DefaultMaxWait: cfg.DefaultMaxWait, DefaultFallback: types.FallbackVoicemail},
		logger,
	)
	rt.SetStore(store)

	hub := websocket.NewHub(logger)
	rt.SetBroadcaster(hub)

	return &engine{router: rt, queues: queues, hub: hub, store: store}
}

// handler builds the HTTP routes
func (e *engine) handler(cfg *config.Config, limiter *middleware.RateLimiter, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(metrics.Get().RecordHTTPRequest))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())
	r.Get("/ws", websocket.NewHandler(e.hub, cfg, logger).ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware)
		api.Handlers{
			Routing: api.NewRoutingHandler(e.router, logger),
			Roster:  api.NewRosterHandler(e.router, logger),
			Actions: api.NewAgentActionsHandler(e.router, logger),
			History: api.NewHistoryHandler(e.store, logger),
			Admin:   api.NewAdminHandler(e.router, e.store, cfg.RulesFile, logger),
			Queues:  callqueue.NewHandler(e.queues, logger),
		}.Register(r)
	})

	return r
}

func logConfigErrors(errs []error, logger zerolog.Logger) {
	for _, err := range errs {
		logger.Warn().Err(err).Msg("routing configuration problem")
	}
}

func serve() error {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Logger

	logger.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("timezone", cfg.Location.String()).
		Str("rules_file", cfg.RulesFile).
		Msg("starting call router")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.OTLPEndpoint, "callrouter", version, cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	store, err := storage.NewStore(ctx, logger)
	if err != nil {
		return err
	}

	e := newEngine(cfg, store, logger)

	var watcher *rules.Watcher
	if cfg.RulesFile != "" {
		f, err := rules.LoadFile(cfg.RulesFile)
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.RulesFile).Msg("failed to load routing file")
			return err
		}
		logConfigErrors(e.router.ApplyConfig(f), logger)
		watcher = rules.NewWatcher(cfg.RulesFile, func(f rules.File) {
			logConfigErrors(e.router.ApplyConfig(f), logger)
		}, logger)
	}

	scheduler := router.NewScheduler(e.router, cfg.Location, logger)
	scheduler.SetStore(store)
	if err := scheduler.RegisterDailyReset(cfg.DailyReset); err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, 0)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      e.handler(cfg, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e.hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		router.NewLoop(e.router, cfg.SweepInterval, logger).Start(gctx)
		return nil
	})
	g.Go(func() error {
		dashboard.NewBroadcaster(e.router, e.hub, cfg.SnapshotPeriod, logger).Start(gctx)
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				if n := limiter.Prune(now); n > 0 {
					logger.Debug().Int("clients", n).Msg("pruned idle rate limiters")
				}
			}
		}
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	g.Go(func() error {
		logger.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
