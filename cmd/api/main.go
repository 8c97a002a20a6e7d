package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/fitsocial/internal/api"
	"example.com/fitsocial/internal/compat"
	"example.com/fitsocial/internal/config"
	"example.com/fitsocial/internal/identity"
	"example.com/fitsocial/internal/logging"
	"example.com/fitsocial/internal/outbox"
	"example.com/fitsocial/internal/persistence/postgres"
	"example.com/fitsocial/internal/service"
	"example.com/fitsocial/internal/social"
	httptransport "example.com/fitsocial/internal/transport/http"
	"example.com/fitsocial/pkg/platform/auth"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("social api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	directory := identity.NewDirectory()
	engine := social.NewEngine(directory, social.WithLocation(loc))

	var (
		store      service.Store = service.NoopStore{}
		dispatcher *outbox.Dispatcher
		svcOpts    []service.Option
	)
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.NewRepository(pool)

		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()
		dispatcher = outbox.NewDispatcher(pool, producer, logger, cfg.OutboxPollInterval, cfg.OutboxBatchSize, cfg.DLQBaseDelay)
		if cfg.SeedProfiles {
			svcOpts = append(svcOpts, service.WithSeedProfiles(identity.DemoProfiles()))
		}
	} else {
		logger.Info("POSTGRES_URL not set, running in memory with demo profiles")
		directory.Seed()
	}

	matcherOpts := []compat.MatcherOption{compat.WithTimeout(cfg.AITimeout), compat.WithLogger(logger.Named("matcher"))}
	if cfg.GeminiAPIKey != "" {
		scorer, err := compat.NewGeminiScorer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return err
		}
		matcherOpts = append(matcherOpts, compat.WithAIScorer(scorer))
	} else {
		logger.Info("GEMINI_API_KEY not set, compatibility uses the heuristic only")
	}

	svcOpts = append(svcOpts,
		service.WithLogger(logger.Named("service")),
		service.WithMatcher(compat.NewMatcher(matcherOpts...)))
	svc := service.New(directory, engine, store, svcOpts...)
	if err := svc.Hydrate(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	api.NewHandler(svc, logger.Named("api")).RegisterRoutes(mux)

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.Method == http.MethodOptions
	})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.AccessLog(logger.Named("http"), httptransport.CORS(cfg.CORSOrigin, authMiddleware.Wrap(mux))))

	metricsServer := httptransport.NewServer(httptransport.ServerConfig{
		Address:     cfg.MetricsAddress,
		ReadTimeout: 5 * time.Second,
	}, promhttp.Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("social api listening", zap.String("address", cfg.HTTPAddress))
		return serve(server)
	})
	g.Go(func() error {
		logger.Info("metrics listening", zap.String("address", cfg.MetricsAddress))
		return serve(metricsServer)
	})
	if dispatcher != nil {
		g.Go(func() error {
			dispatcher.Start(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return errors.Join(server.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

func serve(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

