package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/notify-dispatch/internal/config"
	"github.com/kursadbilgin/notify-dispatch/internal/dispatch"
	"github.com/kursadbilgin/notify-dispatch/internal/handler"
	"github.com/kursadbilgin/notify-dispatch/internal/health"
	"github.com/kursadbilgin/notify-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/notify-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/notify-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/notify-dispatch/internal/observability"
	"github.com/kursadbilgin/notify-dispatch/internal/provider"
	"github.com/kursadbilgin/notify-dispatch/internal/render"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"github.com/kursadbilgin/notify-dispatch/internal/service"
	"github.com/kursadbilgin/notify-dispatch/internal/transport"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("notify-dispatch api stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	metrics := observability.NewMetrics()

	var rdb *goredis.Client
	if cfg.UsesRedis() {
		client, err := infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer client.Close()
		rdb = client
	}

	failures, closeFailures, err := newFailureLog(ctx, cfg, rdb, logger)
	if err != nil {
		return err
	}
	defer closeFailures()

	renderer, err := render.New(cfg.OperatorPhone,
		render.WithBusinessName(cfg.BusinessName),
		render.WithCountryCode(cfg.DefaultCountryCode),
		render.WithMaxBodyLength(cfg.MaxBodyLength),
	)
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}

	adapters, err := buildAdapters(ctx, cfg)
	if err != nil {
		return fmt.Errorf("provider initialization failed: %w", err)
	}

	registry := health.NewRegistry(func(name string, state health.State) {
		metrics.SetProviderUnhealthy(name, state == health.StateUnhealthy)
	})

	opts := []dispatch.Option{
		dispatch.WithTimeout(cfg.AttemptTimeout),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(metrics),
	}
	if cfg.RateLimitPerSec > 0 {
		var limitOpts []infraredis.RateLimiterOption
		for name, rate := range cfg.ProviderRateLimits() {
			limitOpts = append(limitOpts, infraredis.WithProviderLimit(name, rate))
		}
		limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec, limitOpts...)
		if err != nil {
			return fmt.Errorf("rate limiter initialization failed: %w", err)
		}
		opts = append(opts, dispatch.WithRateLimiter(limiter))
	}

	orchestrator, err := dispatch.New(adapters, registry, opts...)
	if err != nil {
		return fmt.Errorf("dispatcher initialization failed: %w", err)
	}

	engine, err := service.NewEngine(renderer, orchestrator, failures, logger)
	if err != nil {
		return err
	}
	engine.SetMetrics(metrics)

	async := service.NewAsyncDispatcher(engine, cfg.AsyncConcurrency, logger)
	async.SetMetrics(metrics)

	providers, err := service.NewProviderService(orchestrator, func(ctx context.Context) ([]provider.Adapter, error) {
		fresh, err := config.Load()
		if err != nil {
			return nil, err
		}
		return buildAdapters(ctx, fresh)
	}, logger)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:               "notify-dispatch",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(transport.RequestID())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	checks := []handler.ReadinessCheck{{Name: "failureLog", Ping: engine.Ready}}
	if rdb != nil && cfg.FailureLogBackend != config.FailureLogRedis {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	handler.RegisterHealthRoutes(app, checks...)
	if err := handler.RegisterNotificationRoutes(app, engine, async); err != nil {
		return err
	}
	if err := handler.RegisterProviderRoutes(app, providers); err != nil {
		return err
	}

	reporter, err := service.NewFailureReporter(failures, cfg.FailureReportEvery, 0, logger)
	if err != nil {
		return err
	}
	reporter.SetMetrics(metrics)

	go reloadOnHangup(ctx, providers, logger)
	go func() {
		_ = reporter.Start(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	logger.Info("notify-dispatch api started",
		zap.Int("port", cfg.APIPort),
		zap.String("failureLog", cfg.FailureLogBackend),
		zap.Int("providers", len(adapters)),
	)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}
	if err := async.Close(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("async dispatcher drain failed", zap.Error(err))
	}

	return nil
}

func newFailureLog(ctx context.Context, cfg *config.Config, rdb *goredis.Client, logger *zap.Logger) (repository.FailureLog, func(), error) {
	switch cfg.FailureLogBackend {
	case config.FailureLogRedis:
		failures, err := repository.NewRedisFailureLog(rdb, cfg.FailureLogPrefix)
		if err != nil {
			return nil, nil, err
		}
		if aof, err := infraredis.AppendOnlyEnabled(ctx, rdb); err != nil {
			logger.Warn("could not verify redis persistence", zap.Error(err))
		} else if !aof {
			logger.Warn("redis appendonly is disabled, failure log entries may be lost on restart")
		}
		return failures, func() {}, nil
	default:
		db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres initialization failed: %w", err)
		}
		if err := migrations.Migrate(db); err != nil {
			return nil, nil, fmt.Errorf("database migrations failed: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("postgres underlying db init failed: %w", err)
		}
		return repository.NewGormFailureLog(db), func() { _ = sqlDB.Close() }, nil
	}
}

func reloadOnHangup(ctx context.Context, providers *service.ProviderService, logger *zap.Logger) {
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hangup:
			if _, err := providers.Reload(ctx); err != nil {
				logger.Error("provider reload failed, keeping current providers", zap.Error(err))
			}
		}
	}
}
