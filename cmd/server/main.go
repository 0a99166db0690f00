package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/linkgate/config"
	"github.com/sifan077/linkgate/internal/app/ratelimit"
	"github.com/sifan077/linkgate/internal/app/repository"
	"github.com/sifan077/linkgate/internal/app/repository/memory"
	appserver "github.com/sifan077/linkgate/internal/app/server"
	"github.com/sifan077/linkgate/internal/app/service"
	"github.com/sifan077/linkgate/internal/http/handler"
	"github.com/sifan077/linkgate/internal/infra/logger"
	infraNATS "github.com/sifan077/linkgate/internal/infra/nats"
	infraPostgres "github.com/sifan077/linkgate/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/linkgate/internal/infra/prometheus"
	infraRedis "github.com/sifan077/linkgate/internal/infra/redis"
	"github.com/sifan077/linkgate/pkg/useragent"
	"go.uber.org/zap"
)

const (
	defaultIPSalt   = "default_salt_change_me"
	shutdownTimeout = 15 * time.Second
	// Bloom filter sizing for the custom-slug pre-check.
	slugIndexCapacity = 1_000_000
	slugIndexFPRate   = 0.01
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.FromConfig(cfg.App))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("configuration loaded",
		zap.String("env", cfg.App.Env),
		zap.Int("port", cfg.App.Port),
		zap.String("base_url", cfg.App.BaseURL),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("clicks", cfg.Clicks.Driver),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Int("rate_limit", cfg.RateLimit.Limit),
		zap.Duration("rate_window", cfg.RateLimit.Window),
	)
	if cfg.App.AdminAPIKey == "" {
		log.Warn("ADMIN_API_KEY is not set; admin endpoints will answer 500")
	}
	if cfg.App.IPSalt == defaultIPSalt && !cfg.App.Development() {
		log.Warn("IP_SALT uses the default value; set a private salt in production")
	}

	var (
		store  repository.LinkStore
		checks []handler.ReadinessCheck
	)
	switch cfg.Storage.Driver {
	case "postgres":
		gormDB, err := infraPostgres.NewGorm(cfg.Postgres, log)
		if err != nil {
			return err
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			return fmt.Errorf("postgres: retrieve sql db: %w", err)
		}
		defer sqlDB.Close()

		if err := infraPostgres.Migrate(ctx, gormDB); err != nil {
			return err
		}
		store = repository.NewLinkRepository(gormDB)

		pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()
		checks = append(checks, handler.ReadinessCheck{Name: "postgres", Ping: pool.Ping})
		log.Info("connected to postgres", zap.String("host", cfg.Postgres.Host), zap.String("database", cfg.Postgres.Database))
	case "memory":
		store = memory.New()
		log.Warn("using in-memory link store; data is lost on restart")
	}

	var cache repository.LinkCache
	if cfg.Redis.Enabled {
		redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		cache = repository.NewRedisLinkCache(redisClient, cfg.Cache.TTL)
		checks = append(checks, handler.ReadinessCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
		log.Info("connected to redis", zap.String("addr", infraRedis.Options(cfg.Redis).Addr), zap.Duration("ttl", cfg.Cache.TTL))
	}

	recorder := service.NewClickRecorder(store, cfg.App.IPSalt, useragent.NewParser(), log.Named("clicks"))

	var dispatcher service.ClickDispatcher
	switch cfg.Clicks.Driver {
	case "worker":
		worker := service.NewClickWorker(recorder, log.Named("clicks"), service.ClickWorkerConfig{
			Workers:         cfg.Clicks.Workers,
			BufferSize:      cfg.Clicks.BufferSize,
			RetryAttempts:   cfg.Clicks.RetryAttempts,
			RetryDelay:      cfg.Clicks.RetryDelay,
			ShutdownTimeout: cfg.Clicks.ShutdownTimeout,
		})
		if err := worker.Start(); err != nil {
			return err
		}
		defer func() {
			if err := worker.Stop(); err != nil {
				log.Warn("click worker stop", zap.Error(err))
			}
		}()
		dispatcher = worker
	case "nats":
		conn, js, err := infraNATS.Connect(cfg.NATS, log)
		if err != nil {
			return err
		}
		defer conn.Drain()
		if err := service.EnsureStream(js); err != nil {
			return err
		}

		consumerCtx, cancelConsumer := context.WithCancel(ctx)
		consumer := service.NewClickConsumer(js, log.Named("clicks"), recorder)
		if err := consumer.Start(consumerCtx); err != nil {
			cancelConsumer()
			return err
		}
		defer func() {
			cancelConsumer()
			<-consumer.Done()
		}()
		defer waitPublishes(js, log)

		dispatcher = service.NewClickPublisher(js)
		log.Info("click events routed through nats", zap.String("url", infraNATS.URL(cfg.NATS)))
	}

	linkService := service.NewLinkService(service.LinkServiceDeps{
		Store:  store,
		Cache:  cache,
		Hasher: service.NewBcryptHasher(service.DefaultBcryptCost),
		Clicks: dispatcher,
		Index:  service.NewSlugIndex(slugIndexCapacity, slugIndexFPRate),
		Logger: log.Named("links"),
	})

	limiter := ratelimit.NewState(ratelimit.Config{Limit: cfg.RateLimit.Limit, Window: cfg.RateLimit.Window})
	sweeper := ratelimit.NewSweeper(log.Named("ratelimit"), limiter, cfg.RateLimit.SweepSchedule, cfg.RateLimit.IdleTTL)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}

	if cfg.Prometheus.Enabled {
		go infraPrometheus.Serve(ctx, infraPrometheus.NewServer(cfg.Prometheus), log)
	}

	server := appserver.New(appserver.Dependencies{
		Logger:      log.Named("http"),
		App:         cfg.App,
		LinkService: linkService,
		Limiter:     limiter,
		Checks:      checks,
	})

	listenErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		log.Info("http server listening", zap.String("addr", addr))
		listenErr <- server.Listen(addr)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// waitPublishes gives in-flight async publishes a chance to be acknowledged.
func waitPublishes(js nats.JetStreamContext, log *zap.Logger) {
	select {
	case <-js.PublishAsyncComplete():
	case <-time.After(5 * time.Second):
		log.Warn("click publishes still pending at shutdown", zap.Int("pending", js.PublishAsyncPending()))
	}
}
