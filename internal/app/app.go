package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/treasury-governance/internal/api"
	"github.com/ayo6706/treasury-governance/internal/api/handler"
	"github.com/ayo6706/treasury-governance/internal/api/middleware"
	"github.com/ayo6706/treasury-governance/internal/config"
	"github.com/ayo6706/treasury-governance/internal/db"
	"github.com/ayo6706/treasury-governance/internal/events"
	"github.com/ayo6706/treasury-governance/internal/financeref"
	"github.com/ayo6706/treasury-governance/internal/governance"
	"github.com/ayo6706/treasury-governance/internal/idempotency"
	"github.com/ayo6706/treasury-governance/internal/observability"
	"github.com/ayo6706/treasury-governance/internal/rbac"
	"github.com/ayo6706/treasury-governance/internal/repository"
	"github.com/ayo6706/treasury-governance/internal/service"
	"github.com/ayo6706/treasury-governance/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Run bootstraps the governance API and the timelock sweeper, blocking until a
// shutdown signal arrives or the server fails.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	limits, err := policy.Limits()
	if err != nil {
		return fmt.Errorf("approval limits: %w", err)
	}
	registry, err := rbac.NewRegistry(limits)
	if err != nil {
		return fmt.Errorf("build role registry: %w", err)
	}
	logger.Info("governance policy loaded",
		zap.String("path", cfg.PolicyFile),
		zap.Int("projects", len(policy.Electorates)),
		zap.Int("versions", len(policy.Versions)),
	)

	var (
		store service.ProposalStore
		keys  idempotency.KeyStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.Options{ApplicationName: cfg.ServiceName})
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		if err := repository.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		repo := repository.NewStore(pool)
		store = service.NewPostgresStore(repo, service.NewAuditService())
		keys = repo.Queries()
		logger.Info("using postgres proposal store")
	} else {
		store = service.NewMemoryStore()
		keys = idempotency.NewMemoryKeys()
		logger.Warn("DATABASE_URL not set, proposals are kept in memory")
	}

	// A nil *redis.Client must not leak into the Cmdable interface.
	var redisClient redis.Cmdable
	if cfg.RedisURL != "" {
		client, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		redisClient = client
	}

	var (
		publisher events.Publisher
		broker    handler.BrokerStatus
	)
	if cfg.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(events.NATSConfig{
			URL:            cfg.NATSURL,
			Name:           cfg.ServiceName,
			ReconnectWait:  2 * time.Second,
			MaxReconnects:  -1,
			ConnectTimeout: 5 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		publisher, broker = natsPub, natsPub
	} else {
		publisher = events.NewLogPublisher(logger)
	}
	defer publisher.Close()

	svc := service.NewProposalService(registry, governance.NewVersionRegistry(), policy.Electorates, store, publisher, financeref.NewDefaultGenerator(), nil)
	if err := svc.LoadVersions(ctx, policy.Versions, "policy-file"); err != nil {
		return fmt.Errorf("load governance versions: %w", err)
	}
	recovered, err := svc.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover open proposals: %w", err)
	}
	logger.Info("open proposals recovered", zap.Int("count", recovered))

	sweeper := worker.NewTimelockWorker(svc).WithInterval(cfg.SweepInterval)
	stopSweeper := sweeper.Run(ctx)
	logger.Info("timelock sweeper started", zap.Duration("interval", cfg.SweepInterval))

	router := api.NewRouter(api.Deps{
		Service:            svc,
		Idempotency:        idempotency.NewStore(redisClient, keys, cfg.IdempotencyTTL),
		Redis:              redisClient,
		Broker:             broker,
		Logger:             logger,
		PublicRateLimitRPS: cfg.PublicRateLimitRPS,
		AuthRateLimitRPS:   cfg.AuthRateLimitRPS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		logger.Info("stopping timelock sweeper")
		stopSweeper()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
