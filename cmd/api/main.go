package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/bid2build/bid2build/internal/api/http"
	"github.com/bid2build/bid2build/internal/api/http/handlers"
	"github.com/bid2build/bid2build/internal/auth"
	"github.com/bid2build/bid2build/internal/config"
	"github.com/bid2build/bid2build/internal/events"
	"github.com/bid2build/bid2build/internal/mq"
	"github.com/bid2build/bid2build/internal/observability"
	"github.com/bid2build/bid2build/internal/persistence"
	"github.com/bid2build/bid2build/internal/repository"
	"github.com/bid2build/bid2build/internal/service"
	"github.com/bid2build/bid2build/internal/storage"
	"github.com/bid2build/bid2build/internal/worker"
)

const forwarderQueueSize = 256

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	readiness := map[string]handlers.Pinger{}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var store repository.Store
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pool)
		readiness["postgres"] = pg
	} else {
		logger.Warn("using in-memory store; data is lost on restart")
		store = repository.NewMemoryStore()
	}

	var (
		idempotency repository.IdempotencyStore
		revocations repository.RevocationStore
	)
	if cfg.Redis.Addr != "" {
		redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redis.Close()
		idempotency = redis.IdempotencyStore()
		revocations = redis.RevocationStore()
		readiness["redis"] = redis
	} else {
		logger.Warn("REDIS_ADDR empty; idempotency keys and revoked tokens are kept in memory")
		idempotency = repository.NewMemoryIdempotencyStore()
		revocations = repository.NewMemoryRevocationStore()
	}

	documents, err := storage.NewLocalStore(cfg.Upload.Dir, cfg.Upload.MaxFileBytes(), cfg.Upload.AllowedTypes)
	if err != nil {
		logger.Fatal("failed to prepare upload directory", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	var forwarder *worker.BrokerForwarder
	if cfg.Broker.RabbitURL != "" {
		publisher, err := mq.NewPublisher(cfg.Broker.RabbitURL, cfg.Broker.Exchange, cfg.App.Name)
		if err != nil {
			logger.Fatal("failed to connect rabbitmq", zap.Error(err))
		}
		defer publisher.Close()
		forwarder = worker.NewBrokerForwarder(publisher, logger, forwarderQueueSize)
	}
	worker.StartNotificationWorker(ctx, dispatcher, notificationService, forwarder)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Store:       store,
		Revocations: revocations,
		Dispatcher:  dispatcher,
		Tokens:      tokens,
		Logger:      logger,
	})
	registrationService := service.NewRegistrationService(cfg, service.RegistrationDependencies{
		Store:       store,
		Idempotency: idempotency,
		Documents:   documents,
		Dispatcher:  dispatcher,
		Tokens:      tokens,
		Metrics:     metrics,
		Logger:      logger,
	})
	reviewService := service.NewReviewService(store, documents, dispatcher, metrics, logger)

	if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		logger.Fatal("failed to bootstrap admin account", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
		// every role has at most two files plus the scalar fields
		BodyLimit: int(cfg.Upload.MaxFileBytes())*3 + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Auth:           handlers.NewAuthHandler(registrationService, authService),
		Documents:      handlers.NewDocumentsHandler(reviewService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Repos().Users, revocations),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
	cancel()
	if forwarder != nil {
		forwarder.Wait()
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
