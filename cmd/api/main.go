package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/logistics-dashboard/internal/api/http"
	"github.com/spec-kit/logistics-dashboard/internal/api/http/handlers"
	"github.com/spec-kit/logistics-dashboard/internal/auth"
	"github.com/spec-kit/logistics-dashboard/internal/config"
	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/events"
	"github.com/spec-kit/logistics-dashboard/internal/live"
	"github.com/spec-kit/logistics-dashboard/internal/observability"
	"github.com/spec-kit/logistics-dashboard/internal/persistence"
	"github.com/spec-kit/logistics-dashboard/internal/repository"
	"github.com/spec-kit/logistics-dashboard/internal/service"
	"github.com/spec-kit/logistics-dashboard/internal/session"
	"github.com/spec-kit/logistics-dashboard/internal/worker"
)

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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("postgres pool not initialised")
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var sessions session.Store
	if redis.Available() {
		sessions = session.NewRedisStore(redis.Client, cfg.Auth.TokenTTL())
	} else {
		logger.Warn("redis unavailable; sessions are kept in process")
		sessions = session.NewMemoryStore()
	}

	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	dispatcher := events.NewInMemoryDispatcher(logger)
	activities := service.NewActivityLog(100)

	userRepo := repository.NewUserRepository(pool)
	taskRepo := repository.NewTaskRepository(pool)
	resourceRepo := repository.NewResourceRepository(pool)

	if cfg.Auth.BootstrapUsername != "" {
		if err := bootstrapUser(ctx, service.NewUserService(userRepo, cfg.Auth.BcryptCost, logger), cfg.Auth, logger); err != nil {
			logger.Fatal("failed to provision bootstrap user", zap.Error(err))
		}
	}

	hub := live.NewHub(metrics, logger)
	var broadcaster live.Broadcaster = hub
	if redis.Available() {
		rb := live.NewRedisBroadcaster(redis.Client, cfg.Live.Channel, hub, logger)
		broadcaster = rb
		// Run retries the subscription itself and only returns once ctx is done.
		go func() { _ = rb.Run(ctx) }()
	}

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:   userRepo,
		Sessions:   sessions,
		Tokens:     tokens,
		Dispatcher: dispatcher,
	})
	taskService := service.NewTaskService(taskRepo, dispatcher)
	resourceService := service.NewResourceService(resourceRepo)
	dashboardService := service.NewDashboardService(taskRepo, resourceRepo, activities, logger)
	notificationService := service.NewNotificationService(dispatcher, broadcaster, activities, logger)
	notificationService.RegisterHandlers()

	dashboardWorker := worker.NewDashboardWorker(dashboardService, hub, cfg.Live.PushInterval(), logger)
	dashboardWorker.RegisterHandlers(dispatcher)
	go dashboardWorker.Run(ctx)

	liveHandler := live.NewHandler(hub, dashboardService, metrics, logger, live.HandlerConfig{
		AllowedOrigins: live.ParseOrigins(cfg.Live.AllowedOrigins),
	})

	var redisPinger handlers.Pinger
	if redis.Available() {
		redisPinger = redis
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ErrorHandler:          httptransport.ErrorHandler,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:     handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisPinger, func() int { return hub.Count() }),
		Auth:       handlers.NewAuthHandler(authService, cfg.Auth.CookieSecure),
		Resources:  handlers.NewResourcesHandler(resourceService),
		Tasks:      handlers.NewTasksHandler(taskService),
		Notices:    handlers.NewNoticesHandler(notificationService),
		Navigation: handlers.NewNavigationHandler(metrics),
		Pages:      handlers.NewPagesHandler(cfg.App.StaticDir),
		Live:       liveHandler,
		Sessions:   auth.NewSessionMiddleware(tokens, sessions),
		Metrics:    metrics,
		Logger:     logger,
		StaticDir:  cfg.App.StaticDir,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

// bootstrapUser provisions the configured first account so a fresh database can be signed into.
func bootstrapUser(ctx context.Context, users *service.UserService, cfg config.AuthConfig, logger *zap.Logger) error {
	role, err := domain.ParseRole(cfg.BootstrapRole)
	if err != nil {
		return err
	}
	created, err := users.EnsureUser(ctx, cfg.BootstrapUsername, cfg.BootstrapPassword, role)
	if err != nil {
		return err
	}
	if created {
		logger.Info("bootstrap user created", zap.String("username", cfg.BootstrapUsername), zap.String("role", string(role)))
	}
	return nil
}
