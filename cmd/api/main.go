package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adcp/salesagent/internal/adapters"
	"github.com/adcp/salesagent/internal/config"
	"github.com/adcp/salesagent/internal/db"
	"github.com/adcp/salesagent/internal/events"
	apphttp "github.com/adcp/salesagent/internal/http"
	"github.com/adcp/salesagent/internal/http/handlers"
	"github.com/adcp/salesagent/internal/repositories"
	"github.com/adcp/salesagent/internal/resilience"
	"github.com/adcp/salesagent/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, db.PostgresOptions{
		DSN:             cfg.PostgresDSN,
		MaxConns:        int32(cfg.PostgresMaxConns),
		ApplicationName: "salesagent-api",
		PingAttempts:    5,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Adapters
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.AdapterRetryAttempts
	registry := adapters.NewDefaultRegistry(adapters.ClientOptions{
		Timeout:       cfg.AdapterHTTPTimeout,
		RatePerSecond: cfg.AdapterRatePerSecond,
		Retry:         retry,
	}, log)
	if err := registry.Validate(); err != nil {
		log.Fatal("adapter registry incomplete", zap.Error(err))
	}

	// Repositories
	tenantRepo := repositories.NewTenantRepo(pool)
	mediaBuyRepo := repositories.NewMediaBuyRepo(pool)
	workflowRepo := repositories.NewWorkflowRepo(pool)
	productRepo := repositories.NewProductRepo(pool)
	creativeRepo := repositories.NewCreativeRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	resolver := services.NewAdapterResolver(tenantRepo, registry, cfg.DefaultDryRun, log)
	guardrail := services.NewGuardrail(tenantRepo, creativeRepo)
	workflowService := services.NewWorkflowService(workflowRepo, auditRepo, publisher, log)
	mediaBuyService := services.NewMediaBuyService(resolver, guardrail, workflowService, mediaBuyRepo, productRepo, creativeRepo, auditRepo, publisher, log)
	productService := services.NewProductService(resolver, productRepo, log)
	creativeService := services.NewCreativeService(creativeRepo, auditRepo, log)

	// Handlers
	wsHub := handlers.NewWSHub(cfg, subscriber, log)
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, apphttp.Handlers{
		Products:  handlers.NewProductHandler(productService, log),
		MediaBuys: handlers.NewMediaBuyHandler(mediaBuyService, log),
		Creatives: handlers.NewCreativeHandler(creativeService, log),
		Workflow:  handlers.NewWorkflowHandler(workflowService, log),
		WSHub:     wsHub,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr), zap.Strings("adapters", registry.Types()))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
