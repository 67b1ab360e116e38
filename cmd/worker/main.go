package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adcp/salesagent/internal/adapters"
	"github.com/adcp/salesagent/internal/config"
	"github.com/adcp/salesagent/internal/db"
	"github.com/adcp/salesagent/internal/events"
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
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, db.PostgresOptions{
		DSN:             cfg.PostgresDSN,
		MaxConns:        int32(cfg.PostgresMaxConns),
		ApplicationName: "salesagent-worker",
		PingAttempts:    5,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.AdapterRetryAttempts
	registry := adapters.NewDefaultRegistry(adapters.ClientOptions{
		Timeout:       cfg.AdapterHTTPTimeout,
		RatePerSecond: cfg.AdapterRatePerSecond,
		Retry:         retry,
	}, log)

	// Repos
	tenantRepo := repositories.NewTenantRepo(pool)
	mediaBuyRepo := repositories.NewMediaBuyRepo(pool)
	workflowRepo := repositories.NewWorkflowRepo(pool)
	productRepo := repositories.NewProductRepo(pool)
	creativeRepo := repositories.NewCreativeRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	resolver := services.NewAdapterResolver(tenantRepo, registry, cfg.DefaultDryRun, log)
	workflowService := services.NewWorkflowService(workflowRepo, auditRepo, publisher, log)
	// Registers the update hook so auto-approved steps execute.
	_ = services.NewMediaBuyService(resolver, services.NewGuardrail(tenantRepo, creativeRepo), workflowService,
		mediaBuyRepo, productRepo, creativeRepo, auditRepo, publisher, log)
	poller := services.NewStatusPoller(resolver, mediaBuyRepo, publisher, cfg.StatusPollConcurrency, log)

	log.Info("worker started",
		zap.Duration("approval_sweep_interval", cfg.ApprovalSweepInterval),
		zap.Duration("status_poll_interval", cfg.StatusPollInterval),
	)

	// Liveness for the orchestrator
	health := fiber.New(fiber.Config{DisableStartupMessage: true})
	health.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	go func() {
		if err := health.Listen(fmt.Sprintf(":%s", cfg.WorkerPort)); err != nil {
			log.Error("worker health server stopped", zap.Error(err))
		}
	}()
	defer health.Shutdown()

	// Run jobs on tickers
	sweepTicker := time.NewTicker(positive(cfg.ApprovalSweepInterval, 5*time.Minute))
	pollTicker := time.NewTicker(positive(cfg.StatusPollInterval, 10*time.Minute))
	defer sweepTicker.Stop()
	defer pollTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			runApprovalSweep(ctx, workflowService, cfg, log)
		case <-pollTicker.C:
			runStatusPoll(ctx, poller, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runApprovalSweep(ctx context.Context, workflowService *services.WorkflowService, cfg *config.Config, log *zap.Logger) {
	if cfg.ApprovalAutoSweepAge <= 0 {
		return
	}
	n, err := workflowService.AutoApproveStale(ctx, cfg.ApprovalAutoSweepAge)
	if err != nil {
		log.Error("approval sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("auto-approved stale workflow steps", zap.Int("count", n))
	}
}

func runStatusPoll(ctx context.Context, poller *services.StatusPoller, log *zap.Logger) {
	changed, err := poller.Poll(ctx)
	if err != nil {
		log.Error("status poll failed", zap.Error(err))
		return
	}
	log.Info("status poll finished", zap.Int("changed", changed))
}

func positive(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
