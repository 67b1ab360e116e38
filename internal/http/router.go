package http

import (
	"time"

	"github.com/adcp/salesagent/internal/config"
	"github.com/adcp/salesagent/internal/http/handlers"
	"github.com/adcp/salesagent/internal/middleware"
	"github.com/adcp/salesagent/internal/rbac"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handlers struct {
	Products  *handlers.ProductHandler
	MediaBuys *handlers.MediaBuyHandler
	Creatives *handlers.CreativeHandler
	Workflow  *handlers.WorkflowHandler
	WSHub     *handlers.WSHub
}

func SetupRouter(app *fiber.App, cfg *config.Config, log *zap.Logger, rdb *redis.Client, h Handlers) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1", middleware.AuthMiddleware(cfg, log))
	if rdb != nil {
		api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute, log))
	}

	perm := middleware.RequirePermission

	// Products
	api.Get("/products", perm(rbac.PermListProducts), h.Products.ListProducts)

	// Media buys
	api.Post("/media-buys", perm(rbac.PermCreateMediaBuy), h.MediaBuys.CreateMediaBuy)
	api.Get("/media-buys", perm(rbac.PermReadMediaBuy), h.MediaBuys.ListMediaBuys)
	api.Get("/media-buys/:id", perm(rbac.PermReadMediaBuy), h.MediaBuys.GetMediaBuy)
	api.Patch("/media-buys/:id", perm(rbac.PermUpdateMediaBuy), h.MediaBuys.UpdateMediaBuy)
	api.Get("/media-buys/:id/status", perm(rbac.PermReadMediaBuy), h.MediaBuys.GetStatus)
	api.Get("/media-buys/:id/delivery", perm(rbac.PermReadMediaBuy), h.MediaBuys.GetDelivery)
	api.Post("/media-buys/:id/performance-index", perm(rbac.PermUpdateMediaBuy), h.MediaBuys.UpdatePerformanceIndex)
	api.Post("/media-buys/:id/creatives", perm(rbac.PermManageCreatives), h.MediaBuys.AssignCreatives)

	// Creatives
	api.Post("/creatives", perm(rbac.PermManageCreatives), h.Creatives.SubmitCreative)
	api.Post("/creatives/:id/review", perm(rbac.PermReviewCreative), h.Creatives.ReviewCreative)

	// Workflow (human in the loop)
	api.Get("/workflow/steps", perm(rbac.PermReadWorkflow), h.Workflow.ListPending)
	api.Get("/workflow/steps/:id", perm(rbac.PermReadWorkflow), h.Workflow.GetStep)
	api.Post("/workflow/steps/:id/approve", perm(rbac.PermApproveStep), h.Workflow.Approve)
	api.Post("/workflow/steps/:id/reject", perm(rbac.PermApproveStep), h.Workflow.Reject)

	// WebSocket
	if h.WSHub != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(h.WSHub.HandleWS))
	}
}
