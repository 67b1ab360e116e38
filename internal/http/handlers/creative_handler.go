package handlers

import (
	"github.com/adcp/salesagent/internal/http/dto"
	"github.com/adcp/salesagent/internal/middleware"
	"github.com/adcp/salesagent/internal/models"
	"github.com/adcp/salesagent/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CreativeHandler struct {
	creativeService *services.CreativeService
	log             *zap.Logger
}

func NewCreativeHandler(creativeService *services.CreativeService, log *zap.Logger) *CreativeHandler {
	return &CreativeHandler{creativeService: creativeService, log: log}
}

func (h *CreativeHandler) SubmitCreative(c *fiber.Ctx) error {
	var req dto.SubmitCreativeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	creative, err := h.creativeService.Submit(c.UserContext(), models.Creative{
		CreativeID:  req.CreativeID,
		TenantID:    middleware.GetTenantID(c),
		PrincipalID: middleware.GetPrincipalID(c),
		Name:        req.Name,
		Format:      req.Format,
		URL:         req.URL,
		Width:       req.Width,
		Height:      req.Height,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: creative})
}

func (h *CreativeHandler) ReviewCreative(c *fiber.Ctx) error {
	var req dto.ReviewCreativeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	if err := h.creativeService.Review(c.UserContext(), middleware.GetTenantID(c), middleware.GetPrincipalID(c), c.Params("id"), req.Status); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
