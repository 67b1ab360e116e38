package handlers

import (
	"strconv"
	"time"

	"github.com/adcp/salesagent/internal/adapters"
	"github.com/adcp/salesagent/internal/http/dto"
	"github.com/adcp/salesagent/internal/middleware"
	"github.com/adcp/salesagent/internal/repositories"
	"github.com/adcp/salesagent/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type MediaBuyHandler struct {
	mediaBuyService *services.MediaBuyService
	log             *zap.Logger
}

func NewMediaBuyHandler(mediaBuyService *services.MediaBuyService, log *zap.Logger) *MediaBuyHandler {
	return &MediaBuyHandler{mediaBuyService: mediaBuyService, log: log}
}

func (h *MediaBuyHandler) CreateMediaBuy(c *fiber.Ctx) error {
	var req dto.CreateMediaBuyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ToolResponse{Status: dto.ToolStatusError, Error: "invalid request", Code: "invalid_request"})
	}

	svcReq, start, end := req.ToService(time.Now())
	res, err := h.mediaBuyService.CreateMediaBuy(c.UserContext(), middleware.GetTenantID(c), middleware.GetPrincipalID(c), svcReq, start, end)
	if err != nil {
		return writeToolError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.ToolResponse{
		Status:     dto.ToolStatusSuccess,
		MediaBuyID: res.MediaBuyID,
		BuyerRef:   res.BuyerRef,
		Data:       res,
	})
}

func (h *MediaBuyHandler) UpdateMediaBuy(c *fiber.Ctx) error {
	var req dto.UpdateMediaBuyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ToolResponse{Status: dto.ToolStatusError, Error: "invalid request", Code: "invalid_request"})
	}

	res, err := h.mediaBuyService.UpdateMediaBuy(c.UserContext(), middleware.GetTenantID(c), middleware.GetPrincipalID(c), services.UpdateMediaBuyRequest{
		MediaBuyID:  c.Params("id"),
		BuyerRef:    req.BuyerRef,
		Action:      req.Action,
		PackageID:   req.PackageID,
		Budget:      req.Budget,
		Impressions: req.Impressions,
	})
	if err != nil {
		return writeToolError(c, h.log, err)
	}

	status := fiber.StatusOK
	if res.Status == services.UpdateStatusPendingApproval {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(dto.ToolResponse{Status: dto.ToolStatusSuccess, MediaBuyID: res.MediaBuyID, Data: res})
}

func (h *MediaBuyHandler) UpdatePerformanceIndex(c *fiber.Ctx) error {
	var req dto.UpdatePerformanceIndexRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if len(req.PackagePerformance) == 0 {
		return badRequest(c, "package_performance is required")
	}

	ok, err := h.mediaBuyService.UpdatePerformanceIndex(c.UserContext(), middleware.GetTenantID(c), middleware.GetPrincipalID(c), c.Params("id"), req.PackagePerformance)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: ok})
}

func (h *MediaBuyHandler) GetMediaBuy(c *fiber.Ctx) error {
	buy, err := h.mediaBuyService.GetMediaBuy(c.UserContext(), middleware.GetTenantID(c), middleware.GetPrincipalID(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: buy})
}

func (h *MediaBuyHandler) ListMediaBuys(c *fiber.Ctx) error {
	filter := repositories.MediaBuyFilter{
		TenantID:    middleware.GetTenantID(c),
		PrincipalID: middleware.GetPrincipalID(c),
		Limit:       20,
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}

	buys, err := h.mediaBuyService.ListMediaBuys(c.UserContext(), filter)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: buys})
}

func (h *MediaBuyHandler) GetStatus(c *fiber.Ctx) error {
	st, err := h.mediaBuyService.GetMediaBuyStatus(c.UserContext(), middleware.GetTenantID(c), middleware.GetPrincipalID(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: st})
}

// GetDelivery accepts optional RFC 3339 start/end query parameters.
func (h *MediaBuyHandler) GetDelivery(c *fiber.Ctx) error {
	var period adapters.DateRange
	for name, dst := range map[string]*time.Time{"start": &period.Start, "end": &period.End} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return badRequest(c, "invalid "+name+" date")
		}
		*dst = t
	}

	report, err := h.mediaBuyService.GetMediaBuyDelivery(c.UserContext(), middleware.GetTenantID(c), middleware.GetPrincipalID(c), c.Params("id"), period)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: report})
}

func (h *MediaBuyHandler) AssignCreatives(c *fiber.Ctx) error {
	var req dto.AssignCreativesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.PackageID == "" {
		return badRequest(c, "package_id is required")
	}

	res, err := h.mediaBuyService.AssignCreatives(c.UserContext(), middleware.GetTenantID(c), middleware.GetPrincipalID(c), c.Params("id"), req.PackageID, req.CreativeIDs)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}
