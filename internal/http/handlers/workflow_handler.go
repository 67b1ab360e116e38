package handlers

import (
	"strconv"

	"github.com/adcp/salesagent/internal/http/dto"
	"github.com/adcp/salesagent/internal/middleware"
	"github.com/adcp/salesagent/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type WorkflowHandler struct {
	workflowService *services.WorkflowService
	log             *zap.Logger
}

func NewWorkflowHandler(workflowService *services.WorkflowService, log *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{workflowService: workflowService, log: log}
}

func (h *WorkflowHandler) ListPending(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	steps, err := h.workflowService.ListPending(c.UserContext(), middleware.GetTenantID(c), limit, offset)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: steps})
}

func (h *WorkflowHandler) GetStep(c *fiber.Ctx) error {
	step, mappings, err := h.workflowService.Get(c.UserContext(), middleware.GetTenantID(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"step": step, "objects": mappings}})
}

func (h *WorkflowHandler) Approve(c *fiber.Ctx) error {
	step, err := h.workflowService.Approve(c.UserContext(), middleware.GetTenantID(c), c.Params("id"), middleware.GetPrincipalID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: step})
}

func (h *WorkflowHandler) Reject(c *fiber.Ctx) error {
	var req dto.RejectStepRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request")
		}
	}

	step, err := h.workflowService.Reject(c.UserContext(), middleware.GetTenantID(c), c.Params("id"), middleware.GetPrincipalID(c), req.Reason)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: step})
}
