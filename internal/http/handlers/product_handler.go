package handlers

import (
	"github.com/adcp/salesagent/internal/http/dto"
	"github.com/adcp/salesagent/internal/middleware"
	"github.com/adcp/salesagent/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ProductHandler struct {
	productService *services.ProductService
	log            *zap.Logger
}

func NewProductHandler(productService *services.ProductService, log *zap.Logger) *ProductHandler {
	return &ProductHandler{productService: productService, log: log}
}

func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	products, err := h.productService.ListProducts(c.UserContext(), middleware.GetTenantID(c), middleware.GetPrincipalID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: products})
}
