package handlers

import (
	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/http/dto"
	"github.com/adcp/salesagent/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StatusFor maps a domain error kind to an HTTP status.
func StatusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return fiber.StatusBadRequest
	case errs.KindAdapter:
		return fiber.StatusBadGateway
	case errs.KindNotFound:
		return fiber.StatusNotFound
	case errs.KindTenant:
		return fiber.StatusForbidden
	}
	return fiber.StatusInternalServerError
}

// publicError hides internal error text from callers.
func publicError(err error) dto.ErrorResponse {
	e, ok := errs.As(err)
	if !ok || e.Kind == errs.KindInternal {
		msg := "internal error"
		if ok {
			msg = e.Message
		}
		return dto.ErrorResponse{Error: msg, Code: "internal"}
	}
	return dto.ErrorResponse{Error: e.Message, Code: e.Code, Detail: e.Detail, Backend: e.Backend}
}

func logFailure(c *fiber.Ctx, log *zap.Logger, err error, status int) {
	if status >= fiber.StatusInternalServerError {
		middleware.RequestLogger(c, log).Error("request failed",
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
}

func writeError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := StatusFor(err)
	logFailure(c, log, err, status)
	body := publicError(err)
	body.RequestID = middleware.GetRequestID(c)
	return c.Status(status).JSON(body)
}

// writeToolError answers an agent-facing operation with the tool envelope.
func writeToolError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := StatusFor(err)
	logFailure(c, log, err, status)
	body := publicError(err)
	detail := body.Detail
	if body.Backend != "" && detail == "" {
		detail = "backend: " + body.Backend
	}
	return c.Status(status).JSON(dto.ToolResponse{
		Status: dto.ToolStatusError,
		Error:  body.Error,
		Code:   body.Code,
		Detail: detail,
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, Code: "invalid_request", RequestID: middleware.GetRequestID(c)})
}
