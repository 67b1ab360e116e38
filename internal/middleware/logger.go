package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const ctxLogger = "logger"

// LoggerMiddleware writes one access line per request and stores a logger
// tagged with the request id for handlers to pick up via RequestLogger.
func LoggerMiddleware(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		c.Locals(ctxLogger, log.With(zap.String("request_id", GetRequestID(c))))

		err := c.Next()

		status := responseStatus(c, err)
		fields := append(identityFields(c),
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		)

		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("request", append(fields, zap.Error(err))...)
		case c.Path() == "/health":
			log.Debug("request", fields...)
		default:
			log.Info("request", fields...)
		}

		return err
	}
}

// RequestLogger returns the request's logger with the caller identity once
// auth has run. fallback is used outside LoggerMiddleware.
func RequestLogger(c *fiber.Ctx, fallback *zap.Logger) *zap.Logger {
	log, ok := c.Locals(ctxLogger).(*zap.Logger)
	if !ok {
		log = fallback.With(zap.String("request_id", GetRequestID(c)))
	}
	return log.With(identityFields(c)...)
}

func identityFields(c *fiber.Ctx) []zap.Field {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return nil
	}
	return []zap.Field{
		zap.String("tenant_id", tenantID),
		zap.String("principal_id", GetPrincipalID(c)),
		zap.String("role", GetRole(c)),
	}
}

// responseStatus accounts for errors the app error handler has not turned
// into a response yet.
func responseStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
