package middleware

import (
	"strings"

	"github.com/adcp/salesagent/internal/auth"
	"github.com/adcp/salesagent/internal/config"
	"github.com/adcp/salesagent/internal/rbac"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	CtxTenantID    = "tenant_id"
	CtxPrincipalID = "principal_id"
	CtxRole        = "role"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxTenantID, claims.TenantID)
		c.Locals(CtxPrincipalID, claims.PrincipalID)
		c.Locals(CtxRole, EffectiveRole(cfg, claims))

		return c.Next()
	}
}

// EffectiveRole falls back to principal for unknown roles and promotes
// principals listed in REVIEWER_IDS.
func EffectiveRole(cfg *config.Config, claims *auth.Claims) string {
	role := claims.Role
	if !rbac.IsValidRole(role) {
		role = rbac.RolePrincipal
	}
	if role == rbac.RolePrincipal && cfg.IsReviewer(claims.PrincipalID) {
		role = rbac.RoleReviewer
	}
	return role
}

func GetTenantID(c *fiber.Ctx) string {
	id, _ := c.Locals(CtxTenantID).(string)
	return id
}

func GetPrincipalID(c *fiber.Ctx) string {
	id, _ := c.Locals(CtxPrincipalID).(string)
	return id
}

func GetRole(c *fiber.Ctx) string {
	role, _ := c.Locals(CtxRole).(string)
	return role
}

// RequirePermission rejects callers whose role lacks perm.
func RequirePermission(perm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rbac.HasPermission(GetRole(c), perm) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": perm + " permission required"})
		}
		return c.Next()
	}
}
