package middleware

import (
	"strings"

	"github.com/automax/routing/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// Permission letting a group hand record cards over outside its ambit.
const PermissionReassignOutsideAmbit = "record_cards:reassign_outside_ambit"

type AuthMiddleware struct {
	jwtManager *utils.JWTManager
}

func NewAuthMiddleware(jwtManager *utils.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var token string
		parts := strings.Split(c.Get("Authorization"), " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
		if token == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Missing authorization token")
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired token")
		}

		c.Locals("subject", claims.Subject)
		c.Locals("group_id", claims.GroupID)
		c.Locals("claims", claims)
		return c.Next()
	}
}

// RequirePermission checks the token carries any of the permissions.
func (m *AuthMiddleware) RequirePermission(permissions ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(*utils.Claims)
		if !ok {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated")
		}
		for _, perm := range permissions {
			if claims.HasPermission(perm) {
				return c.Next()
			}
		}
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Insufficient permissions")
	}
}

// ActingGroupID returns the group the request acts for, 0 when unauthenticated.
func ActingGroupID(c *fiber.Ctx) uint {
	id, _ := c.Locals("group_id").(uint)
	return id
}

func HasPermission(c *fiber.Ctx, permission string) bool {
	claims, ok := c.Locals("claims").(*utils.Claims)
	return ok && claims.HasPermission(permission)
}
