// Package middleware provides HTTP middleware components for the application.
package middleware

import (
	"strings"

	"stakeoption/internal/models"
	"stakeoption/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthMiddleware validates bearer tokens issued by the auth service.
type AuthMiddleware struct {
	secret string
	log    *zap.Logger
}

func NewAuthMiddleware(secret string, log *zap.Logger) *AuthMiddleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthMiddleware{secret: secret, log: log}
}

// Handler validates the JWT and stores its claims under "claims" and the
// user ID under "userID".
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return utils.Unauthorized(c, "missing authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return utils.Unauthorized(c, "invalid authorization format")
	}

	claims, err := utils.ParseToken(strings.TrimPrefix(authHeader, "Bearer "), m.secret)
	if err != nil {
		m.log.Debug("token rejected", zap.String("path", c.Path()), zap.Error(err))
		return utils.Unauthorized(c, "invalid token")
	}

	c.Locals("claims", claims)
	c.Locals("userID", claims.UserID)
	return c.Next()
}

// AdminAuthMiddleware verifies that the request has valid admin claims.
func AdminAuthMiddleware(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok {
		return utils.Unauthorized(c, "invalid claims")
	}
	if !claims.IsAdmin() {
		return utils.Forbidden(c, "insufficient permissions")
	}
	return c.Next()
}
