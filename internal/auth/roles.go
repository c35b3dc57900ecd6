package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

// RequireSession ensures a session was resolved upstream.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := SessionFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireRole ensures the session has one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		s, ok := SessionFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[s.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
