package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/logistics-dashboard/internal/api/dto"
	"github.com/spec-kit/logistics-dashboard/internal/auth"
	"github.com/spec-kit/logistics-dashboard/internal/service"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

// AuthHandler exposes login, logout and session endpoints.
type AuthHandler struct {
	auth         *service.AuthService
	cookieSecure bool
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: authService, cookieSecure: cookieSecure}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := apperrors.ValidateStruct(req); err != nil {
		return err
	}

	res, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{
		"data": dto.LoginResponse{
			Session: res.Session,
			Auth:    dto.AuthResponse{Token: res.Token, ExpiresAt: res.ExpiresAt},
		},
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	s, _ := auth.SessionFromContext(c)
	if err := h.auth.Logout(c.UserContext(), s); err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.SendStatus(http.StatusNoContent)
}

// Session handles GET /api/auth/session.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	s, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": s})
}
