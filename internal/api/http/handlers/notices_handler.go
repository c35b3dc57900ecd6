package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/logistics-dashboard/internal/api/dto"
	"github.com/spec-kit/logistics-dashboard/internal/auth"
	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/service"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

// NoticesHandler lets managers push system notices to live dashboards.
type NoticesHandler struct {
	notices *service.NotificationService
}

// NewNoticesHandler constructs handler.
func NewNoticesHandler(notices *service.NotificationService) *NoticesHandler {
	return &NoticesHandler{notices: notices}
}

// Create handles POST /api/notices.
func (h *NoticesHandler) Create(c *fiber.Ctx) error {
	s, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.NoticeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := apperrors.ValidateStruct(req); err != nil {
		return err
	}
	roles := make([]domain.Role, 0, len(req.Roles))
	for _, raw := range req.Roles {
		role, err := domain.ParseRole(raw)
		if err != nil {
			return apperrors.NewValidationError("invalid notice", map[string]any{"roles": err.Error()})
		}
		roles = append(roles, role)
	}

	if err := h.notices.Announce(c.UserContext(), s, req.Message, roles); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"message": req.Message, "roles": roles}})
}
