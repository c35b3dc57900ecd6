package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/logistics-dashboard/internal/auth"
	"github.com/spec-kit/logistics-dashboard/internal/guard"
	"github.com/spec-kit/logistics-dashboard/internal/observability"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

// NavigationHandler exposes guard decisions to single-page clients.
type NavigationHandler struct {
	metrics *observability.Metrics
}

// NewNavigationHandler constructs handler.
func NewNavigationHandler(metrics *observability.Metrics) *NavigationHandler {
	return &NavigationHandler{metrics: metrics}
}

// Decide handles GET /api/navigation?path=.
func (h *NavigationHandler) Decide(c *fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return apperrors.NewValidationError("path is required", nil)
	}
	s, _ := auth.SessionFromContext(c)
	d := guard.Decide(path, s)
	h.metrics.RecordGuardDecision(string(d.Action))
	return c.JSON(fiber.Map{"data": d})
}
