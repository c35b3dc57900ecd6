package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/logistics-dashboard/internal/api/dto"
	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/repository"
	"github.com/spec-kit/logistics-dashboard/internal/service"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

// ResourcesHandler serves the read-only collections.
type ResourcesHandler struct {
	resources *service.ResourceService
}

// NewResourcesHandler constructs handler.
func NewResourcesHandler(resources *service.ResourceService) *ResourcesHandler {
	return &ResourcesHandler{resources: resources}
}

// List returns a handler for GET /api/<collection>.
func (h *ResourcesHandler) List(kind domain.ResourceKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q dto.ResourceQuery
		if err := c.QueryParser(&q); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid query")
		}
		if err := apperrors.ValidateStruct(q); err != nil {
			return err
		}
		items, err := h.resources.List(c.UserContext(), kind, repository.ResourceFilter{Limit: q.Limit, Offset: q.Offset})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": items})
	}
}
