package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/logistics-dashboard/internal/api/dto"
	"github.com/spec-kit/logistics-dashboard/internal/auth"
	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/service"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

// TasksHandler handles warehouse task mutations.
type TasksHandler struct {
	tasks *service.TaskService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(taskService *service.TaskService) *TasksHandler {
	return &TasksHandler{tasks: taskService}
}

// Update returns the PATCH /api/warehouse/<kind>-tasks/:id handler.
func (h *TasksHandler) Update(kind domain.TaskKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, ok := auth.SessionFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}

		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return apperrors.NewNotFound(string(kind)+" task", map[string]any{"task_id": c.Params("id")})
		}

		var req dto.TaskUpdateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
		if err := apperrors.ValidateStruct(req); err != nil {
			return err
		}
		if req.Empty() {
			return apperrors.NewValidationError("nothing to update", map[string]any{
				"fields": "one of status, assignedTo, startedAt is required",
			})
		}

		task, err := h.tasks.UpdateTask(c.UserContext(), s, kind, id.String(), service.TaskUpdateInput{
			Status:     req.TaskStatus(),
			AssignedTo: req.AssignedTo,
			StartedAt:  req.StartedAt,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": task})
	}
}
