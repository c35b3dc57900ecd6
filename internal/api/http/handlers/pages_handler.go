package handlers

import (
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/logistics-dashboard/internal/access"
	"github.com/spec-kit/logistics-dashboard/internal/auth"
	"github.com/spec-kit/logistics-dashboard/internal/guard"
)

// PagesHandler renders dashboard pages that passed the route guard.
type PagesHandler struct {
	index string
}

// NewPagesHandler serves staticDir/index.html when it exists.
func NewPagesHandler(staticDir string) *PagesHandler {
	index := filepath.Join(staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		index = ""
	}
	return &PagesHandler{index: index}
}

// Render handles every guarded page route.
func (h *PagesHandler) Render(c *fiber.Ctx) error {
	if h.index != "" {
		return c.SendFile(h.index)
	}
	d, _ := guard.FromContext(c)
	data := fiber.Map{"path": d.Path}
	if s, ok := auth.SessionFromContext(c); ok && s.Role.Valid() {
		data["session"] = s
		data["home"] = access.DefaultRoute(s.Role)
	}
	return c.JSON(fiber.Map{"data": data})
}
