package http

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/api/http/handlers"
	"github.com/spec-kit/logistics-dashboard/internal/auth"
	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/guard"
	"github.com/spec-kit/logistics-dashboard/internal/live"
	"github.com/spec-kit/logistics-dashboard/internal/observability"
	"github.com/spec-kit/logistics-dashboard/internal/service"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Auth       *handlers.AuthHandler
	Resources  *handlers.ResourcesHandler
	Tasks      *handlers.TasksHandler
	Notices    *handlers.NoticesHandler
	Navigation *handlers.NavigationHandler
	Pages      *handlers.PagesHandler
	Live       *live.Handler
	Sessions   *auth.SessionMiddleware
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	StaticDir  string
}

// RegisterRoutes wires HTTP routes. Page routes are registered last so API, websocket and
// asset paths never reach the route guard.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")
	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Sessions.Handle, cfg.Auth.Logout)
	authGroup.Get("/session", cfg.Sessions.Handle, cfg.Auth.Session)

	api.Get("/navigation", cfg.Sessions.Attach, cfg.Navigation.Decide)

	protected := api.Group("", cfg.Sessions.Handle, auth.RequireSession())
	for _, kind := range domain.ResourceKinds {
		protected.Get(kind.APIPath(), cfg.Resources.List(kind))
	}

	tasks := protected.Group("/warehouse", auth.RequireRole(service.TaskEditorRoles...))
	for _, kind := range []domain.TaskKind{domain.TaskKindPick, domain.TaskKindPacking} {
		tasks.Patch("/"+string(kind)+"-tasks/:id", cfg.Tasks.Update(kind))
	}
	if cfg.Notices != nil {
		protected.Post("/notices", auth.RequireRole(service.NoticeAuthorRoles...), cfg.Notices.Create)
	}
	api.All("/*", func(c *fiber.Ctx) error { return fiber.ErrNotFound })

	app.Get("/ws", cfg.Sessions.Handle, cfg.Live.Upgrade, cfg.Live.Serve())

	if cfg.StaticDir != "" {
		if _, err := os.Stat(cfg.StaticDir); err == nil {
			app.Static("/assets", cfg.StaticDir+"/assets")
		}
	}
	app.Get("/*", cfg.Sessions.Attach, guard.Middleware(cfg.Metrics, cfg.Logger), cfg.Pages.Render)
}
