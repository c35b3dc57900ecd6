package guard

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/auth"
	"github.com/spec-kit/logistics-dashboard/internal/observability"
)

const (
	// NoticeHeader carries the redirect notice for API-aware clients.
	NoticeHeader = "X-Guard-Notice"
	// NoticeCookie is a short-lived flash cookie read by the dashboard shell.
	NoticeCookie = "guard_notice"

	decisionKey = "guard_decision"
)

// Middleware applies Decide to page requests. SessionMiddleware.Attach must run first.
func Middleware(metrics *observability.Metrics, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("guard")

	return func(c *fiber.Ctx) error {
		s, _ := auth.SessionFromContext(c)
		d := Decide(c.Path(), s)
		metrics.RecordGuardDecision(string(d.Action))

		if !d.Redirect() {
			c.Locals(decisionKey, d)
			return c.Next()
		}

		if d.Notice != "" {
			c.Set(NoticeHeader, d.Notice)
			c.Cookie(&fiber.Cookie{
				Name:     NoticeCookie,
				Value:    url.QueryEscape(d.Notice),
				Path:     "/",
				MaxAge:   30,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}
		logger.Debug("navigation redirected",
			zap.String("path", d.Path),
			zap.String("target", d.Target),
			zap.String("action", string(d.Action)))
		return c.Redirect(d.Target, fiber.StatusFound)
	}
}

// FromContext returns the render decision stored by Middleware.
func FromContext(c *fiber.Ctx) (Decision, bool) {
	d, ok := c.Locals(decisionKey).(Decision)
	return d, ok
}
