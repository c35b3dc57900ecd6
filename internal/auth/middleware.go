package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/session"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

const sessionKey = "auth_session"

// SessionCookie carries the bearer token for browser clients.
const SessionCookie = "session"

// SessionMiddleware resolves the caller's session from a bearer token or cookie.
type SessionMiddleware struct {
	tokens *TokenManager
	store  session.Store
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(tokens *TokenManager, store session.Store) *SessionMiddleware {
	return &SessionMiddleware{tokens: tokens, store: store}
}

// Handle enforces authentication for protected routes.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	s, err := m.resolve(c)
	if err != nil {
		return err
	}
	c.Locals(sessionKey, s)
	return c.Next()
}

// Attach loads the session when one is presented but lets anonymous requests through.
func (m *SessionMiddleware) Attach(c *fiber.Ctx) error {
	if s, err := m.resolve(c); err == nil {
		c.Locals(sessionKey, s)
	}
	return c.Next()
}

func (m *SessionMiddleware) resolve(c *fiber.Ctx) (*domain.Session, error) {
	raw, err := tokenFromRequest(c)
	if err != nil {
		return nil, err
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	s, err := m.store.Get(c.UserContext(), claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("session expired")
		}
		return nil, apperrors.MapError(err)
	}
	if s.UserID != claims.UserID || s.Role != claims.Role {
		return nil, apperrors.NewUnauthorized("session mismatch")
	}
	return s, nil
}

// tokenFromRequest extracts the raw token; websocket upgrades may also pass ?token=.
func tokenFromRequest(c *fiber.Ctx) (string, error) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", apperrors.NewUnauthorized("invalid authorization header")
		}
		return parts[1], nil
	}
	if cookie := c.Cookies(SessionCookie); cookie != "" {
		return cookie, nil
	}
	if strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket") {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
	}
	return "", apperrors.NewUnauthorized("missing authorization header")
}

// SessionFromContext retrieves the authenticated session.
func SessionFromContext(c *fiber.Ctx) (*domain.Session, bool) {
	val := c.Locals(sessionKey)
	if val == nil {
		return nil, false
	}
	s, ok := val.(*domain.Session)
	return s, ok && s != nil
}
