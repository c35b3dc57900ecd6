package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/logistics-dashboard/internal/auth"
	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/events"
	"github.com/spec-kit/logistics-dashboard/internal/repository"
	"github.com/spec-kit/logistics-dashboard/internal/session"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

// AuthService coordinates login and logout.
type AuthService struct {
	users      repository.UserRepository
	sessions   session.Store
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
	now        func() time.Time
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Sessions   session.Store
	Tokens     *auth.TokenManager
	Dispatcher events.Dispatcher
}

// LoginResult carries the new session and its bearer token.
type LoginResult struct {
	Session   *domain.Session
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		sessions:   deps.Sessions,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		now:        time.Now,
	}
}

// Login verifies credentials, stores a new session and signs a token for it.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Active {
		return nil, apperrors.NewForbidden("account disabled")
	}
	if !user.Role.Valid() {
		return nil, apperrors.NewForbidden("account has no dashboard role")
	}

	sess := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, apperrors.NewUnavailable("session store unavailable", err)
	}

	token, exp, err := s.tokens.GenerateToken(sess)
	if err != nil {
		_ = s.sessions.Delete(ctx, sess.ID)
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.EventUserLoggedIn, sess)
	return &LoginResult{Session: sess, Token: token, ExpiresAt: exp}, nil
}

// Logout deletes the server-side session; the token stops resolving immediately.
func (s *AuthService) Logout(ctx context.Context, sess *domain.Session) error {
	if sess == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return apperrors.NewUnavailable("session store unavailable", err)
	}
	s.publish(ctx, events.EventUserLoggedOut, sess)
	return nil
}

func (s *AuthService) publish(ctx context.Context, t events.EventType, sess *domain.Session) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      t,
		Actor:     events.ActorFromSession(sess),
		Timestamp: s.now(),
	})
}
