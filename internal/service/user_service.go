package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/auth"
	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/repository"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

const uniqueViolation = "23505"

// UserService provisions dashboard accounts.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
	logger     *zap.Logger
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, bcryptCost int, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, bcryptCost: bcryptCost, logger: logger.Named("users")}
}

// CreateUser hashes the password and stores a new active account.
func (s *UserService) CreateUser(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	username = strings.TrimSpace(username)
	details := map[string]any{}
	if username == "" {
		details["username"] = "is required"
	}
	if password == "" {
		details["password"] = "is required"
	}
	if !role.Valid() {
		details["role"] = "is not a dashboard role"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid user", details)
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, apperrors.NewConflict("username already taken", map[string]any{"username": username})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{Username: username, PasswordHash: hash, Role: role, Active: true}
	if err := s.users.Create(ctx, user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperrors.NewConflict("username already taken", map[string]any{"username": username})
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user created", zap.String("username", user.Username), zap.String("role", string(role)))
	return user, nil
}

// EnsureUser creates the account unless one with that username already exists.
// It reports whether an account was created.
func (s *UserService) EnsureUser(ctx context.Context, username, password string, role domain.Role) (bool, error) {
	_, err := s.CreateUser(ctx, username, password, role)
	if err == nil {
		return true, nil
	}
	var de *apperrors.DomainError
	if errors.As(err, &de) && de.Code == "CONFLICT" {
		return false, nil
	}
	return false, err
}
