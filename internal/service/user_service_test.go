package service

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/logistics-dashboard/internal/auth"
	"github.com/spec-kit/logistics-dashboard/internal/domain"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

func TestCreateUserHashesPassword(t *testing.T) {
	users := &fakeUsers{byName: map[string]*domain.User{}}
	svc := NewUserService(users, 4, nil)

	user, err := svc.CreateUser(context.Background(), " owner ", "hunter2", domain.RoleBusinessOwner)
	require.NoError(t, err)
	assert.Equal(t, "owner", user.Username)
	assert.True(t, user.Active)
	assert.NotEqual(t, "hunter2", user.PasswordHash)
	assert.NoError(t, auth.ComparePassword(users.byName["owner"].PasswordHash, "hunter2"))

	_, err = svc.CreateUser(context.Background(), "owner", "other", domain.RoleDriver)
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "CONFLICT", de.Code)
}

func TestCreateUserValidation(t *testing.T) {
	svc := NewUserService(&fakeUsers{byName: map[string]*domain.User{}}, 4, nil)

	_, err := svc.CreateUser(context.Background(), "", "", domain.Role("admin"))
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "VALIDATION_FAILED", de.Code)
	assert.Len(t, de.Details, 3)
}

type racingUsers struct{ fakeUsers }

func (r *racingUsers) Create(context.Context, *domain.User) error {
	return &pgconn.PgError{Code: uniqueViolation}
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	svc := NewUserService(&racingUsers{fakeUsers{byName: map[string]*domain.User{}}}, 4, nil)

	_, err := svc.CreateUser(context.Background(), "owner", "pw", domain.RoleBusinessOwner)
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "CONFLICT", de.Code)
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	users := &fakeUsers{byName: map[string]*domain.User{}}
	svc := NewUserService(users, 4, nil)
	ctx := context.Background()

	created, err := svc.EnsureUser(ctx, "owner", "pw", domain.RoleBusinessOwner)
	require.NoError(t, err)
	assert.True(t, created)
	first := users.byName["owner"].PasswordHash

	created, err = svc.EnsureUser(ctx, "owner", "changed", domain.RoleBusinessOwner)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, users.byName["owner"].PasswordHash)

	_, err = svc.EnsureUser(ctx, "", "pw", domain.RoleBusinessOwner)
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "VALIDATION_FAILED", de.Code)
}
