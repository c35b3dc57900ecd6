package dto

import (
	"time"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
)

// LoginRequest payload for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginResponse is the data of a successful login.
type LoginResponse struct {
	Session *domain.Session `json:"session"`
	Auth    AuthResponse    `json:"auth"`
}
