package domain

import "time"

// User is a dashboard account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
