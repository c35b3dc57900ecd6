package domain

import "time"

// Session is the authenticated-user record shared by the server and clients.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// SameIdentity reports whether two sessions describe the same user and role.
func (s *Session) SameIdentity(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.UserID == other.UserID && s.Username == other.Username && s.Role == other.Role
}
