package auth

import (
	"time"

	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         shared.Role
	IsActive     bool
}

// Principal converts the account into the request principal.
func (u *User) Principal() *shared.Principal {
	return &shared.Principal{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Active: u.IsActive,
	}
}

// Session is the result of a successful login.
type Session struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      *shared.Principal `json:"user"`
}
