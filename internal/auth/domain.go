package auth

import (
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         identity.Role
	BranchID     *int64
	IsActive     bool
	IsApproved   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor returns the identity snapshot for the account.
func (u User) Actor() identity.Actor {
	return identity.Actor{ID: u.ID, Role: u.Role, BranchID: u.BranchID}
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      User
}
