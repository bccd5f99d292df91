package users

import (
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
)

// User represents a clinic account for management.
type User struct {
	ID         int64         `json:"id"`
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	Role       identity.Role `json:"role"`
	BranchID   *int64        `json:"branch_id"`
	IsActive   bool          `json:"is_active"`
	IsApproved bool          `json:"is_approved"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Snapshot returns the policy view of the account.
func (u User) Snapshot() policy.User {
	return policy.User{ID: u.ID, BranchID: u.BranchID}
}

// ListFilter narrows account listings.
type ListFilter struct {
	Role        identity.Role
	BranchID    *int64
	PendingOnly bool
}

// UpdateInput carries a partial account update. Nil fields are left unchanged.
type UpdateInput struct {
	Name     *string        `json:"name" validate:"omitempty,min=1,max=120"`
	Email    *string        `json:"email" validate:"omitempty,email"`
	Role     *identity.Role `json:"role" validate:"omitempty,oneof=customer staff optometrist admin"`
	BranchID *int64         `json:"branch_id" validate:"omitempty,gt=0"`
	IsActive *bool          `json:"is_active"`
}

// administrative reports whether the update touches admin-only fields.
func (in UpdateInput) administrative() bool {
	return in.Role != nil || in.BranchID != nil || in.IsActive != nil
}
