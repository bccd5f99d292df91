// Package identity describes the authenticated actor that every request runs as.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the closed set of clinic roles. An actor holds exactly one.
type Role string

const (
	// RoleCustomer is a patient or shop customer.
	RoleCustomer Role = "customer"
	// RoleStaff works the counter of a single branch.
	RoleStaff Role = "staff"
	// RoleOptometrist examines patients and issues prescriptions.
	RoleOptometrist Role = "optometrist"
	// RoleAdmin manages every branch.
	RoleAdmin Role = "admin"
)

// ErrUnknownRole is returned when a role string is outside the closed set.
var ErrUnknownRole = errors.New("identity: unknown role")

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleCustomer, RoleStaff, RoleOptometrist, RoleAdmin}
}

// ParseRole converts raw input into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleOptometrist, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
