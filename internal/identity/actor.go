package identity

import "context"

// Actor is a snapshot of the authenticated identity performing an action.
type Actor struct {
	ID       int64
	Role     Role
	BranchID *int64
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Is reports whether the actor holds any of the given roles.
func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// Branch returns the actor branch when assigned.
func (a Actor) Branch() (int64, bool) {
	if a.BranchID == nil {
		return 0, false
	}
	return *a.BranchID, true
}

// SharesBranch reports whether the actor is assigned to branchID.
// An unassigned side never matches.
func (a Actor) SharesBranch(branchID *int64) bool {
	if a.BranchID == nil || branchID == nil {
		return false
	}
	return *a.BranchID == *branchID
}

// BranchPtr is a small helper for building optional branch ids.
func BranchPtr(id int64) *int64 {
	return &id
}

type actorContextKey struct{}

// WithActor stores the actor in ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
