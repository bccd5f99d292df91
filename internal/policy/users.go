package policy

import "github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"

// UserPolicy protects account records.
type UserPolicy struct{}

// Users is the shared user policy.
var Users UserPolicy

// CanViewAny is admin-only.
func (UserPolicy) CanViewAny(actor identity.Actor) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	return deny(ReasonRoleDenied)
}

// CanView allows admins, the account owner and branch colleagues.
func (UserPolicy) CanView(actor identity.Actor, target User) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	if actor.ID == target.ID {
		return allow(ReasonOwner)
	}
	if actor.Is(identity.RoleStaff, identity.RoleOptometrist) && actor.SharesBranch(target.BranchID) {
		return allow(ReasonBranchScope)
	}
	return deny(ReasonDefaultDeny)
}

// CanCreate is admin-only.
func (UserPolicy) CanCreate(actor identity.Actor) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	return deny(ReasonRoleDenied)
}

// CanUpdate allows admins and the account owner.
func (UserPolicy) CanUpdate(actor identity.Actor, target User) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	if actor.ID == target.ID {
		return allow(ReasonOwner)
	}
	return deny(ReasonDefaultDeny)
}

// CanDelete allows admins, never on their own account.
func (UserPolicy) CanDelete(actor identity.Actor, target User) Decision {
	if !actor.IsAdmin() {
		return deny(ReasonRoleDenied)
	}
	if actor.ID == target.ID {
		return deny(ReasonSelfTarget)
	}
	return allow(ReasonAdminOverride)
}

// CanApprove is admin-only.
func (UserPolicy) CanApprove(actor identity.Actor) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	return deny(ReasonRoleDenied)
}
