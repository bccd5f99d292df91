package policy

import "github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"

// StockPolicy protects branch inventory levels.
type StockPolicy struct{}

// Stocks is the shared branch stock policy.
var Stocks StockPolicy

// CanView allows admins and personnel of the branch.
func (StockPolicy) CanView(actor identity.Actor, s Stock) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	if actor.Is(identity.RoleStaff, identity.RoleOptometrist) && actor.SharesBranch(&s.BranchID) {
		return allow(ReasonBranchScope)
	}
	return deny(ReasonDefaultDeny)
}

// CanUpdate allows admins and staff of the branch.
func (StockPolicy) CanUpdate(actor identity.Actor, s Stock) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	if actor.Role != identity.RoleStaff {
		return deny(ReasonRoleDenied)
	}
	if actor.SharesBranch(&s.BranchID) {
		return allow(ReasonBranchScope)
	}
	return deny(ReasonDefaultDeny)
}
