package policy

import "github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"

// TransactionPolicy protects financial records.
type TransactionPolicy struct{}

// Transactions is the shared transaction policy.
var Transactions TransactionPolicy

// CanViewAny allows admins and staff.
func (TransactionPolicy) CanViewAny(actor identity.Actor) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	if actor.Role == identity.RoleStaff {
		return allow(ReasonRoleAllowed)
	}
	return deny(ReasonRoleDenied)
}

// CanView allows admins, staff of the owning branch and the owning customer.
func (TransactionPolicy) CanView(actor identity.Actor, tx Transaction) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	switch actor.Role {
	case identity.RoleCustomer:
		if tx.CustomerID == actor.ID {
			return allow(ReasonOwner)
		}
	case identity.RoleStaff:
		if actor.SharesBranch(&tx.BranchID) {
			return allow(ReasonBranchScope)
		}
	}
	return deny(ReasonDefaultDeny)
}

// CanCreate allows staff only.
func (TransactionPolicy) CanCreate(actor identity.Actor) Decision {
	if actor.Role == identity.RoleStaff {
		return allow(ReasonRoleAllowed)
	}
	return deny(ReasonRoleDenied)
}

// CanUpdate allows admins for corrections, and staff of the owning branch
// while the transaction is not completed.
func (TransactionPolicy) CanUpdate(actor identity.Actor, tx Transaction) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	if actor.Role != identity.RoleStaff {
		return deny(ReasonRoleDenied)
	}
	if tx.Terminal() {
		return deny(ReasonTerminalState)
	}
	if actor.SharesBranch(&tx.BranchID) {
		return allow(ReasonBranchScope)
	}
	return deny(ReasonDefaultDeny)
}

// CanDelete allows admins on non-terminal transactions. Completed transactions
// must go through CanVoid.
func (TransactionPolicy) CanDelete(actor identity.Actor, tx Transaction) Decision {
	if !actor.IsAdmin() {
		return deny(ReasonRoleDenied)
	}
	if tx.Terminal() {
		return deny(ReasonTerminalState)
	}
	return allow(ReasonAdminOverride)
}

// CanVoid allows admins regardless of state.
func (TransactionPolicy) CanVoid(actor identity.Actor, _ Transaction) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	return deny(ReasonRoleDenied)
}
