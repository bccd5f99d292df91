package policy

import "github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"

// PrescriptionPolicy protects clinical prescription records.
type PrescriptionPolicy struct{}

// Prescriptions is the shared prescription policy.
var Prescriptions PrescriptionPolicy

// CanViewAny allows admins and optometrists to browse every prescription.
func (PrescriptionPolicy) CanViewAny(actor identity.Actor) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	if actor.Role == identity.RoleOptometrist {
		return allow(ReasonRoleAllowed)
	}
	return deny(ReasonRoleDenied)
}

// CanView allows admins, the prescribing optometrist and the patient.
func (PrescriptionPolicy) CanView(actor identity.Actor, rx Prescription) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	switch actor.Role {
	case identity.RoleOptometrist:
		if rx.OptometristID == actor.ID {
			return allow(ReasonOwner)
		}
	case identity.RoleCustomer:
		if rx.PatientID == actor.ID {
			return allow(ReasonOwner)
		}
	}
	return deny(ReasonDefaultDeny)
}

// CanCreate allows optometrists only.
func (PrescriptionPolicy) CanCreate(actor identity.Actor) Decision {
	if actor.Role == identity.RoleOptometrist {
		return allow(ReasonRoleAllowed)
	}
	return deny(ReasonRoleDenied)
}

// CanUpdate allows admins and the prescribing optometrist.
func (PrescriptionPolicy) CanUpdate(actor identity.Actor, rx Prescription) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	if actor.Role == identity.RoleOptometrist && rx.OptometristID == actor.ID {
		return allow(ReasonOwner)
	}
	return deny(ReasonDefaultDeny)
}

// CanDelete is admin-only.
func (PrescriptionPolicy) CanDelete(actor identity.Actor, _ Prescription) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	return deny(ReasonRoleDenied)
}
