package policy

import "github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"

// AppointmentPolicy protects appointment bookings.
type AppointmentPolicy struct{}

// Appointments is the shared appointment policy.
var Appointments AppointmentPolicy

// CanViewAny allows clinic personnel to browse the schedule.
func (AppointmentPolicy) CanViewAny(actor identity.Actor) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	if actor.Is(identity.RoleStaff, identity.RoleOptometrist) {
		return allow(ReasonRoleAllowed)
	}
	return deny(ReasonRoleDenied)
}

// CanView allows clinic personnel and the patient.
func (AppointmentPolicy) CanView(actor identity.Actor, appt Appointment) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	if actor.Role == identity.RoleCustomer {
		if appt.PatientID == actor.ID {
			return allow(ReasonOwner)
		}
		return deny(ReasonDefaultDeny)
	}
	if actor.Is(identity.RoleStaff, identity.RoleOptometrist) {
		return allow(ReasonRoleAllowed)
	}
	return deny(ReasonRoleDenied)
}

// CanCreate allows every known role; customers may only book for themselves,
// which the caller checks against the patient id.
func (AppointmentPolicy) CanCreate(actor identity.Actor) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	if actor.Role.Valid() {
		return allow(ReasonRoleAllowed)
	}
	return deny(ReasonRoleDenied)
}

// CanCreateFor narrows CanCreate to a concrete patient.
func (p AppointmentPolicy) CanCreateFor(actor identity.Actor, patientID int64) Decision {
	d := p.CanCreate(actor)
	if !d.Allow || actor.Role != identity.RoleCustomer {
		return d
	}
	if patientID == actor.ID {
		return allow(ReasonOwner)
	}
	return deny(ReasonDefaultDeny)
}

// CanUpdate allows admins and staff, the assigned optometrist and the patient.
func (AppointmentPolicy) CanUpdate(actor identity.Actor, appt Appointment) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	switch actor.Role {
	case identity.RoleStaff:
		return allow(ReasonRoleAllowed)
	case identity.RoleOptometrist:
		if appt.OptometristID == actor.ID || appt.PatientID == actor.ID {
			return allow(ReasonOwner)
		}
	case identity.RoleCustomer:
		if appt.PatientID == actor.ID {
			return allow(ReasonOwner)
		}
	}
	return deny(ReasonDefaultDeny)
}

// CanDelete allows clinic personnel and the patient.
func (AppointmentPolicy) CanDelete(actor identity.Actor, appt Appointment) Decision {
	if actor.IsAdmin() {
		return allow(ReasonAdminOverride)
	}
	if actor.Role == identity.RoleCustomer {
		if appt.PatientID == actor.ID {
			return allow(ReasonOwner)
		}
		return deny(ReasonDefaultDeny)
	}
	if actor.Is(identity.RoleStaff, identity.RoleOptometrist) {
		return allow(ReasonRoleAllowed)
	}
	return deny(ReasonRoleDenied)
}
