// Package policy decides whether an actor may perform an action on a clinic record.
//
// Every rule is a total function of (actor, resource snapshot). Denial is a normal
// return value. Precedence is always admin override, then ownership, then branch
// scoping, then default deny.
package policy

// Action names the operation being authorized.
type Action string

const (
	ActionViewAny Action = "view_any"
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionVoid    Action = "void"
	ActionApprove Action = "approve"
)

// Reason explains which rule produced a decision.
type Reason string

const (
	ReasonAdminOverride Reason = "admin_override"
	ReasonOwner         Reason = "owner"
	ReasonBranchScope   Reason = "branch_scope"
	ReasonRoleAllowed   Reason = "role_allowed"
	ReasonTerminalState Reason = "terminal_state"
	ReasonSelfTarget    Reason = "self_target"
	ReasonRoleDenied    Reason = "role_denied"
	ReasonDefaultDeny   Reason = "default_deny"
)

// Decision is the single boolean gate for one action.
type Decision struct {
	Allow  bool
	Reason Reason
}

func allow(reason Reason) Decision {
	return Decision{Allow: true, Reason: reason}
}

func deny(reason Reason) Decision {
	return Decision{Allow: false, Reason: reason}
}
