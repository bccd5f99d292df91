package policy

import (
	"errors"
	"fmt"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
)

var (
	// ErrAuthenticationMissing indicates that no actor was attached to the request.
	ErrAuthenticationMissing = errors.New("policy: authentication missing")
	// ErrPolicyDenied indicates the actor is known but not allowed.
	ErrPolicyDenied = errors.New("policy: denied")
)

// DeniedError carries the rejected decision.
type DeniedError struct {
	Resource string
	Action   Action
	ActorID  int64
	Reason   Reason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("policy: %s %s denied for actor %d (%s)", e.Action, e.Resource, e.ActorID, e.Reason)
}

// Is lets errors.Is match ErrPolicyDenied.
func (e *DeniedError) Is(target error) bool {
	return target == ErrPolicyDenied
}

// Check evaluates decide for actor and maps the outcome to an error.
// A nil actor fails before any rule runs.
func Check(actor *identity.Actor, resource string, action Action, decide func(identity.Actor) Decision) error {
	if actor == nil {
		return ErrAuthenticationMissing
	}
	d := decide(*actor)
	if d.Allow {
		return nil
	}
	return &DeniedError{Resource: resource, Action: action, ActorID: actor.ID, Reason: d.Reason}
}
