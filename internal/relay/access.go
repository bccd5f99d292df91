// Package relay keeps live WebSocket connections and fans bus events out to
// the actors subscribed to each topic.
package relay

import (
	"errors"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
)

// ErrJoinDenied is returned when an actor may not subscribe to a topic.
var ErrJoinDenied = errors.New("relay: join denied")

// CanJoin validates raw and checks that actor may subscribe to it. Global
// topics are open, a private topic belongs to its owner only and a branch
// topic admits admins plus actors assigned to that branch.
func CanJoin(actor identity.Actor, raw string) (notify.TopicRef, error) {
	ref, err := notify.ParseTopic(raw)
	if err != nil {
		return notify.TopicRef{}, err
	}
	switch ref.Kind {
	case notify.TopicKindGlobal:
		return ref, nil
	case notify.TopicKindUser:
		if ref.ID == actor.ID {
			return ref, nil
		}
	case notify.TopicKindBranch:
		if actor.IsAdmin() || actor.SharesBranch(&ref.ID) {
			return ref, nil
		}
	}
	return notify.TopicRef{}, ErrJoinDenied
}
