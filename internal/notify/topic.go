// Package notify resolves who must hear about a clinic event and publishes it
// to every derived topic. Fan-out is best effort: failures end up in a Result,
// never in the caller's control flow.
package notify

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Topic is an addressable broadcast destination.
type Topic string

const (
	TopicAppointments  Topic = "appointments"
	TopicInventory     Topic = "inventory"
	TopicNotifications Topic = "notifications"
)

const (
	branchPrefix = "branch."
	userPrefix   = "user."
)

// ErrUnknownTopic is returned by ParseTopic for names outside the topic scheme.
var ErrUnknownTopic = errors.New("notify: unknown topic")

// BranchTopic returns the topic shared by a branch.
func BranchTopic(branchID int64) Topic {
	return Topic(branchPrefix + strconv.FormatInt(branchID, 10))
}

// UserTopic returns the private topic of an actor.
func UserTopic(userID int64) Topic {
	return Topic(userPrefix + strconv.FormatInt(userID, 10))
}

// TopicKind classifies a topic.
type TopicKind int

const (
	TopicKindGlobal TopicKind = iota + 1
	TopicKindBranch
	TopicKindUser
)

// TopicRef is a parsed topic.
type TopicRef struct {
	Topic Topic
	Kind  TopicKind
	ID    int64
}

// ParseTopic validates a client supplied topic name.
func ParseTopic(raw string) (TopicRef, error) {
	name := strings.TrimSpace(raw)
	switch Topic(name) {
	case TopicAppointments, TopicInventory, TopicNotifications:
		return TopicRef{Topic: Topic(name), Kind: TopicKindGlobal}, nil
	}
	var (
		kind   TopicKind
		suffix string
	)
	switch {
	case strings.HasPrefix(name, branchPrefix):
		kind, suffix = TopicKindBranch, strings.TrimPrefix(name, branchPrefix)
	case strings.HasPrefix(name, userPrefix):
		kind, suffix = TopicKindUser, strings.TrimPrefix(name, userPrefix)
	default:
		return TopicRef{}, fmt.Errorf("%w: %q", ErrUnknownTopic, raw)
	}
	id, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || id <= 0 {
		return TopicRef{}, fmt.Errorf("%w: %q", ErrUnknownTopic, raw)
	}
	return TopicRef{Topic: Topic(name), Kind: kind, ID: id}, nil
}

// AppointmentEvent names the broadcast for an appointment change.
func AppointmentEvent(changeType string) string {
	return "appointment." + changeType
}

// InventoryEvent names the broadcast for an inventory change.
func InventoryEvent(changeType string) string {
	return "inventory." + changeType
}

// NotificationEvent names a generic notification broadcast.
func NotificationEvent(kind string) string {
	return "notification." + kind
}
