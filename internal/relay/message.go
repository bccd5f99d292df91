package relay

import (
	"encoding/json"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
)

// Acknowledgement events sent by the relay itself.
const (
	EventConnected = "relay.connected"
	EventJoined    = "relay.joined"
	EventLeft      = "relay.left"
	EventError     = "relay.error"
)

// Message is an outbound frame.
type Message struct {
	Event string          `json:"event"`
	Topic notify.Topic    `json:"topic,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// inbound is a client frame.
type inbound struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

func ack(event string, topic notify.Topic, detail string) Message {
	msg := Message{Event: event, Topic: topic}
	if detail != "" {
		data, _ := json.Marshal(map[string]string{"message": detail})
		msg.Data = data
	}
	return msg
}
