package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
)

// DefaultSendBuffer is the per-connection outbound queue length.
const DefaultSendBuffer = 32

// ErrHubStopped is returned once Run has exited.
var ErrHubStopped = errors.New("relay: hub stopped")

// client is one registered handle. topics and attached are owned by the hub loop.
type client struct {
	actor       identity.Actor
	send        chan []byte
	connectedAt time.Time
	topics      map[notify.Topic]struct{}
	attached    bool
}

func newClient(actor identity.Actor, buffer int, now time.Time) *client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &client{
		actor:       actor,
		send:        make(chan []byte, buffer),
		connectedAt: now,
		topics:      make(map[notify.Topic]struct{}),
	}
}

// Connection describes a live handle for the admin listing.
type Connection struct {
	UserID      int64          `json:"user_id"`
	Role        identity.Role  `json:"role"`
	BranchID    *int64         `json:"branch_id"`
	ConnectedAt time.Time      `json:"connected_at"`
	Topics      []notify.Topic `json:"topics"`
}

type membership struct {
	client *client
	topic  notify.Topic
}

type direct struct {
	client *client
	msg    Message
}

// Hub owns the identity to connection table and topic membership. Every
// mutation runs on the Run goroutine.
type Hub struct {
	logger  *slog.Logger
	metrics *Metrics

	clients map[int64]*client
	topics  map[notify.Topic]map[*client]struct{}
	count   atomic.Int64

	register   chan *client
	unregister chan *client
	join       chan membership
	leave      chan membership
	notice     chan direct
	broadcast  chan Message
	snapshot   chan chan []Connection
	stopped    chan struct{}
}

// NewHub builds an idle hub; call Run to start it.
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger,
		metrics:    metrics,
		clients:    make(map[int64]*client),
		topics:     make(map[notify.Topic]map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		join:       make(chan membership),
		leave:      make(chan membership),
		notice:     make(chan direct),
		broadcast:  make(chan Message, 256),
		snapshot:   make(chan chan []Connection),
		stopped:    make(chan struct{}),
	}
}

// Run processes hub commands until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			for _, c := range h.clients {
				h.detach(c, "")
			}
			return
		case c := <-h.register:
			h.attach(c)
		case c := <-h.unregister:
			h.detach(c, "")
		case m := <-h.join:
			if !m.client.attached {
				continue
			}
			h.subscribe(m.client, m.topic)
			h.deliver(m.client, ack(EventJoined, m.topic, ""))
		case m := <-h.leave:
			if !m.client.attached {
				continue
			}
			h.unsubscribe(m.client, m.topic)
			h.deliver(m.client, ack(EventLeft, m.topic, ""))
		case d := <-h.notice:
			if d.client.attached {
				h.deliver(d.client, d.msg)
			}
		case msg := <-h.broadcast:
			h.fanOut(msg)
		case reply := <-h.snapshot:
			reply <- h.connections()
		}
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	return int(h.count.Load())
}

// Broadcast queues msg for every subscriber of msg.Topic. Once Run has
// exited it always returns ErrHubStopped.
func (h *Hub) Broadcast(msg Message) error {
	select {
	case <-h.stopped:
		return ErrHubStopped
	default:
	}
	select {
	case h.broadcast <- msg:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	}
}

// Snapshot lists live connections ordered by user id.
func (h *Hub) Snapshot(ctx context.Context) ([]Connection, error) {
	reply := make(chan []Connection, 1)
	select {
	case h.snapshot <- reply:
	case <-h.stopped:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) attachClient(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) detachClient(c *client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

func (h *Hub) joinTopic(c *client, topic notify.Topic) {
	select {
	case h.join <- membership{client: c, topic: topic}:
	case <-h.stopped:
	}
}

func (h *Hub) leaveTopic(c *client, topic notify.Topic) {
	select {
	case h.leave <- membership{client: c, topic: topic}:
	case <-h.stopped:
	}
}

func (h *Hub) tell(c *client, msg Message) {
	select {
	case h.notice <- direct{client: c, msg: msg}:
	case <-h.stopped:
	}
}

// attach registers c, replacing any previous handle of the same actor.
func (h *Hub) attach(c *client) {
	if old, ok := h.clients[c.actor.ID]; ok {
		h.logger.Info("relay: connection replaced", slog.Int64("user_id", c.actor.ID))
		h.detach(old, "replaced")
	}
	c.attached = true
	h.clients[c.actor.ID] = c
	h.count.Store(int64(len(h.clients)))
	h.metrics.setConnections(len(h.clients))

	private := notify.UserTopic(c.actor.ID)
	h.subscribe(c, private)
	h.deliver(c, ack(EventConnected, private, ""))
}

// detach removes c when it is still the registered handle. An empty reason
// marks a normal disconnect.
func (h *Hub) detach(c *client, reason string) {
	if !c.attached {
		return
	}
	c.attached = false
	for topic := range c.topics {
		h.unsubscribe(c, topic)
	}
	if h.clients[c.actor.ID] == c {
		delete(h.clients, c.actor.ID)
	}
	close(c.send)
	h.count.Store(int64(len(h.clients)))
	h.metrics.setConnections(len(h.clients))
	if reason != "" {
		h.metrics.drop(reason)
	}
}

func (h *Hub) subscribe(c *client, topic notify.Topic) {
	members, ok := h.topics[topic]
	if !ok {
		members = make(map[*client]struct{})
		h.topics[topic] = members
	}
	members[c] = struct{}{}
	c.topics[topic] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, topic notify.Topic) {
	delete(c.topics, topic)
	members, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.topics, topic)
	}
}

func (h *Hub) fanOut(msg Message) {
	members := h.topics[msg.Topic]
	if len(members) == 0 {
		return
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("relay: encode frame", slog.String("event", msg.Event), slog.Any("error", err))
		return
	}
	for c := range members {
		h.push(c, frame)
	}
}

func (h *Hub) deliver(c *client, msg Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("relay: encode frame", slog.String("event", msg.Event), slog.Any("error", err))
		return
	}
	h.push(c, frame)
}

// push never blocks; a full queue drops the connection.
func (h *Hub) push(c *client, frame []byte) {
	select {
	case c.send <- frame:
		h.metrics.delivery()
	default:
		h.logger.Warn("relay: slow consumer dropped", slog.Int64("user_id", c.actor.ID))
		h.detach(c, "slow_consumer")
	}
}

func (h *Hub) connections() []Connection {
	out := make([]Connection, 0, len(h.clients))
	for _, c := range h.clients {
		topics := make([]notify.Topic, 0, len(c.topics))
		for t := range c.topics {
			topics = append(topics, t)
		}
		sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })
		out = append(out, Connection{
			UserID:      c.actor.ID,
			Role:        c.actor.Role,
			BranchID:    c.actor.BranchID,
			ConnectedAt: c.connectedAt,
			Topics:      topics,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
