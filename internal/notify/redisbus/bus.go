// Package redisbus carries notify events over Redis pub/sub.
package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
)

// DefaultPrefix namespaces every channel.
const DefaultPrefix = "clinic:"

// Envelope is the frame written to a Redis channel.
type Envelope struct {
	Topic       notify.Topic    `json:"topic"`
	Event       string          `json:"event"`
	Data        json.RawMessage `json:"data"`
	PublishedAt time.Time       `json:"published_at"`
}

// Publisher implements notify.Publisher with PUBLISH.
type Publisher struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewPublisher builds a Publisher. An empty prefix uses DefaultPrefix.
func NewPublisher(client *redis.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Publisher{client: client, prefix: prefix, now: time.Now}
}

// Publish marshals payload into an Envelope and publishes it on prefix+topic.
func (p *Publisher) Publish(ctx context.Context, topic notify.Topic, event string, payload any) error {
	if p == nil || p.client == nil {
		return errors.New("redisbus: publisher not initialised")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("redisbus: marshal %s: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Topic: topic, Event: event, Data: data, PublishedAt: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("redisbus: marshal envelope: %w", err)
	}
	if err := p.client.Publish(ctx, p.prefix+string(topic), frame).Err(); err != nil {
		return fmt.Errorf("redisbus: publish %s: %w", topic, err)
	}
	return nil
}

// Subscriber reads every prefixed channel with PSUBSCRIBE.
type Subscriber struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewSubscriber builds a Subscriber. An empty prefix uses DefaultPrefix.
func NewSubscriber(client *redis.Client, prefix string, logger *slog.Logger) *Subscriber {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{client: client, prefix: prefix, logger: logger}
}

// Run delivers envelopes to handler until ctx is done. Malformed frames are skipped.
func (s *Subscriber) Run(ctx context.Context, handler func(Envelope)) error {
	if s == nil || s.client == nil {
		return errors.New("redisbus: subscriber not initialised")
	}
	pubsub := s.client.PSubscribe(ctx, s.prefix+"*")
	defer func() { _ = pubsub.Close() }()
	// wait for the subscription to be confirmed before reading
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redisbus: psubscribe: %w", err)
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := s.decode(msg)
			if err != nil {
				s.logger.Warn("redisbus: skip frame", slog.String("channel", msg.Channel), slog.Any("error", err))
				continue
			}
			handler(env)
		}
	}
}

func (s *Subscriber) decode(msg *redis.Message) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, errors.New("missing event")
	}
	if env.Topic == "" {
		env.Topic = notify.Topic(strings.TrimPrefix(msg.Channel, s.prefix))
	}
	return env, nil
}
