package relay

import (
	"context"
	"log/slog"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify/redisbus"
)

// EnvelopeSource yields bus envelopes until ctx is done.
type EnvelopeSource interface {
	Run(ctx context.Context, handler func(redisbus.Envelope)) error
}

// Bridge forwards every bus envelope to the hub until ctx is done.
func Bridge(ctx context.Context, source EnvelopeSource, hub *Hub) error {
	return source.Run(ctx, func(env redisbus.Envelope) {
		if err := hub.Broadcast(Message{Event: env.Event, Topic: env.Topic, Data: env.Data}); err != nil {
			hub.logger.Warn("relay: broadcast", slog.String("event", env.Event), slog.Any("error", err))
		}
	})
}
