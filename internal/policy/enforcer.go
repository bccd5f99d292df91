package policy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

// AuditPort receives decision records. Implementations must not block.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Enforcer applies Check to the actor stored in the context and records denials.
type Enforcer struct {
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewEnforcer constructs an Enforcer. audit may be nil.
func NewEnforcer(audit AuditPort, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{audit: audit, logger: logger, now: time.Now}
}

// Enforce authorizes action on the resource identified by entityID.
func (e *Enforcer) Enforce(ctx context.Context, resource, entityID string, action Action, decide func(identity.Actor) Decision) error {
	var actorPtr *identity.Actor
	if actor, ok := identity.ActorFromContext(ctx); ok {
		actorPtr = &actor
	}
	err := Check(actorPtr, resource, action, decide)
	if err == nil {
		return nil
	}
	var denied *DeniedError
	if errors.As(err, &denied) {
		e.logger.Warn("policy denied",
			slog.String("resource", resource),
			slog.String("entity_id", entityID),
			slog.String("action", string(action)),
			slog.Int64("user_id", denied.ActorID),
			slog.String("reason", string(denied.Reason)),
		)
		e.record(ctx, shared.AuditLog{
			ActorID:  denied.ActorID,
			Action:   "policy.denied",
			Entity:   resource,
			EntityID: orUnknown(entityID),
			Meta:     map[string]any{"action": string(action), "reason": string(denied.Reason)},
			At:       e.now().UTC(),
		})
	}
	return err
}

func (e *Enforcer) record(ctx context.Context, entry shared.AuditLog) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("policy audit record failed", slog.Any("error", err))
	}
}

func orUnknown(id string) string {
	if id == "" {
		return "*"
	}
	return id
}
