package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// AuditLog is one row of audit_logs. ActorID zero means the system acted.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// EntityRef formats a numeric id as an audit entity id.
func EntityRef(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Validate reports the first missing field.
func (l AuditLog) Validate() error {
	switch {
	case l.Action == "":
		return fmt.Errorf("%w: audit action is required", ErrValidation)
	case l.Entity == "":
		return fmt.Errorf("%w: audit entity is required", ErrValidation)
	case l.EntityID == "":
		return fmt.Errorf("%w: audit entity id is required", ErrValidation)
	}
	return nil
}

// AuditLogger inserts audit rows synchronously. Request paths reach it
// through the buffered audit.Recorder.
type AuditLogger struct {
	db execer
}

// NewAuditLogger returns a logger writing through db.
func NewAuditLogger(db execer) *AuditLogger {
	return &AuditLogger{db: db}
}

// Record persists one entry. A zero At takes the database clock.
func (l *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	meta := entry.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode audit meta: %w", err)
	}
	var at *time.Time
	if !entry.At.IsZero() {
		utc := entry.At.UTC()
		at = &utc
	}
	_, err = l.db.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
		VALUES (NULLIF($1::bigint, 0), $2, $3, $4, $5, COALESCE($6, NOW()))`,
		entry.ActorID, entry.Action, entry.Entity, entry.EntityID, metaJSON, at)
	if err != nil {
		return fmt.Errorf("insert audit log %s/%s: %w", entry.Entity, entry.Action, err)
	}
	return nil
}
