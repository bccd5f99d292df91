package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

// ErrBufferFull is returned when the recorder drops an entry.
var ErrBufferFull = errors.New("audit: buffer full")

// Writer persists a single entry.
type Writer interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Recorder queues audit entries and persists them on its own goroutine so the
// request path never waits on the audit table.
type Recorder struct {
	writer Writer
	inbox  chan shared.AuditLog
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder constructs a Recorder with the given buffer size.
func NewRecorder(writer Writer, buffer int, logger *slog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{writer: writer, inbox: make(chan shared.AuditLog, buffer), logger: logger, now: time.Now}
}

// Record enqueues entry without blocking.
func (r *Recorder) Record(_ context.Context, entry shared.AuditLog) error {
	if entry.At.IsZero() {
		entry.At = r.now().UTC()
	}
	select {
	case r.inbox <- entry:
		return nil
	default:
		r.logger.Warn("audit entry dropped", slog.String("action", entry.Action), slog.String("entity", entry.Entity))
		return ErrBufferFull
	}
}

// Run persists queued entries until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case entry := <-r.inbox:
			r.write(ctx, entry)
		}
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case entry := <-r.inbox:
			r.write(ctx, entry)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, entry shared.AuditLog) {
	if err := r.writer.Record(ctx, entry); err != nil {
		r.logger.Error("audit write failed",
			slog.String("action", entry.Action),
			slog.String("entity", entry.Entity),
			slog.String("entity_id", entry.EntityID),
			slog.Any("error", err),
		)
	}
}
