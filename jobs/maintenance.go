package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/jobs"
)

// KeyPruner deletes idempotency keys older than a cutoff.
type KeyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MaintenanceJobs keeps housekeeping tasks apart from notifications.
type MaintenanceJobs struct {
	Keys    KeyPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handlers lists the maintenance task handlers.
func (j *MaintenanceJobs) Handlers() []TaskHandler {
	return []TaskHandler{{Type: TaskIdempotencyCleanup, Handler: j.HandleIdempotencyCleanup}}
}

// HandleIdempotencyCleanup prunes idempotency keys past their retention.
func (j *MaintenanceJobs) HandleIdempotencyCleanup(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = DefaultKeyRetentionHours
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskIdempotencyCleanup)
	defer func() { resultErr = tracker.End(resultErr) }()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	pruned, err := j.Keys.Cleanup(ctx, retention)
	if err != nil {
		logger.Error("idempotency cleanup", slog.Any("error", err))
		return err
	}
	logger.Info("idempotency keys pruned", slog.Duration("retention", retention), slog.Int64("pruned", pruned))
	return nil
}
