package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskAppointmentReminders reminds patients of tomorrow's scheduled appointments.
	TaskAppointmentReminders = "notify:appointment_reminders"
	// TaskPrescriptionExpiry warns patients whose prescription expires soon.
	TaskPrescriptionExpiry = "notify:prescription_expiry"
	// TaskLowStockScan re-announces branch stock at or below its threshold.
	TaskLowStockScan = "notify:low_stock_scan"
	// TaskIdempotencyCleanup prunes expired stock movement idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"

	// DefaultKeyRetentionHours keeps idempotency keys for three days.
	DefaultKeyRetentionHours = 72
)

// AppointmentRemindersPayload selects the day to remind about. An empty Date
// means tomorrow in UTC.
type AppointmentRemindersPayload struct {
	Date string `json:"date,omitempty"`
}

// PrescriptionExpiryPayload sets the look-ahead window in days.
type PrescriptionExpiryPayload struct {
	WithinDays int `json:"within_days,omitempty"`
}

// LowStockScanPayload limits the scan to one branch; zero scans every branch.
type LowStockScanPayload struct {
	BranchID int64 `json:"branch_id,omitempty"`
}

// IdempotencyCleanupPayload sets how long keys are kept.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// NewAppointmentRemindersTask constructs the reminder task.
func NewAppointmentRemindersTask(date string) (*asynq.Task, error) {
	return newTask(TaskAppointmentReminders, AppointmentRemindersPayload{Date: date})
}

// NewPrescriptionExpiryTask constructs the expiry warning task.
func NewPrescriptionExpiryTask(withinDays int) (*asynq.Task, error) {
	return newTask(TaskPrescriptionExpiry, PrescriptionExpiryPayload{WithinDays: withinDays})
}

// NewLowStockScanTask constructs the low stock scan task.
func NewLowStockScanTask(branchID int64) (*asynq.Task, error) {
	return newTask(TaskLowStockScan, LowStockScanPayload{BranchID: branchID})
}

// NewIdempotencyCleanupTask constructs the key pruning task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	return newTask(TaskIdempotencyCleanup, IdempotencyCleanupPayload{RetentionHours: retentionHours})
}

// NewTask builds a task by type name with its default payload.
func NewTask(name string) (*asynq.Task, error) {
	switch name {
	case TaskAppointmentReminders:
		return NewAppointmentRemindersTask("")
	case TaskPrescriptionExpiry:
		return NewPrescriptionExpiryTask(DefaultExpiryWindowDays)
	case TaskLowStockScan:
		return NewLowStockScanTask(0)
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(DefaultKeyRetentionHours)
	default:
		return nil, fmt.Errorf("jobs: unsupported task %q", name)
	}
}

func newTask(typename string, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, body, asynq.Queue(QueueDefault)), nil
}
