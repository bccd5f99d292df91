package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/appointments"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/inventory"
	jobmetrics "github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/jobs"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/prescriptions"
)

// DefaultExpiryWindowDays is how far ahead prescription expiry is announced.
const DefaultExpiryWindowDays = 30

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AppointmentSource lists appointments waiting for a reminder.
type AppointmentSource interface {
	ScheduledOn(ctx context.Context, day time.Time) ([]appointments.Appointment, error)
}

// PrescriptionSource lists active prescriptions by expiry date.
type PrescriptionSource interface {
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]prescriptions.Prescription, error)
}

// StockSource lists low branch stock.
type StockSource interface {
	LowStock(ctx context.Context, branchID int64) ([]inventory.LowStockItem, error)
}

// Notifier is the synchronous fan-out used by jobs. Handlers already run
// detached from any request, so they wait for each Result.
type Notifier interface {
	NotifyAppointmentChange(ctx context.Context, appt notify.Appointment, changeType, message string) notify.Result
	NotifyInventoryChange(ctx context.Context, product notify.Product, branch notify.Branch, changeType, message string, stockLevel, threshold int) notify.Result
	NotifyUsers(ctx context.Context, title, message, kind string, recipientIDs []int64, data map[string]any) notify.Result
	NotifyRole(ctx context.Context, title, message string, role identity.Role, kind string, data map[string]any) notify.Result
}

// NotifyJobs runs the scheduled notification tasks.
type NotifyJobs struct {
	Appointments  AppointmentSource
	Prescriptions PrescriptionSource
	Stock         StockSource
	Notifier      Notifier
	Logger        *slog.Logger
	Metrics       *jobmetrics.Metrics
	clock         func() time.Time
}

// NewNotifyJobs wires dependencies for the notification handlers.
func NewNotifyJobs(appts AppointmentSource, rx PrescriptionSource, stock StockSource, notifier Notifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotifyJobs {
	return &NotifyJobs{
		Appointments:  appts,
		Prescriptions: rx,
		Stock:         stock,
		Notifier:      notifier,
		Logger:        logger,
		Metrics:       metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handlers lists the task handlers for WorkerConfig.
func (j *NotifyJobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskAppointmentReminders, Handler: j.HandleAppointmentReminders},
		{Type: TaskPrescriptionExpiry, Handler: j.HandlePrescriptionExpiry},
		{Type: TaskLowStockScan, Handler: j.HandleLowStockScan},
	}
}

// HandleAppointmentReminders sends a reminder for every scheduled appointment
// of the target day.
func (j *NotifyJobs) HandleAppointmentReminders(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Appointments == nil || j.Notifier == nil {
		return errors.New("appointment reminders: handler not configured")
	}
	var payload AppointmentRemindersPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	day := j.now().AddDate(0, 0, 1).Truncate(24 * time.Hour)
	if payload.Date != "" {
		parsed, err := time.Parse("2006-01-02", payload.Date)
		if err != nil {
			return fmt.Errorf("appointment reminders: %w: %v", asynq.SkipRetry, err)
		}
		day = parsed
	}

	tracker := j.metrics().Track(TaskAppointmentReminders)
	defer func() { resultErr = tracker.End(resultErr) }()
	logger := j.logger(TaskAppointmentReminders).With(slog.String("day", day.Format("2006-01-02")))

	items, err := j.Appointments.ScheduledOn(ctx, day)
	if err != nil {
		logger.Error("load scheduled appointments", slog.Any("error", err))
		return err
	}
	sent := 0
	for _, appt := range items {
		res := j.Notifier.NotifyAppointmentChange(ctx, appt.Event(), appointments.ChangeReminder, ReminderMessage(appt))
		if j.report(logger, res, slog.Int64("appointment_id", appt.ID)) {
			sent++
		}
	}
	j.metrics().AddNotified(TaskAppointmentReminders, sent)
	logger.Info("appointment reminders sent", slog.Int("appointments", len(items)), slog.Int("sent", sent))
	return nil
}

// HandlePrescriptionExpiry warns patients about prescriptions expiring within
// the window.
func (j *NotifyJobs) HandlePrescriptionExpiry(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Prescriptions == nil || j.Notifier == nil {
		return errors.New("prescription expiry: handler not configured")
	}
	var payload PrescriptionExpiryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WithinDays <= 0 {
		payload.WithinDays = DefaultExpiryWindowDays
	}

	tracker := j.metrics().Track(TaskPrescriptionExpiry)
	defer func() { resultErr = tracker.End(resultErr) }()
	logger := j.logger(TaskPrescriptionExpiry).With(slog.Int("within_days", payload.WithinDays))

	today := j.now().Truncate(24 * time.Hour)
	items, err := j.Prescriptions.ExpiringBetween(ctx, today, today.AddDate(0, 0, payload.WithinDays))
	if err != nil {
		logger.Error("load expiring prescriptions", slog.Any("error", err))
		return err
	}
	sent := 0
	for _, rx := range items {
		days := int(rx.ExpiryDate.Sub(today).Hours() / 24)
		res := j.Notifier.NotifyUsers(ctx, "Prescription expiring soon", ExpiryMessage(days, rx.ExpiryDate),
			"prescription_expiry", []int64{rx.PatientID}, map[string]any{
				"prescription_id":     rx.ID,
				"prescription_number": rx.Number,
				"expiry_date":         rx.ExpiryDate.Format("2006-01-02"),
				"days_left":           days,
			})
		if j.report(logger, res, slog.Int64("prescription_id", rx.ID)) {
			sent++
		}
	}
	j.metrics().AddNotified(TaskPrescriptionExpiry, sent)
	logger.Info("prescription expiry notices sent", slog.Int("prescriptions", len(items)), slog.Int("sent", sent))
	return nil
}

// HandleLowStockScan re-announces every low stock row and summarises the scan
// for admins.
func (j *NotifyJobs) HandleLowStockScan(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Stock == nil || j.Notifier == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLowStockScan)
	defer func() { resultErr = tracker.End(resultErr) }()
	logger := j.logger(TaskLowStockScan).With(slog.Int64("branch_id", payload.BranchID))

	items, err := j.Stock.LowStock(ctx, payload.BranchID)
	if err != nil {
		logger.Error("load low stock", slog.Any("error", err))
		return err
	}
	if len(items) == 0 {
		logger.Info("no low stock found")
		return nil
	}
	sent := 0
	for _, item := range items {
		available := item.Stock.Available()
		res := j.Notifier.NotifyInventoryChange(ctx, item.Product, item.Branch, inventory.ChangeLowStock,
			inventory.LowStockMessage(item.Product.Name, available), available, item.Stock.Threshold)
		if j.report(logger, res, slog.Int64("product_id", item.Product.ID), slog.Int64("stock_branch_id", item.Branch.ID)) {
			sent++
		}
	}
	res := j.Notifier.NotifyRole(ctx, "Low Stock Alert",
		fmt.Sprintf("%d items are at or below their restock threshold", len(items)),
		identity.RoleAdmin, "low_stock_alert", map[string]any{"count": len(items), "branch_id": payload.BranchID})
	j.report(logger, res)
	j.metrics().AddNotified(TaskLowStockScan, sent)
	logger.Info("low stock scan completed", slog.Int("items", len(items)), slog.Int("sent", sent))
	return nil
}

// ReminderMessage is the patient-facing reminder text.
func ReminderMessage(a appointments.Appointment) string {
	msg := fmt.Sprintf("Reminder: you have an appointment on %s at %s", a.Date.Format("2006-01-02"), a.StartTime)
	if a.Optometrist != nil && a.Optometrist.Name != "" {
		msg += " with " + a.Optometrist.Name
	}
	return msg + ". Please arrive 15 minutes early."
}

// ExpiryMessage is the patient-facing expiry notice.
func ExpiryMessage(days int, expiry time.Time) string {
	return fmt.Sprintf("Your prescription will expire in %d days (on %s). Please schedule an appointment to renew your prescription.",
		days, expiry.Format("2006-01-02"))
}

// report logs a fan-out Result. Partial failures are logged, never retried.
func (j *NotifyJobs) report(logger *slog.Logger, res notify.Result, attrs ...any) bool {
	if res.OK() {
		return true
	}
	args := append([]any{slog.String("event", res.Event), slog.Any("error", res.Err())}, attrs...)
	logger.Warn("notification fan-out incomplete", args...)
	return res.Published > 0
}

func (j *NotifyJobs) logger(task string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", task))
	}
	return slog.Default().With(slog.String("job", task))
}

func (j *NotifyJobs) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *NotifyJobs) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
