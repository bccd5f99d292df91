package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
)

const (
	// DefaultTimeout bounds one detached fan-out.
	DefaultTimeout = 3 * time.Second
	// DefaultMaxInFlight bounds concurrent detached fan-outs.
	DefaultMaxInFlight = 64
)

// Dispatcher runs Notifier calls detached from the caller. Every method returns
// immediately; the fan-out continues after the request context is cancelled.
type Dispatcher struct {
	notifier *Notifier
	timeout  time.Duration
	slots    *semaphore.Weighted
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher wraps notifier. Non-positive timeout or maxInFlight fall back to the defaults.
func NewDispatcher(notifier *Notifier, timeout time.Duration, maxInFlight int64, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		notifier: notifier,
		timeout:  timeout,
		slots:    semaphore.NewWeighted(maxInFlight),
		logger:   logger,
	}
}

// AppointmentChanged schedules NotifyAppointmentChange.
func (d *Dispatcher) AppointmentChanged(ctx context.Context, appt Appointment, changeType, message string) {
	d.spawn(ctx, AppointmentEvent(changeType), func(ctx context.Context) Result {
		return d.notifier.NotifyAppointmentChange(ctx, appt, changeType, message)
	})
}

// InventoryChanged schedules NotifyInventoryChange.
func (d *Dispatcher) InventoryChanged(ctx context.Context, product Product, branch Branch, changeType, message string, stockLevel, threshold int) {
	d.spawn(ctx, InventoryEvent(changeType), func(ctx context.Context) Result {
		return d.notifier.NotifyInventoryChange(ctx, product, branch, changeType, message, stockLevel, threshold)
	})
}

// Users schedules NotifyUsers.
func (d *Dispatcher) Users(ctx context.Context, title, message, kind string, recipientIDs []int64, data map[string]any) {
	ids := append([]int64(nil), recipientIDs...)
	d.spawn(ctx, NotificationEvent(kind), func(ctx context.Context) Result {
		return d.notifier.NotifyUsers(ctx, title, message, kind, ids, data)
	})
}

// Role schedules NotifyRole.
func (d *Dispatcher) Role(ctx context.Context, title, message string, role identity.Role, kind string, data map[string]any) {
	d.spawn(ctx, NotificationEvent(kind), func(ctx context.Context) Result {
		return d.notifier.NotifyRole(ctx, title, message, role, kind, data)
	})
}

// Branch schedules NotifyBranch.
func (d *Dispatcher) Branch(ctx context.Context, title, message string, branchID int64, kind string, data map[string]any) {
	d.spawn(ctx, NotificationEvent(kind), func(ctx context.Context) Result {
		return d.notifier.NotifyBranch(ctx, title, message, branchID, kind, data)
	})
}

// Wait blocks until every scheduled fan-out has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) spawn(parent context.Context, event string, run func(context.Context) Result) {
	if d == nil || d.notifier == nil {
		return
	}
	if !d.slots.TryAcquire(1) {
		d.logger.Warn("notification dropped, dispatcher saturated", slog.String("event", event))
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.slots.Release(1)
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.timeout)
		defer cancel()
		res := run(ctx)
		if !res.OK() {
			d.logger.Debug("detached notification finished with errors",
				slog.String("event", res.Event),
				slog.Int("errors", len(res.Errors)),
			)
		}
	}()
}
