package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

const resource = "appointment"

// ErrSlotTaken reports a double booking for the optometrist.
var ErrSlotTaken = fmt.Errorf("%w: time slot is not available", shared.ErrConflict)

// RepositoryPort defines persistence used by the service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Appointment, error)
	Get(ctx context.Context, id int64) (Appointment, error)
	Create(ctx context.Context, a Appointment) (Appointment, error)
	Update(ctx context.Context, id int64, c Changes) (Appointment, error)
	Delete(ctx context.Context, id int64) error
	Overlaps(ctx context.Context, slot Slot) (bool, error)
	RoleOf(ctx context.Context, userID int64) (identity.Role, error)
}

// Notifier fans out appointment changes without blocking the caller.
type Notifier interface {
	AppointmentChanged(ctx context.Context, appt notify.Appointment, changeType, message string)
}

// Service applies booking rules.
type Service struct {
	repo     RepositoryPort
	enforcer *policy.Enforcer
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the service. notifier may be nil.
func NewService(repo RepositoryPort, enforcer *policy.Enforcer, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, enforcer: enforcer, notifier: notifier, logger: logger, now: time.Now}
}

// List returns appointments visible to the actor. Customers see their own
// bookings; branch personnel see their branch.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	actor, ok := identity.ActorFromContext(ctx)
	if ok && actor.Role == identity.RoleCustomer {
		filter.PatientID = actor.ID
	} else {
		if err := s.enforcer.Enforce(ctx, resource, "", policy.ActionViewAny, policy.Appointments.CanViewAny); err != nil {
			return nil, err
		}
		if branchID, assigned := actor.Branch(); assigned && !actor.IsAdmin() {
			filter.BranchID = branchID
		}
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	if items == nil {
		items = []Appointment{}
	}
	return items, nil
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, id int64) (Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if err := s.authorize(ctx, a, policy.ActionView, policy.Appointments.CanView); err != nil {
		return Appointment{}, err
	}
	return a, nil
}

// Create books a scheduled appointment and announces it.
func (s *Service) Create(ctx context.Context, in CreateInput) (Appointment, error) {
	err := s.enforcer.Enforce(ctx, resource, "", policy.ActionCreate, func(a identity.Actor) policy.Decision {
		return policy.Appointments.CanCreateFor(a, in.PatientID)
	})
	if err != nil {
		return Appointment{}, err
	}
	actor, _ := identity.ActorFromContext(ctx)
	if actor.Is(identity.RoleStaff, identity.RoleOptometrist) && !actor.SharesBranch(&in.BranchID) {
		return Appointment{}, &policy.DeniedError{Resource: resource, Action: policy.ActionCreate, ActorID: actor.ID, Reason: policy.ReasonBranchScope}
	}
	date, err := s.parseDate(in.AppointmentDate)
	if err != nil {
		return Appointment{}, err
	}
	if err := validWindow(in.StartTime, in.EndTime); err != nil {
		return Appointment{}, err
	}
	if err := s.requireOptometrist(ctx, in.OptometristID); err != nil {
		return Appointment{}, err
	}
	if err := s.ensureFree(ctx, Slot{OptometristID: in.OptometristID, Date: date, StartTime: in.StartTime, EndTime: in.EndTime}); err != nil {
		return Appointment{}, err
	}

	branchID := in.BranchID
	created, err := s.repo.Create(ctx, Appointment{
		PatientID:     in.PatientID,
		OptometristID: in.OptometristID,
		BranchID:      &branchID,
		Date:          date,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		Type:          in.Type,
		Status:        StatusScheduled,
		Notes:         in.Notes,
	})
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: create: %w", err)
	}
	s.logger.Info("appointment booked", slog.Int64("appointment_id", created.ID), slog.Int64("patient_id", created.PatientID))
	s.announce(ctx, created, ChangeCreated,
		fmt.Sprintf("New appointment scheduled for %s at %s", created.Date.Format(dateLayout), created.StartTime))
	return created, nil
}

// Update edits an appointment. Customers may only set status to cancelled
// through it; any other field is refused.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Appointment, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if err := s.authorize(ctx, current, policy.ActionUpdate, policy.Appointments.CanUpdate); err != nil {
		return Appointment{}, err
	}
	actor, _ := identity.ActorFromContext(ctx)
	if actor.Role == identity.RoleCustomer && !in.cancelOnly() {
		return Appointment{}, &policy.DeniedError{Resource: resource, Action: policy.ActionUpdate, ActorID: actor.ID, Reason: policy.ReasonRoleDenied}
	}

	changes := Changes{StartTime: in.StartTime, EndTime: in.EndTime, Type: in.Type, Status: in.Status, Notes: in.Notes}
	slot := Slot{OptometristID: current.OptometristID, Date: current.Date, StartTime: current.StartTime, EndTime: current.EndTime, ExcludeID: id}
	openEnded := current.EndTime == ""
	rescheduled := false
	if in.AppointmentDate != nil {
		date, err := s.parseDate(*in.AppointmentDate)
		if err != nil {
			return Appointment{}, err
		}
		changes.Date = &date
		slot.Date = date
		rescheduled = true
	}
	if in.StartTime != nil {
		slot.StartTime = *in.StartTime
		rescheduled = true
	}
	if in.EndTime != nil {
		slot.EndTime = *in.EndTime
		openEnded = false
		rescheduled = true
	}
	if rescheduled {
		if openEnded {
			slot.EndTime = defaultEnd(slot.StartTime)
		}
		if err := validWindow(slot.StartTime, slot.EndTime); err != nil {
			return Appointment{}, err
		}
		if err := s.ensureFree(ctx, slot); err != nil {
			return Appointment{}, err
		}
	}

	updated, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: update %d: %w", id, err)
	}
	if in.Status != nil && *in.Status != current.Status {
		s.announce(ctx, updated, *in.Status, StatusMessage(*in.Status))
	} else {
		s.announce(ctx, updated, ChangeUpdated, "Your appointment has been updated")
	}
	return updated, nil
}

// Cancel moves an appointment to cancelled. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, id int64) (Appointment, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if err := s.authorize(ctx, current, policy.ActionUpdate, policy.Appointments.CanUpdate); err != nil {
		return Appointment{}, err
	}
	switch current.Status {
	case StatusCancelled:
		return current, nil
	case StatusCompleted:
		return Appointment{}, fmt.Errorf("%w: appointment already completed", shared.ErrConflict)
	}
	status := StatusCancelled
	cancelled, err := s.repo.Update(ctx, id, Changes{Status: &status})
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: cancel %d: %w", id, err)
	}
	s.announce(ctx, cancelled, ChangeCancelled, StatusMessage(StatusCancelled))
	return cancelled, nil
}

// Delete removes an appointment and announces it as cancelled.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, current, policy.ActionDelete, policy.Appointments.CanDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if current.Status != StatusCancelled && current.Status != StatusCompleted {
		current.Status = StatusCancelled
		s.announce(ctx, current, ChangeCancelled, StatusMessage(StatusCancelled))
	}
	return nil
}

func (s *Service) announce(ctx context.Context, a Appointment, changeType, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.AppointmentChanged(ctx, a.Event(), changeType, message)
}

func (s *Service) authorize(ctx context.Context, a Appointment, action policy.Action, rule func(identity.Actor, policy.Appointment) policy.Decision) error {
	return s.enforcer.Enforce(ctx, resource, strconv.FormatInt(a.ID, 10), action, func(actor identity.Actor) policy.Decision {
		return rule(actor, a.Snapshot())
	})
}

func (s *Service) parseDate(raw string) (time.Time, error) {
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: appointment_date must be YYYY-MM-DD", shared.ErrValidation)
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	if date.Before(today) {
		return time.Time{}, fmt.Errorf("%w: appointment_date must be today or later", shared.ErrValidation)
	}
	return date, nil
}

func (s *Service) requireOptometrist(ctx context.Context, id int64) error {
	role, err := s.repo.RoleOf(ctx, id)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return fmt.Errorf("%w: invalid optometrist selected", shared.ErrValidation)
	case err != nil:
		return fmt.Errorf("appointments: lookup optometrist %d: %w", id, err)
	case role != identity.RoleOptometrist:
		return fmt.Errorf("%w: invalid optometrist selected", shared.ErrValidation)
	}
	return nil
}

func (s *Service) ensureFree(ctx context.Context, slot Slot) error {
	taken, err := s.repo.Overlaps(ctx, slot)
	if err != nil {
		return fmt.Errorf("appointments: check slot: %w", err)
	}
	if taken {
		return ErrSlotTaken
	}
	return nil
}

// defaultEnd mirrors the stored default length of a booking without an end
// time. Windows running past midnight end at 24:00.
func defaultEnd(start string) string {
	t, err := time.Parse("15:04", start)
	if err != nil {
		return start
	}
	end := t.Add(defaultLength)
	if end.Day() != t.Day() {
		return "24:00"
	}
	return end.Format("15:04")
}

// HH:MM strings order lexicographically.
func validWindow(start, end string) error {
	if end != "" && end <= start {
		return fmt.Errorf("%w: end_time must be after start_time", shared.ErrValidation)
	}
	return nil
}
