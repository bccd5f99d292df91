package prescriptions

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

const resource = "prescription"

// RepositoryPort defines persistence used by the service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Prescription, error)
	Get(ctx context.Context, id int64) (Prescription, error)
	Create(ctx context.Context, p Prescription) (Prescription, error)
	Update(ctx context.Context, id int64, c Changes) (Prescription, error)
	Delete(ctx context.Context, id int64) error
}

// Notifier fans out notifications without blocking the caller.
type Notifier interface {
	Users(ctx context.Context, title, message, kind string, recipientIDs []int64, data map[string]any)
}

// Service applies prescription access rules.
type Service struct {
	repo     RepositoryPort
	enforcer *policy.Enforcer
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the service.
func NewService(repo RepositoryPort, enforcer *policy.Enforcer, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, enforcer: enforcer, notifier: notifier, logger: logger, now: time.Now}
}

// List returns prescriptions visible to the actor. Customers only ever see
// their own; everyone else needs the view-any right.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Prescription, error) {
	if actor, ok := identity.ActorFromContext(ctx); ok && actor.Role == identity.RoleCustomer {
		filter.PatientID = actor.ID
		return s.repo.List(ctx, filter)
	}
	if err := s.enforcer.Enforce(ctx, resource, "", policy.ActionViewAny, policy.Prescriptions.CanViewAny); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

// Get returns one prescription.
func (s *Service) Get(ctx context.Context, id int64) (Prescription, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Prescription{}, err
	}
	err = s.enforcer.Enforce(ctx, resource, strconv.FormatInt(id, 10), policy.ActionView, func(a identity.Actor) policy.Decision {
		return policy.Prescriptions.CanView(a, p.Snapshot())
	})
	if err != nil {
		return Prescription{}, err
	}
	return p, nil
}

// Create issues a prescription on behalf of the acting optometrist.
func (s *Service) Create(ctx context.Context, in CreateInput) (Prescription, error) {
	if err := s.enforcer.Enforce(ctx, resource, "", policy.ActionCreate, policy.Prescriptions.CanCreate); err != nil {
		return Prescription{}, err
	}
	actor, _ := identity.ActorFromContext(ctx)
	issue, err := time.Parse(dateLayout, in.IssueDate)
	if err != nil {
		return Prescription{}, fmt.Errorf("%w: issue_date", shared.ErrValidation)
	}
	expiry, err := time.Parse(dateLayout, in.ExpiryDate)
	if err != nil {
		return Prescription{}, fmt.Errorf("%w: expiry_date", shared.ErrValidation)
	}
	if !expiry.After(issue) {
		return Prescription{}, fmt.Errorf("%w: expiry_date must be after issue_date", shared.ErrValidation)
	}
	branchID := in.BranchID
	if branchID == nil {
		branchID = actor.BranchID
	}
	created, err := s.repo.Create(ctx, Prescription{
		Number:        s.nextNumber(),
		PatientID:     in.PatientID,
		OptometristID: actor.ID,
		AppointmentID: in.AppointmentID,
		BranchID:      branchID,
		Type:          in.Type,
		RightEye:      in.RightEye,
		LeftEye:       in.LeftEye,
		Notes:         in.Notes,
		IssueDate:     issue,
		ExpiryDate:    expiry,
		Status:        StatusActive,
	})
	if err != nil {
		return Prescription{}, fmt.Errorf("prescriptions: create: %w", err)
	}
	if s.notifier != nil {
		s.notifier.Users(ctx, "New prescription",
			"Your optometrist has issued a new prescription.",
			"prescription_created", []int64{created.PatientID},
			map[string]any{"prescription_id": created.ID, "expiry_date": created.ExpiryDate.Format(dateLayout)})
	}
	return created, nil
}

// Update changes a prescription.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Prescription, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Prescription{}, err
	}
	err = s.enforcer.Enforce(ctx, resource, strconv.FormatInt(id, 10), policy.ActionUpdate, func(a identity.Actor) policy.Decision {
		return policy.Prescriptions.CanUpdate(a, p.Snapshot())
	})
	if err != nil {
		return Prescription{}, err
	}
	changes := Changes{Type: in.Type, RightEye: in.RightEye, LeftEye: in.LeftEye, Notes: in.Notes, Status: in.Status}
	if in.ExpiryDate != nil {
		expiry, err := time.Parse(dateLayout, *in.ExpiryDate)
		if err != nil || !expiry.After(p.IssueDate) {
			return Prescription{}, fmt.Errorf("%w: expiry_date must be after issue_date", shared.ErrValidation)
		}
		changes.ExpiryDate = &expiry
	}
	return s.repo.Update(ctx, id, changes)
}

// Delete removes a prescription.
func (s *Service) Delete(ctx context.Context, id int64) error {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	err = s.enforcer.Enforce(ctx, resource, strconv.FormatInt(id, 10), policy.ActionDelete, func(a identity.Actor) policy.Decision {
		return policy.Prescriptions.CanDelete(a, p.Snapshot())
	})
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) nextNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "RX-" + s.now().UTC().Format("20060102") + "-" + suffix
}
