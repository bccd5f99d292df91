package transactions

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

const resource = "transaction"

// RepositoryPort defines persistence used by the service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]Transaction, int, error)
	Get(ctx context.Context, id int64) (Transaction, error)
	Create(ctx context.Context, t Transaction, now time.Time) (Transaction, error)
	// Update and Delete run check against the row as it stands inside the
	// write, so a concurrent completion is seen before the change lands.
	Update(ctx context.Context, id int64, in UpdateInput, check func(Transaction) error) (Transaction, error)
	SetStatus(ctx context.Context, id int64, status string) (Transaction, error)
	Delete(ctx context.Context, id int64, check func(Transaction) error) error
}

// AuditPort records voids.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Notifier fans out notifications without blocking the caller.
type Notifier interface {
	Users(ctx context.Context, title, message, kind string, recipientIDs []int64, data map[string]any)
}

// Page is a listing with paging metadata.
type Page struct {
	Data       []Transaction     `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

// Service applies transaction rules.
type Service struct {
	repo     RepositoryPort
	enforcer *policy.Enforcer
	audit    AuditPort
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the service. audit and notifier may be nil.
func NewService(repo RepositoryPort, enforcer *policy.Enforcer, audit AuditPort, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, enforcer: enforcer, audit: audit, notifier: notifier, logger: logger, now: time.Now}
}

// List returns transactions visible to the actor. Customers see their own,
// staff the ones of their branch.
func (s *Service) List(ctx context.Context, filter ListFilter) (Page, error) {
	actor, ok := identity.ActorFromContext(ctx)
	switch {
	case ok && actor.Role == identity.RoleCustomer:
		filter.CustomerID = actor.ID
	default:
		if err := s.enforcer.Enforce(ctx, resource, "", policy.ActionViewAny, policy.Transactions.CanViewAny); err != nil {
			return Page{}, err
		}
		if actor.Role == identity.RoleStaff {
			branchID, assigned := actor.Branch()
			if !assigned {
				return Page{Data: []Transaction{}, Pagination: shared.NewPagination(filter.Page, filter.PerPage, 0)}, nil
			}
			filter.BranchID = branchID
		}
	}
	paging := shared.NewPagination(filter.Page, filter.PerPage, 0)
	items, total, err := s.repo.List(ctx, filter, paging.PerPage, paging.Offset())
	if err != nil {
		return Page{}, fmt.Errorf("transactions: list: %w", err)
	}
	if items == nil {
		items = []Transaction{}
	}
	return Page{Data: items, Pagination: shared.NewPagination(paging.Page, paging.PerPage, total)}, nil
}

// Get returns one transaction.
func (s *Service) Get(ctx context.Context, id int64) (Transaction, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if err := s.authorize(ctx, t, policy.ActionView, policy.Transactions.CanView); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// Create records a pending sale at the acting staff member's branch.
func (s *Service) Create(ctx context.Context, in CreateInput) (Transaction, error) {
	if err := s.enforcer.Enforce(ctx, resource, "", policy.ActionCreate, policy.Transactions.CanCreate); err != nil {
		return Transaction{}, err
	}
	actor, _ := identity.ActorFromContext(ctx)
	branchID, ok := actor.Branch()
	if !ok {
		return Transaction{}, fmt.Errorf("%w: staff member has no branch", shared.ErrValidation)
	}
	createdBy := actor.ID
	t, err := s.repo.Create(ctx, Transaction{
		CustomerID:    in.CustomerID,
		BranchID:      branchID,
		AppointmentID: in.AppointmentID,
		TotalAmount:   in.TotalAmount,
		Status:        StatusPending,
		PaymentMethod: in.PaymentMethod,
		Notes:         in.Notes,
		CreatedBy:     &createdBy,
	}, s.now())
	if err != nil {
		return Transaction{}, fmt.Errorf("transactions: create: %w", err)
	}
	s.logger.Info("transaction created", slog.String("code", t.Code), slog.Int64("branch_id", t.BranchID))
	return t, nil
}

// Update edits a transaction. Completing it notifies the customer.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Transaction, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	check := func(current Transaction) error {
		if err := s.authorize(ctx, current, policy.ActionUpdate, policy.Transactions.CanUpdate); err != nil {
			return err
		}
		if in.Status != nil && current.Status != StatusPending {
			return fmt.Errorf("%w: transaction is not pending", shared.ErrConflict)
		}
		return nil
	}
	if err := check(t); err != nil {
		return Transaction{}, err
	}
	updated, err := s.repo.Update(ctx, id, in, check)
	if err != nil {
		return Transaction{}, fmt.Errorf("transactions: update %d: %w", id, err)
	}
	if in.Status != nil && *in.Status == StatusCompleted && s.notifier != nil {
		s.notifier.Users(ctx, "Transaction completed",
			"Your transaction "+updated.Code+" has been completed.",
			"transaction_completed", []int64{updated.CustomerID},
			map[string]any{"transaction_id": updated.ID, "transaction_code": updated.Code, "total_amount": updated.TotalAmount})
	}
	return updated, nil
}

// Delete removes a transaction that has not completed.
func (s *Service) Delete(ctx context.Context, id int64) error {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	check := func(current Transaction) error {
		return s.authorize(ctx, current, policy.ActionDelete, policy.Transactions.CanDelete)
	}
	if err := check(t); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id, check)
}

// Void marks a transaction voided in any state and records the reason.
func (s *Service) Void(ctx context.Context, id int64, in VoidInput) (Transaction, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if err := s.authorize(ctx, t, policy.ActionVoid, policy.Transactions.CanVoid); err != nil {
		return Transaction{}, err
	}
	if t.Status == StatusVoided {
		return t, nil
	}
	voided, err := s.repo.SetStatus(ctx, id, StatusVoided)
	if err != nil {
		return Transaction{}, fmt.Errorf("transactions: void %d: %w", id, err)
	}
	actor, _ := identity.ActorFromContext(ctx)
	if s.audit != nil {
		entry := shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "transaction.void",
			Entity:   resource,
			EntityID: shared.EntityRef(id),
			Meta:     map[string]any{"reason": in.Reason, "previous_status": t.Status, "code": t.Code},
			At:       s.now().UTC(),
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			s.logger.Warn("audit void", slog.Int64("transaction_id", id), slog.Any("error", err))
		}
	}
	return voided, nil
}

func (s *Service) authorize(ctx context.Context, t Transaction, action policy.Action, rule func(identity.Actor, policy.Transaction) policy.Decision) error {
	return s.enforcer.Enforce(ctx, resource, strconv.FormatInt(t.ID, 10), action, func(a identity.Actor) policy.Decision {
		return rule(a, t.Snapshot())
	})
}
