package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
)

const resource = "user"

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	Update(ctx context.Context, id int64, in UpdateInput) (User, error)
	Approve(ctx context.Context, id int64) (User, error)
	Delete(ctx context.Context, id int64) error
}

// Notifier fans out account notifications without blocking the caller.
type Notifier interface {
	Users(ctx context.Context, title, message, kind string, recipientIDs []int64, data map[string]any)
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	enforcer *policy.Enforcer
	notifier Notifier
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, enforcer *policy.Enforcer, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, enforcer: enforcer, notifier: notifier, logger: logger}
}

// List returns accounts matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]User, error) {
	if err := s.enforcer.Enforce(ctx, resource, "", policy.ActionViewAny, policy.Users.CanViewAny); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	err = s.enforcer.Enforce(ctx, resource, strconv.FormatInt(id, 10), policy.ActionView, func(a identity.Actor) policy.Decision {
		return policy.Users.CanView(a, user.Snapshot())
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Update changes an account. Role, branch and activation are admin-only fields.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	entityID := strconv.FormatInt(id, 10)
	err = s.enforcer.Enforce(ctx, resource, entityID, policy.ActionUpdate, func(a identity.Actor) policy.Decision {
		// admin-only fields follow the account creation rule
		if in.administrative() {
			return policy.Users.CanCreate(a)
		}
		return policy.Users.CanUpdate(a, user.Snapshot())
	})
	if err != nil {
		return User{}, err
	}
	updated, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return User{}, fmt.Errorf("users: update %d: %w", id, err)
	}
	return updated, nil
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id int64) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	err = s.enforcer.Enforce(ctx, resource, strconv.FormatInt(id, 10), policy.ActionDelete, func(a identity.Actor) policy.Decision {
		return policy.Users.CanDelete(a, user.Snapshot())
	})
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Approve activates a pending account and tells its owner.
func (s *Service) Approve(ctx context.Context, id int64) (User, error) {
	if err := s.enforcer.Enforce(ctx, resource, strconv.FormatInt(id, 10), policy.ActionApprove, policy.Users.CanApprove); err != nil {
		return User{}, err
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if user.IsApproved {
		return user, nil
	}
	approved, err := s.repo.Approve(ctx, id)
	if err != nil {
		return User{}, fmt.Errorf("users: approve %d: %w", id, err)
	}
	s.logger.Info("account approved", slog.Int64("user_id", id))
	if s.notifier != nil {
		s.notifier.Users(ctx, "Account approved",
			"Your account has been approved. You can now sign in.",
			"account_approved", []int64{id}, map[string]any{"user_id": id, "role": string(approved.Role)})
	}
	return approved, nil
}
