package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

const resource = "branch_stock"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, productID, branchID int64) (Stock, error)
	List(ctx context.Context, branchID int64) ([]Stock, error)
	LowStock(ctx context.Context, branchID int64) ([]LowStockItem, error)
	Movements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards movements carrying a client code.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Catalog resolves the references embedded in stock alerts.
type Catalog interface {
	ProductSummary(ctx context.Context, id int64) (notify.Product, error)
	BranchSummary(ctx context.Context, id int64) (notify.Branch, error)
}

// Notifier fans out inventory changes without blocking the caller.
type Notifier interface {
	InventoryChanged(ctx context.Context, product notify.Product, branch notify.Branch, changeType, message string, stockLevel, threshold int)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	DefaultThreshold int
}

// Service coordinates inventory operations.
type Service struct {
	repo        RepositoryPort
	enforcer    *policy.Enforcer
	audit       AuditPort
	idempotency IdempotencyPort
	catalog     Catalog
	notifier    Notifier
	threshold   int
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. audit, idem, catalog and notifier may be nil.
func NewService(repo RepositoryPort, enforcer *policy.Enforcer, audit AuditPort, idem IdempotencyPort, catalog Catalog, notifier Notifier, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.DefaultThreshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Service{
		repo:        repo,
		enforcer:    enforcer,
		audit:       audit,
		idempotency: idem,
		catalog:     catalog,
		notifier:    notifier,
		threshold:   threshold,
		logger:      logger,
		now:         time.Now,
	}
}

// Get returns the stock of product at branch.
func (s *Service) Get(ctx context.Context, productID, branchID int64) (View, error) {
	if err := s.authorize(ctx, branchID, policy.ActionView, policy.Stocks.CanView); err != nil {
		return View{}, err
	}
	stock, err := s.repo.Get(ctx, productID, branchID)
	if err != nil {
		return View{}, err
	}
	return stock.ToView(), nil
}

// List returns the stock of a branch. Admins may pass 0 for every branch;
// other actors default to their own branch.
func (s *Service) List(ctx context.Context, branchID int64) ([]View, error) {
	branchID, err := s.scopeBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("inventory: list: %w", err)
	}
	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToView())
	}
	return out, nil
}

// LowStock lists rows at or below their threshold visible to the actor.
func (s *Service) LowStock(ctx context.Context, branchID int64) ([]LowStockItem, error) {
	branchID, err := s.scopeBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.LowStock(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("inventory: low stock: %w", err)
	}
	if items == nil {
		items = []LowStockItem{}
	}
	return items, nil
}

// Movements lists the stock card of product at branch.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.ProductID == 0 || filter.BranchID == 0 {
		return nil, fmt.Errorf("%w: inventory: product and branch required", shared.ErrValidation)
	}
	if err := s.authorize(ctx, filter.BranchID, policy.ActionView, policy.Stocks.CanView); err != nil {
		return nil, err
	}
	return s.repo.Movements(ctx, filter)
}

// SetStock replaces the on-hand quantity of product at branch.
func (s *Service) SetStock(ctx context.Context, in SetStockInput) (View, error) {
	if err := s.authorize(ctx, in.BranchID, policy.ActionUpdate, policy.Stocks.CanUpdate); err != nil {
		return View{}, err
	}
	if in.Quantity < 0 {
		return View{}, fmt.Errorf("%w: inventory: stock quantity must be >= 0", shared.ErrValidation)
	}
	return s.postMovement(ctx, movementParams{
		Code:      in.Code,
		Kind:      KindSet,
		ProductID: in.ProductID,
		BranchID:  in.BranchID,
		Note:      in.Note,
		apply: func(current Stock) (Stock, error) {
			current.Quantity = in.Quantity
			if in.Threshold != nil {
				current.Threshold = *in.Threshold
			}
			return current, nil
		},
	})
}

// Adjust moves the on-hand quantity of product at branch by in.Delta.
func (s *Service) Adjust(ctx context.Context, in AdjustInput) (View, error) {
	if err := s.authorize(ctx, in.BranchID, policy.ActionUpdate, policy.Stocks.CanUpdate); err != nil {
		return View{}, err
	}
	if in.Delta == 0 {
		return View{}, ErrInvalidQuantity
	}
	return s.postMovement(ctx, movementParams{
		Code:      in.Code,
		Kind:      KindAdjust,
		ProductID: in.ProductID,
		BranchID:  in.BranchID,
		Note:      in.Note,
		apply: func(current Stock) (Stock, error) {
			current.Quantity += in.Delta
			return current, nil
		},
	})
}

type movementParams struct {
	Code      string
	Kind      string
	ProductID int64
	BranchID  int64
	Note      string
	apply     func(Stock) (Stock, error)
}

func (s *Service) postMovement(ctx context.Context, params movementParams) (View, error) {
	actor, _ := identity.ActorFromContext(ctx)
	now := s.now().UTC()
	code := params.Code
	if code == "" {
		code = fmt.Sprintf("STK-%d", now.UnixNano())
	}

	key := fmt.Sprintf("%s:%s:%d:%d", params.Kind, code, params.BranchID, params.ProductID)
	insertedKey := false
	if params.Code != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			return View{}, err
		}
		insertedKey = true
	}

	var before, after Stock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetStockForUpdate(ctx, params.ProductID, params.BranchID)
		switch {
		case errors.Is(err, ErrStockNotFound):
			current = Stock{ProductID: params.ProductID, BranchID: params.BranchID, Threshold: s.threshold}
		case err != nil:
			return err
		}
		before = current
		next, err := params.apply(current)
		if err != nil {
			return err
		}
		if next.Quantity < 0 || next.Quantity < next.Reserved {
			return ErrNegativeStock
		}
		after, err = tx.UpsertStock(ctx, next)
		if err != nil {
			return err
		}
		delta := after.Quantity - before.Quantity
		if delta == 0 {
			return nil
		}
		return tx.InsertMovement(ctx, Movement{
			Code:      code,
			Kind:      params.Kind,
			ProductID: params.ProductID,
			BranchID:  params.BranchID,
			Delta:     delta,
			Balance:   after.Quantity,
			Note:      params.Note,
			ActorID:   actor.ID,
			CreatedAt: now,
		})
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return View{}, err
	}

	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   fmt.Sprintf("inventory:%s", params.Kind),
			Entity:   resource,
			EntityID: fmt.Sprintf("%d:%d", params.BranchID, params.ProductID),
			Meta: map[string]any{
				"code":     code,
				"previous": before.Quantity,
				"quantity": after.Quantity,
				"note":     params.Note,
			},
			At: now,
		})
		if err != nil {
			s.logger.Warn("audit stock movement", slog.String("code", code), slog.Any("error", err))
		}
	}
	if after.Low() {
		s.alertLowStock(ctx, after)
	}
	return after.ToView(), nil
}

func (s *Service) alertLowStock(ctx context.Context, stock Stock) {
	if s.notifier == nil || s.catalog == nil {
		return
	}
	product, err := s.catalog.ProductSummary(ctx, stock.ProductID)
	if err != nil {
		s.logger.Warn("low stock alert: load product", slog.Int64("product_id", stock.ProductID), slog.Any("error", err))
		return
	}
	branch, err := s.catalog.BranchSummary(ctx, stock.BranchID)
	if err != nil {
		s.logger.Warn("low stock alert: load branch", slog.Int64("branch_id", stock.BranchID), slog.Any("error", err))
		return
	}
	s.notifier.InventoryChanged(ctx, product, branch, ChangeLowStock, LowStockMessage(product.Name, stock.Available()),
		stock.Available(), stock.Threshold)
}

// LowStockMessage is the alert text for a product running low.
func LowStockMessage(productName string, available int) string {
	return fmt.Sprintf("Low stock alert: %s has %d items remaining", productName, available)
}

func (s *Service) scopeBranch(ctx context.Context, branchID int64) (int64, error) {
	actor, ok := identity.ActorFromContext(ctx)
	if !ok {
		return 0, policy.ErrAuthenticationMissing
	}
	if branchID == 0 && !actor.IsAdmin() {
		own, assigned := actor.Branch()
		if !assigned {
			return 0, &policy.DeniedError{Resource: resource, Action: policy.ActionView, ActorID: actor.ID, Reason: policy.ReasonBranchScope}
		}
		branchID = own
	}
	if branchID == 0 {
		return 0, nil
	}
	if err := s.authorize(ctx, branchID, policy.ActionView, policy.Stocks.CanView); err != nil {
		return 0, err
	}
	return branchID, nil
}

func (s *Service) authorize(ctx context.Context, branchID int64, action policy.Action, rule func(identity.Actor, policy.Stock) policy.Decision) error {
	stock := Stock{BranchID: branchID}
	return s.enforcer.Enforce(ctx, resource, fmt.Sprintf("branch:%d", branchID), action, func(a identity.Actor) policy.Decision {
		return rule(a, stock.Snapshot())
	})
}
