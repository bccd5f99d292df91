package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

type memoryRepo struct {
	stocks    map[string]Stock
	movements []Movement
	nextID    int64
	failNext  error
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo(rows ...Stock) *memoryRepo {
	repo := &memoryRepo{stocks: make(map[string]Stock)}
	for _, s := range rows {
		repo.stocks[key(s.ProductID, s.BranchID)] = s
	}
	return repo
}

func key(productID, branchID int64) string {
	return fmt.Sprintf("%d:%d", productID, branchID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	// stage writes so a failing callback leaves nothing behind
	staged := &memoryRepo{stocks: make(map[string]Stock), nextID: r.nextID}
	for k, v := range r.stocks {
		staged.stocks[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: staged}); err != nil {
		return err
	}
	r.stocks = staged.stocks
	r.nextID = staged.nextID
	r.movements = append(r.movements, staged.movements...)
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, productID, branchID int64) (Stock, error) {
	s, ok := r.stocks[key(productID, branchID)]
	if !ok {
		return Stock{}, shared.ErrNotFound
	}
	return s, nil
}

func (r *memoryRepo) List(ctx context.Context, branchID int64) ([]Stock, error) {
	var out []Stock
	for _, s := range r.stocks {
		if branchID == 0 || s.BranchID == branchID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryRepo) LowStock(ctx context.Context, branchID int64) ([]LowStockItem, error) {
	var out []LowStockItem
	for _, s := range r.stocks {
		if (branchID == 0 || s.BranchID == branchID) && s.Low() {
			out = append(out, LowStockItem{Stock: s})
		}
	}
	return out, nil
}

func (r *memoryRepo) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if m.ProductID == filter.ProductID && m.BranchID == filter.BranchID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetStockForUpdate(ctx context.Context, productID, branchID int64) (Stock, error) {
	if s, ok := tx.repo.stocks[key(productID, branchID)]; ok {
		return s, nil
	}
	return Stock{}, ErrStockNotFound
}

func (tx *memoryTx) UpsertStock(ctx context.Context, s Stock) (Stock, error) {
	if s.ID == 0 {
		tx.repo.nextID++
		s.ID = tx.repo.nextID
	}
	tx.repo.stocks[key(s.ProductID, s.BranchID)] = s
	return s, nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) error {
	tx.repo.movements = append(tx.repo.movements, m)
	return nil
}

type memoryKeys struct {
	seen map[string]bool
}

func (k *memoryKeys) CheckAndInsert(ctx context.Context, key, module string) error {
	if k.seen[key] {
		return shared.ErrIdempotencyConflict
	}
	k.seen[key] = true
	return nil
}

func (k *memoryKeys) Delete(ctx context.Context, key string) error {
	delete(k.seen, key)
	return nil
}

type staticCatalog struct{}

func (staticCatalog) ProductSummary(ctx context.Context, id int64) (notify.Product, error) {
	if id == 404 {
		return notify.Product{}, shared.ErrNotFound
	}
	return notify.Product{ID: id, Name: "Progressive Lens", SKU: "LNS-PRG"}, nil
}

func (staticCatalog) BranchSummary(ctx context.Context, id int64) (notify.Branch, error) {
	return notify.Branch{ID: id, Name: "Downtown", Address: "1 Main St"}, nil
}

type alert struct {
	product    notify.Product
	branch     notify.Branch
	changeType string
	message    string
	level      int
	threshold  int
}

type recordingNotifier struct {
	alerts []alert
}

func (n *recordingNotifier) InventoryChanged(ctx context.Context, product notify.Product, branch notify.Branch, changeType, message string, stockLevel, threshold int) {
	n.alerts = append(n.alerts, alert{product, branch, changeType, message, stockLevel, threshold})
}

type recordingAudit struct {
	entries []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

var (
	admin      = identity.Actor{ID: 1, Role: identity.RoleAdmin}
	staffer    = identity.Actor{ID: 7, Role: identity.RoleStaff, BranchID: identity.BranchPtr(3)}
	otherStaff = identity.Actor{ID: 8, Role: identity.RoleStaff, BranchID: identity.BranchPtr(4)}
	optom      = identity.Actor{ID: 20, Role: identity.RoleOptometrist, BranchID: identity.BranchPtr(3)}
	customer   = identity.Actor{ID: 50, Role: identity.RoleCustomer}
)

func as(actor identity.Actor) context.Context {
	return identity.WithActor(context.Background(), actor)
}

type fixture struct {
	svc      *Service
	repo     *memoryRepo
	keys     *memoryKeys
	notifier *recordingNotifier
	audit    *recordingAudit
}

func newFixture(rows ...Stock) fixture {
	f := fixture{
		repo:     newMemoryRepo(rows...),
		keys:     &memoryKeys{seen: map[string]bool{}},
		notifier: &recordingNotifier{},
		audit:    &recordingAudit{},
	}
	f.svc = NewService(f.repo, policy.NewEnforcer(nil, nil), f.audit, f.keys, staticCatalog{}, f.notifier, ServiceConfig{}, nil)
	f.svc.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func TestSetStockCreatesRowWithDefaultThreshold(t *testing.T) {
	f := newFixture()

	view, err := f.svc.SetStock(as(staffer), SetStockInput{ProductID: 9, BranchID: 3, Quantity: 40})
	require.NoError(t, err)
	require.Equal(t, 40, view.Quantity)
	require.Equal(t, DefaultThreshold, view.Threshold)
	require.Equal(t, notify.StockNormal, view.Status)
	require.Empty(t, f.notifier.alerts)

	require.Len(t, f.repo.movements, 1)
	require.Equal(t, 40, f.repo.movements[0].Delta)
	require.Equal(t, int64(7), f.repo.movements[0].ActorID)
	require.Len(t, f.audit.entries, 1)
	require.Equal(t, "inventory:SET", f.audit.entries[0].Action)
	require.Equal(t, "3:9", f.audit.entries[0].EntityID)
}

func TestLowStockAlertAtThreshold(t *testing.T) {
	f := newFixture(Stock{ID: 1, ProductID: 9, BranchID: 3, Quantity: 12, Reserved: 2, Threshold: 5})

	// available 10 -> 5 equals the threshold
	view, err := f.svc.Adjust(as(staffer), AdjustInput{ProductID: 9, BranchID: 3, Delta: -5})
	require.NoError(t, err)
	require.Equal(t, 5, view.Available)
	require.Equal(t, notify.StockLow, view.Status)

	require.Len(t, f.notifier.alerts, 1)
	got := f.notifier.alerts[0]
	require.Equal(t, ChangeLowStock, got.changeType)
	require.Equal(t, "Low stock alert: Progressive Lens has 5 items remaining", got.message)
	require.Equal(t, 5, got.level)
	require.Equal(t, 5, got.threshold)
	require.Equal(t, int64(3), got.branch.ID)
}

func TestLowStockAlertSkippedWhenCatalogFails(t *testing.T) {
	f := newFixture(Stock{ID: 1, ProductID: 404, BranchID: 3, Quantity: 10, Threshold: 5})

	_, err := f.svc.SetStock(as(admin), SetStockInput{ProductID: 404, BranchID: 3, Quantity: 1})
	require.NoError(t, err)
	require.Empty(t, f.notifier.alerts)
}

func TestNegativeStockGuard(t *testing.T) {
	f := newFixture(Stock{ID: 1, ProductID: 9, BranchID: 3, Quantity: 4, Reserved: 3, Threshold: 5})

	_, err := f.svc.Adjust(as(staffer), AdjustInput{ProductID: 9, BranchID: 3, Delta: -2})
	require.ErrorIs(t, err, ErrNegativeStock)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = f.svc.Adjust(as(staffer), AdjustInput{ProductID: 9, BranchID: 3})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	require.Equal(t, 4, f.repo.stocks[key(9, 3)].Quantity)
	require.Empty(t, f.repo.movements)
	require.Empty(t, f.notifier.alerts)
}

func TestIdempotentAdjustment(t *testing.T) {
	f := newFixture(Stock{ID: 1, ProductID: 9, BranchID: 3, Quantity: 20, Threshold: 5})
	in := AdjustInput{ProductID: 9, BranchID: 3, Delta: 5, Code: "GRN-001"}

	_, err := f.svc.Adjust(as(staffer), in)
	require.NoError(t, err)
	_, err = f.svc.Adjust(as(staffer), in)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Equal(t, 25, f.repo.stocks[key(9, 3)].Quantity)

	// a failed movement releases its key for a retry
	f.repo.failNext = errors.New("serialization failure")
	retry := AdjustInput{ProductID: 9, BranchID: 3, Delta: 1, Code: "GRN-002"}
	_, err = f.svc.Adjust(as(staffer), retry)
	require.Error(t, err)
	_, err = f.svc.Adjust(as(staffer), retry)
	require.NoError(t, err)
	require.Equal(t, 26, f.repo.stocks[key(9, 3)].Quantity)
}

func TestStockPolicy(t *testing.T) {
	f := newFixture(Stock{ID: 1, ProductID: 9, BranchID: 3, Quantity: 20, Threshold: 5})

	_, err := f.svc.SetStock(as(otherStaff), SetStockInput{ProductID: 9, BranchID: 3, Quantity: 1})
	require.ErrorIs(t, err, policy.ErrPolicyDenied)
	_, err = f.svc.Adjust(as(optom), AdjustInput{ProductID: 9, BranchID: 3, Delta: 1})
	require.ErrorIs(t, err, policy.ErrPolicyDenied)
	_, err = f.svc.Get(as(customer), 9, 3)
	require.ErrorIs(t, err, policy.ErrPolicyDenied)
	_, err = f.svc.Get(context.Background(), 9, 3)
	require.ErrorIs(t, err, policy.ErrAuthenticationMissing)

	view, err := f.svc.Get(as(optom), 9, 3)
	require.NoError(t, err)
	require.Equal(t, 20, view.Available)
}

func TestListScopesToOwnBranch(t *testing.T) {
	f := newFixture(
		Stock{ID: 1, ProductID: 9, BranchID: 3, Quantity: 2, Threshold: 5},
		Stock{ID: 2, ProductID: 9, BranchID: 4, Quantity: 1, Threshold: 5},
		Stock{ID: 3, ProductID: 10, BranchID: 3, Quantity: 50, Threshold: 5},
	)

	rows, err := f.svc.List(as(staffer), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	_, err = f.svc.List(as(staffer), 4)
	require.ErrorIs(t, err, policy.ErrPolicyDenied)

	low, err := f.svc.LowStock(as(admin), 0)
	require.NoError(t, err)
	require.Len(t, low, 2)

	low, err = f.svc.LowStock(as(staffer), 0)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, int64(3), low[0].Stock.BranchID)
}

func TestHandler(t *testing.T) {
	f := newFixture(Stock{ID: 1, ProductID: 9, BranchID: 3, Quantity: 20, Threshold: 5})
	r := chi.NewRouter()
	r.Route("/api/inventory", NewHandler(nil, f.svc).MountRoutes)

	do := func(actor identity.Actor, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(identity.WithActor(req.Context(), actor))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do(staffer, http.MethodPut, "/api/inventory/branches/3/products/9", `{"stock_quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"status":"low"`)
	require.Len(t, f.notifier.alerts, 1)

	rec = do(staffer, http.MethodPut, "/api/inventory/branches/3/products/9", `{"stock_quantity":-1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(otherStaff, http.MethodPut, "/api/inventory/branches/3/products/9", `{"stock_quantity":8}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(staffer, http.MethodPost, "/api/inventory/adjustments", `{"product_id":9,"branch_id":3,"delta":-10}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(staffer, http.MethodGet, "/api/inventory/movements?product_id=9&branch_id=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"delta":-17`)

	rec = do(admin, http.MethodGet, "/api/inventory/low-stock?branch_id=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(admin, http.MethodGet, "/api/inventory/branches/3/products/77", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
