package products

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/masterdata/shared"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
)

type memoryRepo struct {
	products []Product
	last     shared.ListFilters
}

func (m *memoryRepo) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	m.last = filters
	return m.products, len(m.products), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, shared.ErrNotFound
}

func TestProductRoutes(t *testing.T) {
	repo := &memoryRepo{products: []Product{{ID: 4, SKU: "FR-001", Name: "Round Frame", PrimaryImage: "/img/fr-001.png"}}}
	svc := NewService(repo, nil, nil)
	r := chi.NewRouter()
	r.Route("/api/products", NewHandler(nil, svc).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/?limit=500&search=frame", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, shared.MaxLimit, repo.last.Limit)
	require.Equal(t, "frame", repo.last.Search)
	var page shared.Page[Product]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/9", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	summary, err := svc.ProductSummary(context.Background(), 4)
	require.NoError(t, err)
	require.Equal(t, "FR-001", summary.SKU)
	require.Equal(t, "/img/fr-001.png", summary.Image)

	_, err = svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrInvalidID)
}

type countingRepo struct {
	memoryRepo
	gets int
}

func (c *countingRepo) Get(ctx context.Context, id int64) (Product, error) {
	c.gets++
	return c.memoryRepo.Get(ctx, id)
}

func TestProductSummaryCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &countingRepo{memoryRepo: memoryRepo{products: []Product{{ID: 7, SKU: "LEN-DAILY", Name: "Daily Lenses"}}}}
	svc := NewService(repo, shared.NewSummaryCache[notify.Product](client, "clinic:product:", time.Minute), nil)

	for i := 0; i < 3; i++ {
		summary, err := svc.ProductSummary(context.Background(), 7)
		require.NoError(t, err)
		require.Equal(t, "Daily Lenses", summary.Name)
	}
	require.Equal(t, 1, repo.gets)
	require.True(t, mr.Exists("clinic:product:7"))

	mr.FastForward(2 * time.Minute)
	_, err := svc.ProductSummary(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 2, repo.gets)

	_, err = svc.ProductSummary(context.Background(), 8)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.False(t, mr.Exists("clinic:product:8"))
}
