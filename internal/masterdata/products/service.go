package products

import (
	"context"
	"log/slog"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/masterdata/shared"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
)

type Service struct {
	repo   Repository
	cache  *shared.SummaryCache[notify.Product]
	logger *slog.Logger
}

// NewService builds the product service. cache may be nil.
func NewService(repo Repository, cache *shared.SummaryCache[notify.Product], logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// ProductSummary loads the product reference carried in notifications,
// preferring the cache.
func (s *Service) ProductSummary(ctx context.Context, id int64) (notify.Product, error) {
	if cached, ok := s.cache.Get(ctx, id); ok {
		return cached, nil
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return notify.Product{}, err
	}
	summary := p.Summary()
	if err := s.cache.Set(ctx, id, summary); err != nil {
		s.logger.Warn("cache product summary", slog.Int64("product_id", id), slog.Any("error", err))
	}
	return summary, nil
}
