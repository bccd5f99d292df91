package branches

import (
	"context"
	"log/slog"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/masterdata/shared"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
)

// Service serves branch lookups. Notification references go through an
// optional redis cache since every stock change resolves one.
type Service struct {
	repo   Repository
	cache  *shared.SummaryCache[notify.Branch]
	logger *slog.Logger
}

// NewService builds the branch service. cache may be nil.
func NewService(repo Repository, cache *shared.SummaryCache[notify.Branch], logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Branch, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, id int64) (Branch, error) {
	if id <= 0 {
		return Branch{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// BranchSummary loads the branch reference carried in notifications.
func (s *Service) BranchSummary(ctx context.Context, id int64) (notify.Branch, error) {
	if cached, ok := s.cache.Get(ctx, id); ok {
		return cached, nil
	}
	b, err := s.Get(ctx, id)
	if err != nil {
		return notify.Branch{}, err
	}
	summary := b.Summary()
	if err := s.cache.Set(ctx, id, summary); err != nil {
		s.logger.Warn("cache branch summary", slog.Int64("branch_id", id), slog.Any("error", err))
	}
	return summary, nil
}
