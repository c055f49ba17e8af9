package stock

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Totals(ctx context.Context) (int64, decimal.Decimal, error)
	TopMissing(ctx context.Context, limit int) ([]ItemQuantity, error)
	TopNeedsFill(ctx context.Context, limit int) ([]ItemQuantity, error)
	TopInStock(ctx context.Context, limit int) ([]ItemQuantity, error)
}

// Service computes and caches the stock statistics snapshot.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	topN  int
}

// NewService builds Service. topN bounds each of the top lists.
func NewService(repo RepositoryPort, cache *Cache, topN int) *Service {
	if topN <= 0 {
		topN = 10
	}
	return &Service{repo: repo, cache: cache, topN: topN}
}

// Statistics returns the snapshot, from cache when fresh.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics
	err := s.cache.FetchJSON(ctx, &stats, func(ctx context.Context) (interface{}, error) {
		return s.compute(ctx)
	})
	return stats, err
}

// Refresh recomputes the snapshot and overwrites the cache. The warmup job
// calls this on a schedule so interactive requests rarely pay for the
// aggregate queries.
func (s *Service) Refresh(ctx context.Context) (Statistics, error) {
	stats, err := s.compute(ctx)
	if err != nil {
		return Statistics{}, err
	}
	if err := s.cache.StoreJSON(ctx, stats); err != nil {
		return Statistics{}, err
	}
	return stats, nil
}

// compute fans the four aggregate queries out concurrently.
func (s *Service) compute(ctx context.Context) (Statistics, error) {
	stats := Statistics{GeneratedAt: time.Now()}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		count, total, err := s.repo.Totals(ctx)
		if err != nil {
			return err
		}
		stats.TotalItems = count
		stats.TotalQuantity = total
		return nil
	})

	g.Go(func() error {
		missing, err := s.repo.TopMissing(ctx, s.topN)
		if err != nil {
			return err
		}
		stats.Missing = missing
		return nil
	})

	g.Go(func() error {
		needsFill, err := s.repo.TopNeedsFill(ctx, s.topN)
		if err != nil {
			return err
		}
		stats.NeedsFill = needsFill
		return nil
	})

	g.Go(func() error {
		most, err := s.repo.TopInStock(ctx, s.topN)
		if err != nil {
			return err
		}
		stats.MostInStock = most
		return nil
	})

	if err := g.Wait(); err != nil {
		return Statistics{}, err
	}
	return stats, nil
}
