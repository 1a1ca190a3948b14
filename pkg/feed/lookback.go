package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/clicknbit/newsapi/pkg/domain"
	"github.com/clicknbit/newsapi/pkg/repository"
)

// fillTopN accumulates ranked editorial items by scanning day-wide windows
// backwards from now: window i covers [now-(i+1)d, now-i d). Each window's
// batch is ranked independently and batches concatenate in window order, so
// a hot item from two days ago never outranks today's items. Stops once n
// items are found or maxDays windows are scanned.
func (s *Service) fillTopN(ctx context.Context, n int, categories []string, excludeIDs []int64, maxDays int) (items []domain.ContentItem, daysScanned int, err error) {
	now := s.now()

	for day := 0; day < maxDays && len(items) < n; day++ {
		start := now.Add(-time.Duration(day+1) * 24 * time.Hour)
		end := now.Add(-time.Duration(day) * 24 * time.Hour)

		exclude := make([]int64, 0, len(excludeIDs)+len(items))
		exclude = append(exclude, excludeIDs...)
		for _, item := range items {
			exclude = append(exclude, item.ID)
		}

		batch, err := s.content.RankEditorial(ctx, repository.EditorialFilter{
			Categories:  categories,
			WindowStart: &start,
			WindowEnd:   &end,
			ExcludeIDs:  exclude,
			Limit:       n - len(items),
		})
		if err != nil {
			return nil, daysScanned, fmt.Errorf("rank window %d: %w", day, err)
		}

		items = append(items, batch...)
		daysScanned = day + 1
	}

	return items, daysScanned, nil
}
