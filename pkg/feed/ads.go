package feed

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/clicknbit/newsapi/pkg/domain"
)

// paid ranking weights for the geo-aware path
const (
	adPriorityWeight  = 0.6
	adProximityWeight = 10.0
	minDrawPriority   = 0.1
)

// selectAds picks count paid items from the active pool. Without a geo point
// the pick is a weighted-random draw, key = -ln(U)/max(priority, 0.1) ascending,
// so higher-priority ads tend to surface first without being guaranteed to.
// With a geo point the order is deterministic: priority*0.6 + proximity*10.
// preferFullscreen narrows the pool to full-screen creatives when any exist.
func (s *Service) selectAds(ctx context.Context, count int, geo *domain.GeoPoint, preferFullscreen bool) ([]Item, error) {
	if count <= 0 {
		return nil, nil
	}

	candidates, err := s.content.ListActiveAds(ctx, s.params.AdPoolSize)
	if err != nil {
		return nil, fmt.Errorf("list active ads: %w", err)
	}
	if preferFullscreen {
		var fullscreen []domain.ContentItem
		for _, ad := range candidates {
			if ad.Fullscreen {
				fullscreen = append(fullscreen, ad)
			}
		}
		if len(fullscreen) > 0 {
			candidates = fullscreen
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	keys := make(map[int64]float64, len(candidates))
	for _, ad := range candidates {
		if geo != nil {
			score := ad.PriorityScore * adPriorityWeight
			if ad.Geo != nil {
				score += adProximityWeight * proximityScore(distanceKm(*geo, *ad.Geo))
			}
			keys[ad.ID] = -score // deterministic, best first
			continue
		}
		keys[ad.ID] = -math.Log(s.rand()) / math.Max(ad.PriorityScore, minDrawPriority)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return keys[candidates[i].ID] < keys[candidates[j].ID]
	})

	if len(candidates) > count {
		candidates = candidates[:count]
	}
	return NewItems(candidates), nil
}

// rankPaidByGeo re-orders a cached paid stream for a geo-supplied request:
// priority*0.6 + proximity*10, best first. Runs per request on top of the
// shared payload so cache keys stay geo-free.
func rankPaidByGeo(paid []Item, geo domain.GeoPoint) []Item {
	if len(paid) < 2 {
		return paid
	}

	out := make([]Item, len(paid))
	copy(out, paid)

	scores := make(map[int64]float64, len(out))
	for _, ad := range out {
		score := ad.PriorityScore * adPriorityWeight
		if ad.Geo != nil {
			score += adProximityWeight * proximityScore(distanceKm(geo, *ad.Geo))
		}
		scores[ad.ID] = score
	}

	sort.SliceStable(out, func(i, j int) bool {
		return scores[out[i].ID] > scores[out[j].ID]
	})
	return out
}
