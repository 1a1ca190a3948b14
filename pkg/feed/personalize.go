package feed

import (
	"sort"
	"time"

	"github.com/clicknbit/newsapi/pkg/domain"
)

// personalization weights
const (
	clickedAffinityWeight = 0.1
	skippedAffinityWeight = 0.5 // skipped counters trend negative, so this subtracts
	recencyDecayPerHour   = -0.005
	proximityBoost        = 10.0
)

// adjust computes the personalization score for one item: geo proximity plus
// category affinity plus linear recency decay. Used only for the default sort
// mode when the caller has a preference row.
func adjust(item Item, prefs *domain.Preference, userGeo *domain.GeoPoint, now time.Time) float64 {
	score := recencyDecay(item, now)

	if userGeo != nil && item.Geo != nil {
		score += proximityBoost * proximityScore(distanceKm(*userGeo, *item.Geo))
	}

	if prefs != nil && item.Category != "" {
		score += float64(prefs.ClickedNewsCategory[item.Category]) * clickedAffinityWeight
		score += float64(prefs.SkippedNewsCategory[item.Category]) * skippedAffinityWeight
	}

	return score
}

func recencyDecay(item Item, now time.Time) float64 {
	return now.Sub(item.CreatedAt).Hours() * recencyDecayPerHour
}

// personalize reorders items for the default sort mode. With a preference row
// the full adjustment applies; without one it degrades to proximity plus decay,
// or pure recency when no geo point is available either. The sort is stable so
// equal scores keep the incoming (composite-ranked) order.
func personalize(items []Item, prefs *domain.Preference, userGeo *domain.GeoPoint, now time.Time) []Item {
	if len(items) < 2 {
		return items
	}

	if prefs == nil && userGeo == nil {
		sorted := make([]Item, len(items))
		copy(sorted, items)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		})
		return sorted
	}

	scores := make(map[int64]float64, len(items))
	for _, item := range items {
		scores[item.ID] = adjust(item, prefs, userGeo, now)
	}

	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return scores[sorted[i].ID] > scores[sorted[j].ID]
	})
	return sorted
}
