package domain

import "time"

// MaxRecentLocations bounds the recency-ordered location map in a preference row
const MaxRecentLocations = 5

// MaxCounterEntries bounds each counter bag in a preference row
const MaxCounterEntries = 50

// CounterBag is a bounded mapping of label to a signed counter, capped at
// MaxCounterEntries keys. Click signals increment, skip signals decrement,
// so skip counters trend negative.
type CounterBag map[string]int

// Inc increments the counter for key
func (b CounterBag) Inc(key string) { b.bump(key, 1) }

// Dec decrements the counter for key
func (b CounterBag) Dec(key string) { b.bump(key, -1) }

// bump adjusts key by delta. A new key arriving at capacity evicts the entry
// with the smallest absolute counter first; the map keeps no insertion order,
// so the weakest signal stands in for the oldest.
func (b CounterBag) bump(key string, delta int) {
	if _, ok := b[key]; !ok && len(b) >= MaxCounterEntries {
		weakest, min := "", 0
		for k, v := range b {
			if v < 0 {
				v = -v
			}
			if weakest == "" || v < min {
				weakest, min = k, v
			}
		}
		delete(b, weakest)
	}
	b[key] += delta
}

// LocationCount is one entry of the recency-ordered location list
type LocationCount struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

// RecentLocations tracks recently-seen location tokens in insertion order,
// bounded at MaxRecentLocations with oldest-first eviction.
type RecentLocations []LocationCount

// Touch increments the counter for token, appending it if new. Entries that
// drop to zero or below are removed, and the oldest entries are evicted once
// the list exceeds MaxRecentLocations.
func (r RecentLocations) Touch(token string) RecentLocations {
	found := false
	for i := range r {
		if r[i].Token == token {
			r[i].Count++
			found = true
			break
		}
	}
	if !found {
		r = append(r, LocationCount{Token: token, Count: 1})
	}

	kept := r[:0]
	for _, loc := range r {
		if loc.Count > 0 {
			kept = append(kept, loc)
		}
	}
	if len(kept) > MaxRecentLocations {
		kept = kept[len(kept)-MaxRecentLocations:]
	}
	return kept
}

// Preference is one row per user holding personalization signals. Created
// lazily on first write, never hard-deleted.
type Preference struct {
	UserID             int64
	PreferredNewsType  string
	SelectedCategories []string

	ClickedNewsCategory CounterBag
	SkippedNewsCategory CounterBag
	ClickedAdCategory   CounterBag
	SkippedAdCategory   CounterBag
	ClickedNewsLocation CounterBag
	SkippedNewsLocation CounterBag
	ClickedAdLocation   CounterBag
	SkippedAdLocation   CounterBag

	// recently-seen location tokens, insertion-ordered, capped at MaxRecentLocations
	UserLocations     RecentLocations
	UserLocationsTags []string

	LastKnownLocation *GeoPoint
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PreferenceUpdate carries a single batch of preference signals from a client
type PreferenceUpdate struct {
	ClickedNewsCategory string
	SkippedNewsCategory string
	ClickedAdCategory   string
	SkippedAdCategory   string
	ClickedNewsLocation string
	SkippedNewsLocation string
	ClickedAdLocation   string
	SkippedAdLocation   string

	UserLocation       string
	UserLocationsTags  []string
	PreferredNewsType  string
	SelectedCategories []string
	LastKnownLocation  *GeoPoint
}
