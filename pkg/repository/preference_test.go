package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clicknbit/newsapi/pkg/domain"
)

func TestPreferenceRepository_ApplyUpdate(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	const userID = 101

	t.Run("first update creates the row lazily", func(t *testing.T) {
		pref, err := repos.Preference.GetPreference(context.Background(), userID)
		require.NoError(t, err)
		assert.Nil(t, pref)

		pref, err = repos.Preference.ApplyUpdate(context.Background(), userID, domain.PreferenceUpdate{
			ClickedNewsCategory: "politics",
		})
		require.NoError(t, err)
		require.NotNil(t, pref)
		assert.Equal(t, 1, pref.ClickedNewsCategory["politics"])
	})

	t.Run("click counters accumulate, skip counters go negative", func(t *testing.T) {
		_, err := repos.Preference.ApplyUpdate(context.Background(), userID, domain.PreferenceUpdate{
			ClickedNewsCategory: "politics",
			SkippedNewsCategory: "sports",
			ClickedAdCategory:   "retail",
			SkippedAdLocation:   "batumi",
		})
		require.NoError(t, err)

		pref, err := repos.Preference.GetPreference(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 2, pref.ClickedNewsCategory["politics"])
		assert.Equal(t, -1, pref.SkippedNewsCategory["sports"])
		assert.Equal(t, 1, pref.ClickedAdCategory["retail"])
		assert.Equal(t, -1, pref.SkippedAdLocation["batumi"])
	})

	t.Run("profile fields replace, counters persist", func(t *testing.T) {
		pref, err := repos.Preference.ApplyUpdate(context.Background(), userID, domain.PreferenceUpdate{
			PreferredNewsType:  "video",
			SelectedCategories: []string{"politics", "tech"},
			LastKnownLocation:  &domain.GeoPoint{Lat: 41.7, Lng: 44.8},
		})
		require.NoError(t, err)
		assert.Equal(t, "video", pref.PreferredNewsType)
		assert.Equal(t, []string{"politics", "tech"}, pref.SelectedCategories)
		require.NotNil(t, pref.LastKnownLocation)
		assert.InDelta(t, 41.7, pref.LastKnownLocation.Lat, 0.0001)
		assert.Equal(t, 2, pref.ClickedNewsCategory["politics"])
	})
}

func TestPreferenceRepository_RecentLocations(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	const userID = 102

	touch := func(token string) *domain.Preference {
		pref, err := repos.Preference.ApplyUpdate(context.Background(), userID,
			domain.PreferenceUpdate{UserLocation: token})
		require.NoError(t, err)
		return pref
	}

	t.Run("repeat visits increment in place", func(t *testing.T) {
		touch("vake")
		pref := touch("vake")
		require.Len(t, pref.UserLocations, 1)
		assert.Equal(t, "vake", pref.UserLocations[0].Token)
		assert.Equal(t, 2, pref.UserLocations[0].Count)
	})

	t.Run("insertion order survives a round-trip", func(t *testing.T) {
		touch("saburtalo")
		touch("gldani")

		pref, err := repos.Preference.GetPreference(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, pref.UserLocations, 3)
		assert.Equal(t, "vake", pref.UserLocations[0].Token)
		assert.Equal(t, "saburtalo", pref.UserLocations[1].Token)
		assert.Equal(t, "gldani", pref.UserLocations[2].Token)
	})

	t.Run("oldest evicted beyond the cap", func(t *testing.T) {
		touch("didube")
		touch("isani")
		pref := touch("ortachala") // sixth distinct token

		require.Len(t, pref.UserLocations, domain.MaxRecentLocations)
		assert.Equal(t, "saburtalo", pref.UserLocations[0].Token) // vake evicted despite its count
		assert.Equal(t, "ortachala", pref.UserLocations[domain.MaxRecentLocations-1].Token)
	})
}

func TestRecentLocations_Touch(t *testing.T) {
	var locs domain.RecentLocations

	locs = locs.Touch("a")
	locs = locs.Touch("b")
	locs = locs.Touch("a")

	require.Len(t, locs, 2)
	assert.Equal(t, domain.LocationCount{Token: "a", Count: 2}, locs[0])
	assert.Equal(t, domain.LocationCount{Token: "b", Count: 1}, locs[1])

	for _, token := range []string{"c", "d", "e", "f"} {
		locs = locs.Touch(token)
	}
	require.Len(t, locs, domain.MaxRecentLocations)
	assert.Equal(t, "b", locs[0].Token) // "a" was oldest
	assert.Equal(t, "f", locs[domain.MaxRecentLocations-1].Token)
}

func TestCounterBag_Bound(t *testing.T) {
	bag := domain.CounterBag{}
	for i := 0; i < domain.MaxCounterEntries; i++ {
		bag.Inc(fmt.Sprintf("cat-%d", i))
	}
	bag.Inc("cat-0") // strongest signal
	require.Len(t, bag, domain.MaxCounterEntries)

	// a new key at capacity evicts a weakest entry, never the strongest
	bag.Inc("overflow")
	require.Len(t, bag, domain.MaxCounterEntries)
	assert.Equal(t, 1, bag["overflow"])
	assert.Equal(t, 2, bag["cat-0"])

	// negative skip counters count as signal strength too
	bag = domain.CounterBag{"skipped": -3, "weak": 1}
	for i := 0; i < domain.MaxCounterEntries-2; i++ {
		bag.Dec(fmt.Sprintf("loc-%d", i))
	}
	bag.Dec("overflow")
	assert.Equal(t, -3, bag["skipped"]) // strongest magnitude survives
}
