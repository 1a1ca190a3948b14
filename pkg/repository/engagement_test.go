package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clicknbit/newsapi/pkg/domain"
)

func TestEngagementRepository_RecordEvent(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	item := createTestNews(t, repos, "event target", "tech", 0)

	t.Run("records view with payload", func(t *testing.T) {
		ev := &domain.EngagementEvent{
			SubjectID:       item.ID,
			Kind:            domain.KindNews,
			UserID:          42,
			Event:           domain.EventView,
			DurationSeconds: 12,
			DeviceType:      "mobile",
			Platform:        "android",
			Geo:             &domain.GeoPoint{Lat: 41.7, Lng: 44.8},
		}
		require.NoError(t, repos.Engagement.RecordEvent(context.Background(), ev))
		assert.NotZero(t, ev.ID)
	})

	t.Run("anonymous events allowed", func(t *testing.T) {
		ev := &domain.EngagementEvent{SubjectID: item.ID, Kind: domain.KindNews, Event: domain.EventView}
		require.NoError(t, repos.Engagement.RecordEvent(context.Background(), ev))
	})

	t.Run("unknown event type rejected by schema", func(t *testing.T) {
		ev := &domain.EngagementEvent{SubjectID: item.ID, Kind: domain.KindNews, Event: "poke"}
		assert.Error(t, repos.Engagement.RecordEvent(context.Background(), ev))
	})

	t.Run("events feed the counters", func(t *testing.T) {
		got, err := repos.Content.GetNews(context.Background(), item.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Counts.Views)
	})
}

func TestEngagementRepository_ToggleLike(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	item := createTestNews(t, repos, "likeable item", "tech", 0)
	const userID = 7

	t.Run("first toggle likes", func(t *testing.T) {
		liked, err := repos.Engagement.ToggleLike(context.Background(), userID, item.ID, domain.KindNews)
		require.NoError(t, err)
		assert.True(t, liked)

		set, err := repos.Engagement.LikedSet(context.Background(), userID, domain.KindNews, []int64{item.ID})
		require.NoError(t, err)
		assert.True(t, set[item.ID])
	})

	t.Run("second toggle unlikes", func(t *testing.T) {
		liked, err := repos.Engagement.ToggleLike(context.Background(), userID, item.ID, domain.KindNews)
		require.NoError(t, err)
		assert.False(t, liked)

		set, err := repos.Engagement.LikedSet(context.Background(), userID, domain.KindNews, []int64{item.ID})
		require.NoError(t, err)
		assert.False(t, set[item.ID])

		// counter drops back to zero after the compensating delete
		got, err := repos.Content.GetNews(context.Background(), item.ID)
		require.NoError(t, err)
		assert.Zero(t, got.Counts.Likes)
	})

	t.Run("likes are per user", func(t *testing.T) {
		liked, err := repos.Engagement.ToggleLike(context.Background(), 8, item.ID, domain.KindNews)
		require.NoError(t, err)
		assert.True(t, liked)

		set, err := repos.Engagement.LikedSet(context.Background(), userID, domain.KindNews, []int64{item.ID})
		require.NoError(t, err)
		assert.False(t, set[item.ID])
	})
}

func TestEngagementRepository_LikedSet(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	first := createTestNews(t, repos, "first", "tech", 0)
	second := createTestNews(t, repos, "second", "tech", 0)
	third := createTestNews(t, repos, "third", "tech", 0)

	const userID = 3
	_, err := repos.Engagement.ToggleLike(context.Background(), userID, first.ID, domain.KindNews)
	require.NoError(t, err)
	_, err = repos.Engagement.ToggleLike(context.Background(), userID, third.ID, domain.KindNews)
	require.NoError(t, err)

	t.Run("batched membership", func(t *testing.T) {
		set, err := repos.Engagement.LikedSet(context.Background(), userID, domain.KindNews,
			[]int64{first.ID, second.ID, third.ID})
		require.NoError(t, err)
		assert.True(t, set[first.ID])
		assert.False(t, set[second.ID])
		assert.True(t, set[third.ID])
	})

	t.Run("anonymous caller gets empty set", func(t *testing.T) {
		set, err := repos.Engagement.LikedSet(context.Background(), 0, domain.KindNews, []int64{first.ID})
		require.NoError(t, err)
		assert.Empty(t, set)
	})

	t.Run("empty ids gets empty set", func(t *testing.T) {
		set, err := repos.Engagement.LikedSet(context.Background(), userID, domain.KindNews, nil)
		require.NoError(t, err)
		assert.Empty(t, set)
	})

	t.Run("list liked", func(t *testing.T) {
		liked, err := repos.Engagement.ListLiked(context.Background(), userID)
		require.NoError(t, err)
		assert.Len(t, liked, 2)
	})
}

func TestEngagementRepository_Comments(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	item := createTestNews(t, repos, "discussed item", "tech", 0)

	top := &domain.Comment{SubjectID: item.ID, Kind: domain.KindNews, UserID: 1, Content: "first!"}
	require.NoError(t, repos.Engagement.CreateComment(context.Background(), top))
	require.NotZero(t, top.ID)

	other := &domain.Comment{SubjectID: item.ID, Kind: domain.KindNews, UserID: 2, Content: "interesting"}
	require.NoError(t, repos.Engagement.CreateComment(context.Background(), other))

	for i := 0; i < 3; i++ {
		reply := &domain.Comment{SubjectID: item.ID, Kind: domain.KindNews, UserID: 5, ParentID: &top.ID, Content: "reply"}
		require.NoError(t, repos.Engagement.CreateComment(context.Background(), reply))
	}

	t.Run("top-level comments carry reply counts", func(t *testing.T) {
		comments, total, err := repos.Engagement.ListComments(context.Background(), item.ID, domain.KindNews, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, total) // replies not counted as top-level

		byID := make(map[int64]domain.Comment)
		for _, c := range comments {
			byID[c.ID] = c
		}
		assert.Equal(t, int64(3), byID[top.ID].ReplyCount)
		assert.Zero(t, byID[other.ID].ReplyCount)
	})

	t.Run("replies oldest first", func(t *testing.T) {
		replies, total, err := repos.Engagement.ListReplies(context.Background(), top.ID, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, replies, 2)
		assert.Less(t, replies[0].ID, replies[1].ID)
	})

	t.Run("no comments for other subjects", func(t *testing.T) {
		_, total, err := repos.Engagement.ListComments(context.Background(), 99999, domain.KindNews, 1, 10)
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

func TestEngagementRepository_Saves(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	item := createTestNews(t, repos, "saveable item", "tech", 0)
	const userID = 11

	t.Run("save and list", func(t *testing.T) {
		s := &domain.Save{UserID: userID, SubjectID: item.ID, Kind: domain.KindNews}
		require.NoError(t, repos.Engagement.CreateSave(context.Background(), s))
		assert.NotZero(t, s.ID)

		saves, total, err := repos.Engagement.ListSaves(context.Background(), userID, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, saves, 1)
		assert.Equal(t, item.ID, saves[0].SubjectID)
	})

	t.Run("double save is a no-op", func(t *testing.T) {
		s := &domain.Save{UserID: userID, SubjectID: item.ID, Kind: domain.KindNews}
		require.NoError(t, repos.Engagement.CreateSave(context.Background(), s))
		assert.Zero(t, s.ID) // no insert happened, no stale id assigned

		_, total, err := repos.Engagement.ListSaves(context.Background(), userID, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("saved set", func(t *testing.T) {
		set, err := repos.Engagement.SavedSet(context.Background(), userID, domain.KindNews, []int64{item.ID, 99999})
		require.NoError(t, err)
		assert.True(t, set[item.ID])
		assert.False(t, set[99999])
	})

	t.Run("delete save", func(t *testing.T) {
		require.NoError(t, repos.Engagement.DeleteSave(context.Background(), userID, item.ID, domain.KindNews))
		assert.ErrorIs(t, repos.Engagement.DeleteSave(context.Background(), userID, item.ID, domain.KindNews), sql.ErrNoRows)
	})
}

func TestEngagementRepository_RecentlyViewedNews(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	const userID = 21
	first := createTestNews(t, repos, "first viewed", "tech", 0)
	second := createTestNews(t, repos, "second viewed", "tech", 0)

	ev := &domain.EngagementEvent{SubjectID: first.ID, Kind: domain.KindNews, UserID: userID, Event: domain.EventView}
	require.NoError(t, repos.Engagement.RecordEvent(context.Background(), ev))

	// second view recorded later
	_, err := repos.DB.Exec(`
		INSERT INTO engagement_events (subject_id, subject_kind, user_id, event_type, created_at)
		VALUES (?, 'news', ?, 'view', datetime('now', '+1 minute'))`, second.ID, userID)
	require.NoError(t, err)

	ids, err := repos.Engagement.RecentlyViewedNews(context.Background(), userID, 10)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, second.ID, ids[0]) // newest first
	assert.Equal(t, first.ID, ids[1])
}
