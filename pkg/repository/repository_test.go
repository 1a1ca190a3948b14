package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clicknbit/newsapi/pkg/domain"
)

func setupTestDB(t *testing.T) (repos *Repositories, cleanup func()) {
	t.Helper()

	// create temp file for test database
	tmpFile, err := os.CreateTemp("", "test-*.db")
	require.NoError(t, err)
	tmpFile.Close()

	cfg := Config{
		DSN:             "file:" + tmpFile.Name() + "?mode=rwc",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 30 * time.Second,
	}

	repos, err = NewRepositories(context.Background(), cfg)
	require.NoError(t, err)

	cleanup = func() {
		repos.Close()
		os.Remove(tmpFile.Name())
	}

	return repos, cleanup
}

// createTestNews inserts an active news item with the given category and priority
func createTestNews(t *testing.T, repos *Repositories, title, category string, priority float64) *domain.ContentItem {
	t.Helper()

	item := &domain.ContentItem{
		Title:            title,
		ShortDescription: "short " + title,
		ContentURL:       fmt.Sprintf("https://cdn.example.com/%s.jpg", title),
		Category:         category,
		Active:           true,
		PriorityScore:    priority,
	}
	require.NoError(t, repos.Content.CreateNews(context.Background(), item))
	return item
}

func TestRepositories_Integration(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	// test ping
	require.NoError(t, repos.Ping(context.Background()))

	t.Run("schema tables exist", func(t *testing.T) {
		var count int
		err := repos.DB.Get(&count, `
			SELECT COUNT(*) FROM sqlite_master
			WHERE type='table' AND name IN ('news', 'advertisements', 'engagement_events',
				'comments', 'saves', 'preferences', 'top_rank_overrides', 'system_settings', 'categories')
		`)
		require.NoError(t, err)
		assert.Equal(t, 9, count)
	})

	t.Run("default ad frequencies seeded", func(t *testing.T) {
		adFreq, err := repos.Setting.GetSetting(context.Background(), domain.SettingAdFrequency)
		require.NoError(t, err)
		assert.Equal(t, "5", adFreq.Value)

		astonFreq, err := repos.Setting.GetSetting(context.Background(), domain.SettingAstonAdFrequency)
		require.NoError(t, err)
		assert.Equal(t, "3", astonFreq.Value)
	})

	t.Run("schema init is idempotent", func(t *testing.T) {
		require.NoError(t, initSchema(context.Background(), repos.DB))
	})
}

func TestRepositories_InMemory(t *testing.T) {
	cfg := Config{
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	repos, err := NewRepositories(context.Background(), cfg)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, repos.Close())
	}()

	require.NoError(t, repos.Ping(context.Background()))

	item := createTestNews(t, repos, "memory item", "tech", 1.0)
	assert.NotZero(t, item.ID)
	assert.Equal(t, domain.KindNews, item.Kind)
}
