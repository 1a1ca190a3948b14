package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverrideRepository(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	first := createTestNews(t, repos, "pinned one", "tech", 0)
	second := createTestNews(t, repos, "pinned two", "tech", 0)

	t.Run("set and list ordered by rank", func(t *testing.T) {
		require.NoError(t, repos.Override.SetOverride(context.Background(), 3, first.ID))
		require.NoError(t, repos.Override.SetOverride(context.Background(), 1, second.ID))

		overrides, err := repos.Override.ListOverrides(context.Background())
		require.NoError(t, err)
		require.Len(t, overrides, 2)
		assert.Equal(t, 1, overrides[0].Rank)
		assert.Equal(t, second.ID, overrides[0].NewsID)
		assert.Equal(t, 3, overrides[1].Rank)
		assert.Equal(t, first.ID, overrides[1].NewsID)
	})

	t.Run("setting a taken rank replaces the pin", func(t *testing.T) {
		require.NoError(t, repos.Override.SetOverride(context.Background(), 3, second.ID))

		overrides, err := repos.Override.ListOverrides(context.Background())
		require.NoError(t, err)
		require.Len(t, overrides, 2)
		assert.Equal(t, second.ID, overrides[1].NewsID)
	})

	t.Run("rank out of range rejected", func(t *testing.T) {
		assert.Error(t, repos.Override.SetOverride(context.Background(), 0, first.ID))
		assert.Error(t, repos.Override.SetOverride(context.Background(), 11, first.ID))
	})

	t.Run("clear override", func(t *testing.T) {
		require.NoError(t, repos.Override.ClearOverride(context.Background(), 3))
		assert.ErrorIs(t, repos.Override.ClearOverride(context.Background(), 3), sql.ErrNoRows)

		overrides, err := repos.Override.ListOverrides(context.Background())
		require.NoError(t, err)
		assert.Len(t, overrides, 1)
	})
}

func TestSettingRepository(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	t.Run("get missing setting", func(t *testing.T) {
		_, err := repos.Setting.GetSetting(context.Background(), "no_such_key")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("upsert overwrites seeded value", func(t *testing.T) {
		require.NoError(t, repos.Setting.SetSetting(context.Background(), "ad_frequency", "7"))

		got, err := repos.Setting.GetSetting(context.Background(), "ad_frequency")
		require.NoError(t, err)
		assert.Equal(t, "7", got.Value)
	})

	t.Run("insert new key", func(t *testing.T) {
		require.NoError(t, repos.Setting.SetSetting(context.Background(), "banner_limit", "4"))

		all, err := repos.Setting.GetAllSettings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "4", all["banner_limit"].Value)
		assert.Contains(t, all, "aston_ad_frequency")
	})
}
