package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/clicknbit/newsapi/pkg/domain"
)

// SettingRepository handles the system settings key-value table
type SettingRepository struct {
	db *sqlx.DB
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(database *sqlx.DB) *SettingRepository {
	return &SettingRepository{db: database}
}

type settingSQL struct {
	Key       string    `db:"setting_key"`
	Value     string    `db:"setting_value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GetSetting returns a single setting by key, or sql.ErrNoRows if absent
func (r *SettingRepository) GetSetting(ctx context.Context, key string) (*domain.Setting, error) {
	var row settingSQL
	err := r.db.GetContext(ctx, &row,
		"SELECT setting_key, setting_value, updated_at FROM system_settings WHERE setting_key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %q: %w", key, err)
	}
	return &domain.Setting{Key: row.Key, Value: row.Value, UpdatedAt: row.UpdatedAt}, nil
}

// GetAllSettings returns every setting keyed by name
func (r *SettingRepository) GetAllSettings(ctx context.Context) (map[string]domain.Setting, error) {
	var rows []settingSQL
	err := r.db.SelectContext(ctx, &rows,
		"SELECT setting_key, setting_value, updated_at FROM system_settings ORDER BY setting_key")
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}

	res := make(map[string]domain.Setting, len(rows))
	for _, row := range rows {
		res[row.Key] = domain.Setting{Key: row.Key, Value: row.Value, UpdatedAt: row.UpdatedAt}
	}
	return res, nil
}

// SetSetting upserts a setting value
func (r *SettingRepository) SetSetting(ctx context.Context, key, value string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO system_settings (setting_key, setting_value) VALUES (?, ?)
			ON CONFLICT(setting_key) DO UPDATE SET setting_value = excluded.setting_value, updated_at = CURRENT_TIMESTAMP`,
			key, value)
		if err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("set setting %q: %w", key, err)}
		}
		return nil
	})
}
