package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/clicknbit/newsapi/pkg/domain"
)

// OverrideRepository handles manual top-ten rank pins
type OverrideRepository struct {
	db *sqlx.DB
}

// NewOverrideRepository creates a new override repository
func NewOverrideRepository(database *sqlx.DB) *OverrideRepository {
	return &OverrideRepository{db: database}
}

type overrideSQL struct {
	Rank      int       `db:"rank"`
	NewsID    int64     `db:"news_id"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ListOverrides returns all rank pins ordered by rank
func (r *OverrideRepository) ListOverrides(ctx context.Context) ([]domain.Override, error) {
	var rows []overrideSQL
	err := r.db.SelectContext(ctx, &rows,
		`SELECT rank, news_id, updated_at FROM top_rank_overrides ORDER BY rank`)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}

	res := make([]domain.Override, len(rows))
	for i, row := range rows {
		res[i] = domain.Override{Rank: row.Rank, NewsID: row.NewsID, UpdatedAt: row.UpdatedAt}
	}
	return res, nil
}

// SetOverride pins a news item to a rank position, replacing any existing pin
// at that rank. The rank must be within the top-ten range.
func (r *OverrideRepository) SetOverride(ctx context.Context, rank int, newsID int64) error {
	if rank < domain.MinOverrideRank || rank > domain.MaxOverrideRank {
		return fmt.Errorf("rank %d out of range %d..%d", rank, domain.MinOverrideRank, domain.MaxOverrideRank)
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO top_rank_overrides (rank, news_id) VALUES (?, ?)
			ON CONFLICT(rank) DO UPDATE SET news_id = excluded.news_id, updated_at = CURRENT_TIMESTAMP`,
			rank, newsID)
		if err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("set override rank %d: %w", rank, err)}
		}
		return nil
	})
}

// ClearOverride removes the pin at a rank position. Returns sql.ErrNoRows if
// no pin exists at that rank.
func (r *OverrideRepository) ClearOverride(ctx context.Context, rank int) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM top_rank_overrides WHERE rank = ?", rank)
	if err != nil {
		return fmt.Errorf("clear override rank %d: %w", rank, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear override rank %d: %w", rank, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
