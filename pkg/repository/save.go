package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clicknbit/newsapi/pkg/domain"
)

// save-related operations, part of the engagement repository

type saveSQL struct {
	ID        int64     `db:"save_id"`
	UserID    int64     `db:"user_id"`
	SubjectID int64     `db:"subject_id"`
	Kind      string    `db:"subject_kind"`
	CreatedAt time.Time `db:"created_at"`
}

// CreateSave marks a subject saved by a user; saving twice is a no-op
func (r *EngagementRepository) CreateSave(ctx context.Context, s *domain.Save) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO saves (user_id, subject_id, subject_kind) VALUES (?, ?, ?)
		ON CONFLICT (user_id, subject_id, subject_kind) DO NOTHING`,
		s.UserID, s.SubjectID, s.Kind)
	if err != nil {
		return fmt.Errorf("create save: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 { // duplicate save, LastInsertId would be stale
		return nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	s.ID = id
	return nil
}

// DeleteSave removes a saved subject for a user
func (r *EngagementRepository) DeleteSave(ctx context.Context, userID, subjectID int64, kind domain.ContentKind) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM saves WHERE user_id = ? AND subject_id = ? AND subject_kind = ?",
		userID, subjectID, kind)
	if err != nil {
		return fmt.Errorf("delete save: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListSaves returns a page of a user's saves, newest first, plus the total
func (r *EngagementRepository) ListSaves(ctx context.Context, userID int64, page, limit int) ([]domain.Save, int, error) {
	offset := (page - 1) * limit

	var rows []saveSQL
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM saves WHERE user_id = ?
		ORDER BY save_id DESC LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list saves: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM saves WHERE user_id = ?", userID); err != nil {
		return nil, 0, fmt.Errorf("count saves: %w", err)
	}

	saves := make([]domain.Save, len(rows))
	for i, row := range rows {
		saves[i] = domain.Save{
			ID:        row.ID,
			UserID:    row.UserID,
			SubjectID: row.SubjectID,
			Kind:      domain.ContentKind(row.Kind),
			CreatedAt: row.CreatedAt,
		}
	}
	return saves, total, nil
}

// SavedRefs answers is-saved for a mixed page of news and ads in one batched
// query. The saves counterpart of LikedRefs.
func (r *EngagementRepository) SavedRefs(ctx context.Context, userID int64, refs []domain.SubjectRef) (map[domain.SubjectRef]bool, error) {
	if len(refs) == 0 || userID == 0 {
		return map[domain.SubjectRef]bool{}, nil
	}

	ids := make([]int64, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}

	query, args, err := sqlx.In(
		"SELECT subject_id, subject_kind FROM saves WHERE user_id = ? AND subject_id IN (?)", userID, ids)
	if err != nil {
		return nil, fmt.Errorf("build saved refs query: %w", err)
	}

	var rows []struct {
		SubjectID int64              `db:"subject_id"`
		Kind      domain.ContentKind `db:"subject_kind"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("saved refs: %w", err)
	}

	result := make(map[domain.SubjectRef]bool, len(rows))
	for _, row := range rows {
		result[domain.SubjectRef{ID: row.SubjectID, Kind: row.Kind}] = true
	}
	return result, nil
}

// SavedSet returns which of the given subject ids the user has saved, as one
// batched query. The enrichment counterpart of LikedSet.
func (r *EngagementRepository) SavedSet(ctx context.Context, userID int64, kind domain.ContentKind, ids []int64) (map[int64]bool, error) {
	if len(ids) == 0 || userID == 0 {
		return map[int64]bool{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT subject_id FROM saves WHERE user_id = ? AND subject_kind = ? AND subject_id IN (?)",
		userID, kind, ids)
	if err != nil {
		return nil, fmt.Errorf("build saved set query: %w", err)
	}
	query = r.db.Rebind(query)

	var saved []int64
	if err := r.db.SelectContext(ctx, &saved, query, args...); err != nil {
		return nil, fmt.Errorf("saved set: %w", err)
	}

	result := make(map[int64]bool, len(saved))
	for _, id := range saved {
		result[id] = true
	}
	return result, nil
}
