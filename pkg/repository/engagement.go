package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/clicknbit/newsapi/pkg/domain"
)

// EngagementRepository handles engagement events, comments and saves
type EngagementRepository struct {
	db *sqlx.DB
}

// NewEngagementRepository creates a new engagement repository
func NewEngagementRepository(database *sqlx.DB) *EngagementRepository {
	return &EngagementRepository{db: database}
}

// RecordEvent appends an engagement event. This is the hot write path, retried
// on SQLite lock errors.
func (r *EngagementRepository) RecordEvent(ctx context.Context, ev *domain.EngagementEvent) error {
	var lat, lng *float64
	if ev.Geo != nil {
		lat, lng = &ev.Geo.Lat, &ev.Geo.Lng
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			INSERT INTO engagement_events (
				subject_id, subject_kind, user_id, event_type,
				duration_seconds, device_type, platform, lat, lng
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		result, err := r.db.ExecContext(ctx, query,
			ev.SubjectID, ev.Kind, ev.UserID, ev.Event,
			ev.DurationSeconds, ev.DeviceType, ev.Platform, lat, lng,
		)
		if err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("record event: %w", err)}
		}

		id, err := result.LastInsertId()
		if err != nil {
			return &criticalError{err: fmt.Errorf("get insert id: %w", err)}
		}
		ev.ID = id
		return nil
	})
}

// ToggleLike adds a like event for (user, subject) or removes the existing one.
// The removal is a compensating deletion, not a new event kind.
func (r *EngagementRepository) ToggleLike(ctx context.Context, userID, subjectID int64, kind domain.ContentKind) (liked bool, err error) {
	var existing int64
	err = r.db.GetContext(ctx, &existing, `
		SELECT COUNT(*) FROM engagement_events
		WHERE user_id = ? AND subject_id = ? AND subject_kind = ? AND event_type = 'like'`,
		userID, subjectID, kind)
	if err != nil {
		return false, fmt.Errorf("check like: %w", err)
	}

	if existing > 0 {
		_, err = r.db.ExecContext(ctx, `
			DELETE FROM engagement_events
			WHERE user_id = ? AND subject_id = ? AND subject_kind = ? AND event_type = 'like'`,
			userID, subjectID, kind)
		if err != nil {
			return false, fmt.Errorf("remove like: %w", err)
		}
		return false, nil
	}

	ev := &domain.EngagementEvent{SubjectID: subjectID, Kind: kind, UserID: userID, Event: domain.EventLike}
	if err = r.RecordEvent(ctx, ev); err != nil {
		return false, err
	}
	return true, nil
}

// LikedSubject identifies one liked item in a user's liked list
type LikedSubject struct {
	SubjectID int64              `db:"subject_id"`
	Kind      domain.ContentKind `db:"subject_kind"`
}

// ListLiked returns all subjects the user has liked
func (r *EngagementRepository) ListLiked(ctx context.Context, userID int64) ([]LikedSubject, error) {
	var rows []LikedSubject
	err := r.db.SelectContext(ctx, &rows, `
		SELECT subject_id, subject_kind FROM engagement_events
		WHERE user_id = ? AND event_type = 'like'
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list liked: %w", err)
	}
	return rows, nil
}

// LikedSet returns which of the given subject ids the user has liked, as one
// batched query. Used by feed enrichment after cache hits and misses alike.
func (r *EngagementRepository) LikedSet(ctx context.Context, userID int64, kind domain.ContentKind, ids []int64) (map[int64]bool, error) {
	if len(ids) == 0 || userID == 0 {
		return map[int64]bool{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT DISTINCT subject_id FROM engagement_events
		WHERE user_id = ? AND subject_kind = ? AND event_type = 'like' AND subject_id IN (?)`,
		userID, kind, ids)
	if err != nil {
		return nil, fmt.Errorf("build liked set query: %w", err)
	}
	query = r.db.Rebind(query)

	var liked []int64
	if err := r.db.SelectContext(ctx, &liked, query, args...); err != nil {
		return nil, fmt.Errorf("liked set: %w", err)
	}

	result := make(map[int64]bool, len(liked))
	for _, id := range liked {
		result[id] = true
	}
	return result, nil
}

// LikedRefs answers is-liked for a mixed page of news and ads in one batched
// query. Ids may collide across kinds, so membership is checked per (id, kind).
func (r *EngagementRepository) LikedRefs(ctx context.Context, userID int64, refs []domain.SubjectRef) (map[domain.SubjectRef]bool, error) {
	if len(refs) == 0 || userID == 0 {
		return map[domain.SubjectRef]bool{}, nil
	}

	ids := make([]int64, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}

	query, args, err := sqlx.In(`
		SELECT DISTINCT subject_id, subject_kind FROM engagement_events
		WHERE user_id = ? AND event_type = 'like' AND subject_id IN (?)`, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("build liked refs query: %w", err)
	}

	var rows []struct {
		SubjectID int64              `db:"subject_id"`
		Kind      domain.ContentKind `db:"subject_kind"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("liked refs: %w", err)
	}

	result := make(map[domain.SubjectRef]bool, len(rows))
	for _, row := range rows {
		result[domain.SubjectRef{ID: row.SubjectID, Kind: row.Kind}] = true
	}
	return result, nil
}

// RecentlyViewedNews returns ids of the last viewed news items for a user,
// newest first, capped at limit
func (r *EngagementRepository) RecentlyViewedNews(ctx context.Context, userID int64, limit int) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `
		SELECT subject_id FROM engagement_events
		WHERE user_id = ? AND subject_kind = 'news' AND event_type = 'view'
		ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recently viewed: %w", err)
	}
	return ids, nil
}

// CreateComment inserts a comment and sets its id
func (r *EngagementRepository) CreateComment(ctx context.Context, c *domain.Comment) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO comments (subject_id, subject_kind, user_id, parent_id, content)
		VALUES (?, ?, ?, ?, ?)`,
		c.SubjectID, c.Kind, c.UserID, c.ParentID, c.Content)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	c.ID = id
	return nil
}

type commentSQL struct {
	ID         int64     `db:"comment_id"`
	SubjectID  int64     `db:"subject_id"`
	Kind       string    `db:"subject_kind"`
	UserID     int64     `db:"user_id"`
	ParentID   *int64    `db:"parent_id"`
	Content    string    `db:"content"`
	CreatedAt  time.Time `db:"created_at"`
	ReplyCount int64     `db:"reply_count"`
}

// ListComments returns a page of top-level comments with reply counts, newest first
func (r *EngagementRepository) ListComments(ctx context.Context, subjectID int64, kind domain.ContentKind, page, limit int) ([]domain.Comment, int, error) {
	offset := (page - 1) * limit

	var rows []commentSQL
	err := r.db.SelectContext(ctx, &rows, `
		SELECT c.*, COALESCE(rc.cnt, 0) AS reply_count
		FROM comments c
		LEFT JOIN (SELECT parent_id, COUNT(*) AS cnt FROM comments WHERE parent_id IS NOT NULL GROUP BY parent_id) rc
			ON rc.parent_id = c.comment_id
		WHERE c.subject_id = ? AND c.subject_kind = ? AND c.parent_id IS NULL
		ORDER BY c.created_at DESC, c.comment_id DESC
		LIMIT ? OFFSET ?`, subjectID, kind, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}

	var total int
	err = r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM comments
		WHERE subject_id = ? AND subject_kind = ? AND parent_id IS NULL`, subjectID, kind)
	if err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	return commentsToDomain(rows), total, nil
}

// ListReplies returns a page of replies to a comment, oldest first
func (r *EngagementRepository) ListReplies(ctx context.Context, parentID int64, page, limit int) ([]domain.Comment, int, error) {
	offset := (page - 1) * limit

	var rows []commentSQL
	err := r.db.SelectContext(ctx, &rows, `
		SELECT c.*, 0 AS reply_count
		FROM comments c
		WHERE c.parent_id = ?
		ORDER BY c.created_at ASC, c.comment_id ASC
		LIMIT ? OFFSET ?`, parentID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list replies: %w", err)
	}

	var total int
	err = r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM comments WHERE parent_id = ?", parentID)
	if err != nil {
		return nil, 0, fmt.Errorf("count replies: %w", err)
	}

	return commentsToDomain(rows), total, nil
}

func commentsToDomain(rows []commentSQL) []domain.Comment {
	comments := make([]domain.Comment, len(rows))
	for i, row := range rows {
		comments[i] = domain.Comment{
			ID:         row.ID,
			SubjectID:  row.SubjectID,
			Kind:       domain.ContentKind(row.Kind),
			UserID:     row.UserID,
			ParentID:   row.ParentID,
			Content:    row.Content,
			CreatedAt:  row.CreatedAt,
			ReplyCount: row.ReplyCount,
		}
	}
	return comments
}
