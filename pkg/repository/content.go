package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clicknbit/newsapi/pkg/domain"
)

// ContentRepository handles news and advertisement database operations,
// including the ranking queries used by the feed engine.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a new content repository
func NewContentRepository(database *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: database}
}

// newsSQL represents a news row with attached engagement counts
type newsSQL struct {
	ID                   int64      `db:"news_id"`
	TypeID               int64      `db:"type_id"`
	Title                string     `db:"title"`
	ShortDescription     string     `db:"short_description"`
	LongDescription      string     `db:"long_description"`
	ContentURL           string     `db:"content_url"`
	VerticalContentURL   string     `db:"vertical_content_url"`
	SquareContentURL     string     `db:"square_content_url"`
	CompressedContentURL string     `db:"compressed_content_url"`
	RedirectURL          string     `db:"redirect_url"`
	Category             string     `db:"category"`
	Tags                 stringsSQL `db:"tags"`
	AreaNames            stringsSQL `db:"area_names"`
	Lat                  *float64   `db:"lat"`
	Lng                  *float64   `db:"lng"`
	RadiusKm             float64    `db:"radius_km"`
	Active               bool       `db:"is_active"`
	Featured             bool       `db:"is_featured"`
	Breaking             bool       `db:"is_breaking"`
	PriorityScore        float64    `db:"priority_score"`
	RelevanceExpiresAt   *time.Time `db:"relevance_expires_at"`
	ExpiresAt            *time.Time `db:"expires_at"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`

	// aggregated engagement counts, populated by ranking queries
	ViewCount    int64 `db:"view_count"`
	LikeCount    int64 `db:"like_count"`
	CommentCount int64 `db:"comment_count"`
	ShareCount   int64 `db:"share_count"`
}

// adSQL represents an advertisement row with attached engagement counts
type adSQL struct {
	ID                 int64      `db:"ad_id"`
	FormatID           int64      `db:"format_id"`
	Title              string     `db:"title"`
	Description        string     `db:"description"`
	ContentURL         string     `db:"content_url"`
	RedirectURL        string     `db:"redirect_url"`
	Category           string     `db:"category"`
	TargetTags         stringsSQL `db:"target_tags"`
	TargetCategories   stringsSQL `db:"target_categories"`
	AreaNames          stringsSQL `db:"area_names"`
	Lat                *float64   `db:"lat"`
	Lng                *float64   `db:"lng"`
	RadiusKm           float64    `db:"radius_km"`
	Active             bool       `db:"is_active"`
	Featured           bool       `db:"is_featured"`
	Fullscreen         bool       `db:"fullscreen"`
	PriorityScore      float64    `db:"priority_score"`
	RelevanceExpiresAt *time.Time `db:"relevance_expires_at"`
	StartAt            time.Time  `db:"start_at"`
	EndAt              *time.Time `db:"end_at"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`

	ViewCount    int64 `db:"view_count"`
	LikeCount    int64 `db:"like_count"`
	CommentCount int64 `db:"comment_count"`
	ShareCount   int64 `db:"share_count"`
}

// newsCountJoins attaches per-event aggregate counts to news rows
const newsCountJoins = `
	LEFT JOIN (SELECT subject_id, COUNT(*) AS cnt FROM engagement_events
		WHERE subject_kind = 'news' AND event_type = 'view' GROUP BY subject_id) v ON v.subject_id = n.news_id
	LEFT JOIN (SELECT subject_id, COUNT(*) AS cnt FROM engagement_events
		WHERE subject_kind = 'news' AND event_type = 'like' GROUP BY subject_id) l ON l.subject_id = n.news_id
	LEFT JOIN (SELECT subject_id, COUNT(*) AS cnt FROM engagement_events
		WHERE subject_kind = 'news' AND event_type = 'comment' GROUP BY subject_id) c ON c.subject_id = n.news_id
	LEFT JOIN (SELECT subject_id, COUNT(*) AS cnt FROM engagement_events
		WHERE subject_kind = 'news' AND event_type = 'share' GROUP BY subject_id) s ON s.subject_id = n.news_id`

const newsSelectWithCounts = `
	SELECT n.*,
		COALESCE(v.cnt, 0) AS view_count,
		COALESCE(l.cnt, 0) AS like_count,
		COALESCE(c.cnt, 0) AS comment_count,
		COALESCE(s.cnt, 0) AS share_count
	FROM news n` + newsCountJoins

// compositeScoreExpr is the primary editorial ranking expression. Weights must
// stay in sync with domain.ContentItem.CompositeScore.
const compositeScoreExpr = `(
		COALESCE(v.cnt, 0) * 0.4 +
		COALESCE(l.cnt, 0) * 0.3 +
		COALESCE(c.cnt, 0) * 0.2 +
		COALESCE(s.cnt, 0) * 0.1 +
		n.priority_score * 0.5
	)`

// EditorialFilter describes the candidate set for an editorial ranking query.
// Category matching is case-insensitive; an empty slice means unfiltered.
type EditorialFilter struct {
	Categories         []string
	TypeID             int64
	CreatedAfter       *time.Time // inclusive lower cursor
	WindowStart        *time.Time // lookback window [start, end)
	WindowEnd          *time.Time
	ExcludeIDs         []int64
	FeaturedOrBreaking bool
	Limit              int
	Offset             int
}

// editorialWhere builds the WHERE clause shared by editorial queries. Only
// eligible rows qualify: active and not past expiry.
func editorialWhere(f EditorialFilter) (clause string, args []interface{}, needsIn bool) {
	conds := []string{"n.is_active = 1", "(n.expires_at IS NULL OR n.expires_at > CURRENT_TIMESTAMP)"}

	if len(f.Categories) > 0 {
		conds = append(conds, "LOWER(n.category) IN (?)")
		lowered := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			lowered[i] = strings.ToLower(strings.TrimSpace(c))
		}
		args = append(args, lowered)
		needsIn = true
	}
	if f.TypeID != 0 {
		conds = append(conds, "n.type_id = ?")
		args = append(args, f.TypeID)
	}
	if f.CreatedAfter != nil {
		conds = append(conds, "n.created_at >= ?")
		args = append(args, f.CreatedAfter.UTC())
	}
	if f.WindowStart != nil {
		conds = append(conds, "n.created_at >= ?")
		args = append(args, f.WindowStart.UTC())
	}
	if f.WindowEnd != nil {
		conds = append(conds, "n.created_at < ?")
		args = append(args, f.WindowEnd.UTC())
	}
	if len(f.ExcludeIDs) > 0 {
		conds = append(conds, "n.news_id NOT IN (?)")
		args = append(args, f.ExcludeIDs)
		needsIn = true
	}
	if f.FeaturedOrBreaking {
		conds = append(conds, "(n.is_featured = 1 OR n.is_breaking = 1)")
	}

	return " WHERE " + strings.Join(conds, " AND "), args, needsIn
}

// selectEditorial runs an editorial query with the given ORDER BY clause
func (r *ContentRepository) selectEditorial(ctx context.Context, f EditorialFilter, orderBy string) ([]domain.ContentItem, error) {
	where, args, needsIn := editorialWhere(f)
	query := newsSelectWithCounts + where + orderBy + " LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	if needsIn {
		expanded, expandedArgs, err := sqlx.In(query, args...)
		if err != nil {
			return nil, fmt.Errorf("build editorial query: %w", err)
		}
		query = r.db.Rebind(expanded)
		args = expandedArgs
	}

	var rows []newsSQL
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select editorial: %w", err)
	}
	return newsToDomain(rows), nil
}

// RankEditorial returns eligible news ordered by the weighted composite score.
// Ties are broken by news_id ascending to keep the order deterministic.
func (r *ContentRepository) RankEditorial(ctx context.Context, f EditorialFilter) ([]domain.ContentItem, error) {
	return r.selectEditorial(ctx, f, " ORDER BY "+compositeScoreExpr+" DESC, n.news_id ASC")
}

// ListEditorialByTime returns eligible news ordered by recency
func (r *ContentRepository) ListEditorialByTime(ctx context.Context, f EditorialFilter) ([]domain.ContentItem, error) {
	return r.selectEditorial(ctx, f, " ORDER BY n.created_at DESC, n.news_id ASC")
}

// metric name to aggregate column, the whitelist for metric-ordered queries
var metricColumns = map[string]string{
	"views":          "COALESCE(v.cnt, 0)",
	"likes":          "COALESCE(l.cnt, 0)",
	"comments":       "COALESCE(c.cnt, 0)",
	"shares":         "COALESCE(s.cnt, 0)",
	"priority_score": "n.priority_score",
}

// ValidMetric reports whether a metric name can be used for ordering
func ValidMetric(name string) bool {
	_, ok := metricColumns[name]
	return ok
}

// ListEditorialByMetric returns eligible news ordered by a single whitelisted metric
func (r *ContentRepository) ListEditorialByMetric(ctx context.Context, f EditorialFilter, metric string) ([]domain.ContentItem, error) {
	col, ok := metricColumns[metric]
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	return r.selectEditorial(ctx, f, " ORDER BY "+col+" DESC, n.news_id ASC")
}

// RankEditorialWeighted returns eligible news ordered by a caller-weighted sum of
// whitelisted metrics. Weights are bound as query parameters, metric names come
// from the whitelist only.
func (r *ContentRepository) RankEditorialWeighted(ctx context.Context, f EditorialFilter, metrics []string, weights []float64) ([]domain.ContentItem, error) {
	if len(metrics) != len(weights) || len(metrics) == 0 {
		return nil, fmt.Errorf("metrics/weights mismatch")
	}

	terms := make([]string, 0, len(metrics))
	weightArgs := make([]interface{}, 0, len(weights))
	for i, m := range metrics {
		col, ok := metricColumns[m]
		if !ok {
			return nil, fmt.Errorf("unknown metric %q", m)
		}
		terms = append(terms, col+" * ?")
		weightArgs = append(weightArgs, weights[i])
	}

	where, whereArgs, needsIn := editorialWhere(f)
	query := newsSelectWithCounts + where +
		" ORDER BY (" + strings.Join(terms, " + ") + ") DESC, n.news_id ASC LIMIT ? OFFSET ?"

	args := append(whereArgs, weightArgs...) //nolint:gocritic // weight params follow where params in query order
	args = append(args, f.Limit, f.Offset)

	if needsIn {
		expanded, expandedArgs, err := sqlx.In(query, args...)
		if err != nil {
			return nil, fmt.Errorf("build weighted query: %w", err)
		}
		query = r.db.Rebind(expanded)
		args = expandedArgs
	}

	var rows []newsSQL
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select weighted editorial: %w", err)
	}
	return newsToDomain(rows), nil
}

// GetNewsByIDs fetches specific news rows with counts, keyed by id
func (r *ContentRepository) GetNewsByIDs(ctx context.Context, ids []int64) (map[int64]domain.ContentItem, error) {
	if len(ids) == 0 {
		return map[int64]domain.ContentItem{}, nil
	}

	query, args, err := sqlx.In(newsSelectWithCounts+" WHERE n.news_id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []newsSQL
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get news by ids: %w", err)
	}

	result := make(map[int64]domain.ContentItem, len(rows))
	for _, item := range newsToDomain(rows) {
		result[item.ID] = item
	}
	return result, nil
}

// GetNews retrieves a single news item with counts
func (r *ContentRepository) GetNews(ctx context.Context, id int64) (*domain.ContentItem, error) {
	var row newsSQL
	err := r.db.GetContext(ctx, &row, r.db.Rebind(newsSelectWithCounts+" WHERE n.news_id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get news: %w", err)
	}
	item := row.toDomain()
	return &item, nil
}

// NewsListFilter describes the admin/browse news listing
type NewsListFilter struct {
	Category string
	Tag      string
	Featured *bool
	Breaking *bool
	Page     int
	Limit    int
}

// ListNews returns a page of active news plus the unpaginated total
func (r *ContentRepository) ListNews(ctx context.Context, f NewsListFilter) (items []domain.ContentItem, total int, err error) {
	conds := []string{"n.is_active = 1"}
	var args []interface{}

	if f.Category != "" {
		conds = append(conds, "LOWER(n.category) = LOWER(?)")
		args = append(args, f.Category)
	}
	if f.Tag != "" {
		// tags are stored as a JSON array of strings
		conds = append(conds, "EXISTS (SELECT 1 FROM json_each(n.tags) WHERE json_each.value = ?)")
		args = append(args, f.Tag)
	}
	if f.Featured != nil {
		conds = append(conds, "n.is_featured = ?")
		args = append(args, *f.Featured)
	}
	if f.Breaking != nil {
		conds = append(conds, "n.is_breaking = ?")
		args = append(args, *f.Breaking)
	}

	where := " WHERE " + strings.Join(conds, " AND ")

	if err = r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM news n"+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count news: %w", err)
	}

	offset := (f.Page - 1) * f.Limit
	query := newsSelectWithCounts + where + " ORDER BY n.created_at DESC, n.news_id ASC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	var rows []newsSQL
	if err = r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list news: %w", err)
	}
	return newsToDomain(rows), total, nil
}

// CreateNews inserts a new news item and sets its id
func (r *ContentRepository) CreateNews(ctx context.Context, item *domain.ContentItem) error {
	var lat, lng *float64
	if item.Geo != nil {
		lat, lng = &item.Geo.Lat, &item.Geo.Lng
	}

	query := `
		INSERT INTO news (
			type_id, title, short_description, long_description, content_url,
			vertical_content_url, square_content_url, compressed_content_url, redirect_url,
			category, tags, area_names, lat, lng, radius_km,
			is_active, is_featured, is_breaking, priority_score, relevance_expires_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		item.TypeID, item.Title, item.ShortDescription, item.LongDescription, item.ContentURL,
		item.VerticalContentURL, item.SquareContentURL, item.CompressedContentURL, item.RedirectURL,
		item.Category, stringsSQL(item.Tags), stringsSQL(item.AreaNames), lat, lng, item.RadiusKm,
		item.Active, item.Featured, item.Breaking, item.PriorityScore, item.RelevanceExpiresAt, item.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create news: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	item.ID = id
	item.Kind = domain.KindNews
	return nil
}

// NewsUpdate holds optional field updates for a news item; nil fields are untouched
type NewsUpdate struct {
	TypeID             *int64
	Title              *string
	ShortDescription   *string
	LongDescription    *string
	ContentURL         *string
	RedirectURL        *string
	Category           *string
	Tags               []string
	AreaNames          []string
	Geo                *domain.GeoPoint
	RadiusKm           *float64
	Active             *bool
	Featured           *bool
	Breaking           *bool
	PriorityScore      *float64
	RelevanceExpiresAt *time.Time
	ExpiresAt          *time.Time
}

// UpdateNews applies the non-nil fields of upd to a news row
func (r *ContentRepository) UpdateNews(ctx context.Context, id int64, upd NewsUpdate) error {
	var sets []string
	var args []interface{}

	add := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if upd.TypeID != nil {
		add("type_id", *upd.TypeID)
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.ShortDescription != nil {
		add("short_description", *upd.ShortDescription)
	}
	if upd.LongDescription != nil {
		add("long_description", *upd.LongDescription)
	}
	if upd.ContentURL != nil {
		add("content_url", *upd.ContentURL)
	}
	if upd.RedirectURL != nil {
		add("redirect_url", *upd.RedirectURL)
	}
	if upd.Category != nil {
		add("category", *upd.Category)
	}
	if upd.Tags != nil {
		add("tags", stringsSQL(upd.Tags))
	}
	if upd.AreaNames != nil {
		add("area_names", stringsSQL(upd.AreaNames))
	}
	if upd.Geo != nil {
		add("lat", upd.Geo.Lat)
		add("lng", upd.Geo.Lng)
	}
	if upd.RadiusKm != nil {
		add("radius_km", *upd.RadiusKm)
	}
	if upd.Active != nil {
		add("is_active", *upd.Active)
	}
	if upd.Featured != nil {
		add("is_featured", *upd.Featured)
	}
	if upd.Breaking != nil {
		add("is_breaking", *upd.Breaking)
	}
	if upd.PriorityScore != nil {
		add("priority_score", *upd.PriorityScore)
	}
	if upd.RelevanceExpiresAt != nil {
		add("relevance_expires_at", *upd.RelevanceExpiresAt)
	}
	if upd.ExpiresAt != nil {
		add("expires_at", *upd.ExpiresAt)
	}

	if len(sets) == 0 {
		return fmt.Errorf("no fields to update")
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := "UPDATE news SET " + strings.Join(sets, ", ") + " WHERE news_id = ?"
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update news: %w", err)
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

// adCountJoins mirrors newsCountJoins for advertisements
const adCountJoins = `
	LEFT JOIN (SELECT subject_id, COUNT(*) AS cnt FROM engagement_events
		WHERE subject_kind = 'ad' AND event_type = 'view' GROUP BY subject_id) v ON v.subject_id = a.ad_id
	LEFT JOIN (SELECT subject_id, COUNT(*) AS cnt FROM engagement_events
		WHERE subject_kind = 'ad' AND event_type = 'like' GROUP BY subject_id) l ON l.subject_id = a.ad_id
	LEFT JOIN (SELECT subject_id, COUNT(*) AS cnt FROM engagement_events
		WHERE subject_kind = 'ad' AND event_type = 'comment' GROUP BY subject_id) c ON c.subject_id = a.ad_id
	LEFT JOIN (SELECT subject_id, COUNT(*) AS cnt FROM engagement_events
		WHERE subject_kind = 'ad' AND event_type = 'share' GROUP BY subject_id) s ON s.subject_id = a.ad_id`

const adSelectWithCounts = `
	SELECT a.*,
		COALESCE(v.cnt, 0) AS view_count,
		COALESCE(l.cnt, 0) AS like_count,
		COALESCE(c.cnt, 0) AS comment_count,
		COALESCE(s.cnt, 0) AS share_count
	FROM advertisements a` + adCountJoins

// ListActiveAds returns active, unexpired ads with counts ordered by priority.
// Weighted-random or proximity selection happens in the feed engine.
func (r *ContentRepository) ListActiveAds(ctx context.Context, limit int) ([]domain.ContentItem, error) {
	query := adSelectWithCounts + `
		WHERE a.is_active = 1 AND (a.end_at IS NULL OR a.end_at > CURRENT_TIMESTAMP)
		ORDER BY a.priority_score DESC, a.ad_id ASC LIMIT ?`

	var rows []adSQL
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), limit); err != nil {
		return nil, fmt.Errorf("list active ads: %w", err)
	}
	return adsToDomain(rows), nil
}

// GetAdsByIDs fetches specific advertisement rows with counts, keyed by id
func (r *ContentRepository) GetAdsByIDs(ctx context.Context, ids []int64) (map[int64]domain.ContentItem, error) {
	if len(ids) == 0 {
		return map[int64]domain.ContentItem{}, nil
	}

	query, args, err := sqlx.In(adSelectWithCounts+" WHERE a.ad_id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []adSQL
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get ads by ids: %w", err)
	}

	result := make(map[int64]domain.ContentItem, len(rows))
	for _, item := range adsToDomain(rows) {
		result[item.ID] = item
	}
	return result, nil
}

// GetAd retrieves a single advertisement with counts
func (r *ContentRepository) GetAd(ctx context.Context, id int64) (*domain.ContentItem, error) {
	var row adSQL
	err := r.db.GetContext(ctx, &row, r.db.Rebind(adSelectWithCounts+" WHERE a.ad_id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ad: %w", err)
	}
	item := row.toDomain()
	return &item, nil
}

// AdListFilter describes the admin advertisement listing
type AdListFilter struct {
	Active         *bool
	Featured       *bool
	FormatID       int64
	TargetCategory string
	Page           int
	Limit          int
}

// ListAds returns a page of advertisements plus the unpaginated total
func (r *ContentRepository) ListAds(ctx context.Context, f AdListFilter) (items []domain.ContentItem, total int, err error) {
	conds := []string{"1 = 1"}
	var args []interface{}

	if f.Active != nil {
		conds = append(conds, "a.is_active = ?")
		args = append(args, *f.Active)
	}
	if f.Featured != nil {
		conds = append(conds, "a.is_featured = ?")
		args = append(args, *f.Featured)
	}
	if f.FormatID != 0 {
		conds = append(conds, "a.format_id = ?")
		args = append(args, f.FormatID)
	}
	if f.TargetCategory != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM json_each(a.target_categories) WHERE json_each.value = ?)")
		args = append(args, f.TargetCategory)
	}

	where := " WHERE " + strings.Join(conds, " AND ")

	if err = r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM advertisements a"+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count ads: %w", err)
	}

	offset := (f.Page - 1) * f.Limit
	query := adSelectWithCounts + where + " ORDER BY a.created_at DESC, a.ad_id ASC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	var rows []adSQL
	if err = r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list ads: %w", err)
	}
	return adsToDomain(rows), total, nil
}

// CreateAd inserts a new advertisement and sets its id
func (r *ContentRepository) CreateAd(ctx context.Context, item *domain.ContentItem) error {
	var lat, lng *float64
	if item.Geo != nil {
		lat, lng = &item.Geo.Lat, &item.Geo.Lng
	}

	query := `
		INSERT INTO advertisements (
			format_id, title, description, content_url, redirect_url, category,
			target_tags, area_names, lat, lng, radius_km,
			is_active, is_featured, fullscreen, priority_score, relevance_expires_at, end_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		item.TypeID, item.Title, item.ShortDescription, item.ContentURL, item.RedirectURL, item.Category,
		stringsSQL(item.Tags), stringsSQL(item.AreaNames), lat, lng, item.RadiusKm,
		item.Active, item.Featured, item.Fullscreen, item.PriorityScore, item.RelevanceExpiresAt, item.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create ad: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	item.ID = id
	item.Kind = domain.KindAd
	return nil
}

// DeleteAd removes an advertisement, returns sql.ErrNoRows if absent
func (r *ContentRepository) DeleteAd(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM advertisements WHERE ad_id = ?", id)
	if err != nil {
		return fmt.Errorf("delete ad: %w", err)
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

// ListCategories returns all categories ordered by id
func (r *ContentRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var rows []struct {
		ID    int64  `db:"id"`
		Name  string `db:"category_name"`
		Image string `db:"image"`
	}
	err := r.db.SelectContext(ctx, &rows,
		"SELECT id, category_name, image FROM categories ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	categories := make([]domain.Category, len(rows))
	for i, row := range rows {
		categories[i] = domain.Category{ID: row.ID, Name: row.Name, Image: row.Image}
	}
	return categories, nil
}

// CreateCategory inserts a category with a unique name
func (r *ContentRepository) CreateCategory(ctx context.Context, cat *domain.Category) error {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (category_name, image) VALUES (?, ?)", cat.Name, cat.Image)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	cat.ID = id
	return nil
}

func (n *newsSQL) toDomain() domain.ContentItem {
	item := domain.ContentItem{
		ID:                   n.ID,
		Kind:                 domain.KindNews,
		TypeID:               n.TypeID,
		Title:                n.Title,
		ShortDescription:     n.ShortDescription,
		LongDescription:      n.LongDescription,
		ContentURL:           n.ContentURL,
		VerticalContentURL:   n.VerticalContentURL,
		SquareContentURL:     n.SquareContentURL,
		CompressedContentURL: n.CompressedContentURL,
		RedirectURL:          n.RedirectURL,
		Category:             n.Category,
		Tags:                 n.Tags,
		AreaNames:            n.AreaNames,
		RadiusKm:             n.RadiusKm,
		Active:               n.Active,
		Featured:             n.Featured,
		Breaking:             n.Breaking,
		PriorityScore:        n.PriorityScore,
		RelevanceExpiresAt:   n.RelevanceExpiresAt,
		ExpiresAt:            n.ExpiresAt,
		CreatedAt:            n.CreatedAt,
		UpdatedAt:            n.UpdatedAt,
		Counts: domain.EngagementCounts{
			Views: n.ViewCount, Likes: n.LikeCount, Comments: n.CommentCount, Shares: n.ShareCount,
		},
	}
	if n.Lat != nil && n.Lng != nil {
		item.Geo = &domain.GeoPoint{Lat: *n.Lat, Lng: *n.Lng}
	}
	return item
}

func (a *adSQL) toDomain() domain.ContentItem {
	item := domain.ContentItem{
		ID:                 a.ID,
		Kind:               domain.KindAd,
		TypeID:             a.FormatID,
		Title:              a.Title,
		ShortDescription:   a.Description,
		ContentURL:         a.ContentURL,
		RedirectURL:        a.RedirectURL,
		Category:           a.Category,
		Tags:               a.TargetTags,
		AreaNames:          a.AreaNames,
		RadiusKm:           a.RadiusKm,
		Active:             a.Active,
		Featured:           a.Featured,
		Fullscreen:         a.Fullscreen,
		PriorityScore:      a.PriorityScore,
		RelevanceExpiresAt: a.RelevanceExpiresAt,
		ExpiresAt:          a.EndAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
		Counts: domain.EngagementCounts{
			Views: a.ViewCount, Likes: a.LikeCount, Comments: a.CommentCount, Shares: a.ShareCount,
		},
	}
	if a.Lat != nil && a.Lng != nil {
		item.Geo = &domain.GeoPoint{Lat: *a.Lat, Lng: *a.Lng}
	}
	return item
}

func newsToDomain(rows []newsSQL) []domain.ContentItem {
	items := make([]domain.ContentItem, len(rows))
	for i := range rows {
		items[i] = rows[i].toDomain()
	}
	return items
}

func adsToDomain(rows []adSQL) []domain.ContentItem {
	items := make([]domain.ContentItem, len(rows))
	for i := range rows {
		items[i] = rows[i].toDomain()
	}
	return items
}
