package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clicknbit/newsapi/pkg/domain"
)

// PreferenceRepository handles per-user personalization signal rows
type PreferenceRepository struct {
	db *sqlx.DB
}

// NewPreferenceRepository creates a new preference repository
func NewPreferenceRepository(database *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: database}
}

type preferenceSQL struct {
	UserID             int64              `db:"user_id"`
	PreferredNewsType  string             `db:"preferred_news_type"`
	SelectedCategories stringsSQL         `db:"selected_categories"`
	ClickedNewsCat     counterBagSQL      `db:"clicked_news_category"`
	SkippedNewsCat     counterBagSQL      `db:"skipped_news_category"`
	ClickedAdCat       counterBagSQL      `db:"clicked_ad_category"`
	SkippedAdCat       counterBagSQL      `db:"skipped_ad_category"`
	ClickedNewsLoc     counterBagSQL      `db:"clicked_news_location"`
	SkippedNewsLoc     counterBagSQL      `db:"skipped_news_location"`
	ClickedAdLoc       counterBagSQL      `db:"clicked_ad_location"`
	SkippedAdLoc       counterBagSQL      `db:"skipped_ad_location"`
	UserLocations      recentLocationsSQL `db:"user_locations"`
	UserLocationsTags  stringsSQL         `db:"user_locations_tags"`
	LastLat            *float64           `db:"last_lat"`
	LastLng            *float64           `db:"last_lng"`
	CreatedAt          time.Time          `db:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at"`
}

// GetPreference returns the preference row for a user, or nil if none exists
func (r *PreferenceRepository) GetPreference(ctx context.Context, userID int64) (*domain.Preference, error) {
	var row preferenceSQL
	err := r.db.GetContext(ctx, &row, "SELECT * FROM preferences WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return row.toDomain(), nil
}

// CreatePreference inserts a new preference row for a user
func (r *PreferenceRepository) CreatePreference(ctx context.Context, pref *domain.Preference) error {
	var lat, lng *float64
	if pref.LastKnownLocation != nil {
		lat, lng = &pref.LastKnownLocation.Lat, &pref.LastKnownLocation.Lng
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (
			user_id, preferred_news_type, selected_categories, user_locations,
			user_locations_tags, last_lat, last_lng
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pref.UserID, pref.PreferredNewsType, stringsSQL(pref.SelectedCategories),
		locationsToSQL(pref.UserLocations), stringsSQL(pref.UserLocationsTags), lat, lng)
	if err != nil {
		return fmt.Errorf("create preference: %w", err)
	}
	return nil
}

// ApplyUpdate folds one batch of preference signals into the user's row,
// creating the row lazily if absent. The read-modify-write has no version
// check, so concurrent updates for the same user may lose signals; acceptable
// for soft ranking counters.
func (r *PreferenceRepository) ApplyUpdate(ctx context.Context, userID int64, upd domain.PreferenceUpdate) (*domain.Preference, error) {
	pref, err := r.GetPreference(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pref == nil {
		pref = newPreference(userID)
		if err := r.CreatePreference(ctx, pref); err != nil {
			return nil, err
		}
	}

	applySignals(pref, upd)

	var lat, lng *float64
	if pref.LastKnownLocation != nil {
		lat, lng = &pref.LastKnownLocation.Lat, &pref.LastKnownLocation.Lng
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE preferences SET
			preferred_news_type = ?,
			selected_categories = ?,
			clicked_news_category = ?,
			skipped_news_category = ?,
			clicked_ad_category = ?,
			skipped_ad_category = ?,
			clicked_news_location = ?,
			skipped_news_location = ?,
			clicked_ad_location = ?,
			skipped_ad_location = ?,
			user_locations = ?,
			user_locations_tags = ?,
			last_lat = ?,
			last_lng = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?`,
		pref.PreferredNewsType, stringsSQL(pref.SelectedCategories),
		counterBagSQL(pref.ClickedNewsCategory), counterBagSQL(pref.SkippedNewsCategory),
		counterBagSQL(pref.ClickedAdCategory), counterBagSQL(pref.SkippedAdCategory),
		counterBagSQL(pref.ClickedNewsLocation), counterBagSQL(pref.SkippedNewsLocation),
		counterBagSQL(pref.ClickedAdLocation), counterBagSQL(pref.SkippedAdLocation),
		locationsToSQL(pref.UserLocations), stringsSQL(pref.UserLocationsTags),
		lat, lng, userID)
	if err != nil {
		return nil, fmt.Errorf("update preference: %w", err)
	}
	return pref, nil
}

func newPreference(userID int64) *domain.Preference {
	return &domain.Preference{
		UserID:              userID,
		ClickedNewsCategory: domain.CounterBag{},
		SkippedNewsCategory: domain.CounterBag{},
		ClickedAdCategory:   domain.CounterBag{},
		SkippedAdCategory:   domain.CounterBag{},
		ClickedNewsLocation: domain.CounterBag{},
		SkippedNewsLocation: domain.CounterBag{},
		ClickedAdLocation:   domain.CounterBag{},
		SkippedAdLocation:   domain.CounterBag{},
	}
}

// locationsToSQL converts the domain recency list to its JSON column form
func locationsToSQL(locs domain.RecentLocations) recentLocationsSQL {
	res := make(recentLocationsSQL, len(locs))
	for i, loc := range locs {
		res[i] = locationCountJSON{Token: loc.Token, Count: loc.Count}
	}
	return res
}

func locationsToDomain(locs recentLocationsSQL) domain.RecentLocations {
	if len(locs) == 0 {
		return nil
	}
	res := make(domain.RecentLocations, len(locs))
	for i, loc := range locs {
		res[i] = domain.LocationCount{Token: loc.Token, Count: loc.Count}
	}
	return res
}

// applySignals mutates pref in place with one update batch
func applySignals(pref *domain.Preference, upd domain.PreferenceUpdate) {
	if upd.ClickedNewsCategory != "" {
		pref.ClickedNewsCategory.Inc(upd.ClickedNewsCategory)
	}
	if upd.SkippedNewsCategory != "" {
		pref.SkippedNewsCategory.Dec(upd.SkippedNewsCategory)
	}
	if upd.ClickedAdCategory != "" {
		pref.ClickedAdCategory.Inc(upd.ClickedAdCategory)
	}
	if upd.SkippedAdCategory != "" {
		pref.SkippedAdCategory.Dec(upd.SkippedAdCategory)
	}
	if upd.ClickedNewsLocation != "" {
		pref.ClickedNewsLocation.Inc(upd.ClickedNewsLocation)
	}
	if upd.SkippedNewsLocation != "" {
		pref.SkippedNewsLocation.Dec(upd.SkippedNewsLocation)
	}
	if upd.ClickedAdLocation != "" {
		pref.ClickedAdLocation.Inc(upd.ClickedAdLocation)
	}
	if upd.SkippedAdLocation != "" {
		pref.SkippedAdLocation.Dec(upd.SkippedAdLocation)
	}

	if upd.UserLocation != "" {
		pref.UserLocations = pref.UserLocations.Touch(upd.UserLocation)
	}

	if upd.UserLocationsTags != nil {
		pref.UserLocationsTags = upd.UserLocationsTags
	}
	if upd.PreferredNewsType != "" {
		pref.PreferredNewsType = upd.PreferredNewsType
	}
	if upd.SelectedCategories != nil {
		pref.SelectedCategories = upd.SelectedCategories
	}
	if upd.LastKnownLocation != nil {
		pref.LastKnownLocation = upd.LastKnownLocation
	}
}

func (p *preferenceSQL) toDomain() *domain.Preference {
	pref := &domain.Preference{
		UserID:              p.UserID,
		PreferredNewsType:   p.PreferredNewsType,
		SelectedCategories:  p.SelectedCategories,
		ClickedNewsCategory: domain.CounterBag(p.ClickedNewsCat),
		SkippedNewsCategory: domain.CounterBag(p.SkippedNewsCat),
		ClickedAdCategory:   domain.CounterBag(p.ClickedAdCat),
		SkippedAdCategory:   domain.CounterBag(p.SkippedAdCat),
		ClickedNewsLocation: domain.CounterBag(p.ClickedNewsLoc),
		SkippedNewsLocation: domain.CounterBag(p.SkippedNewsLoc),
		ClickedAdLocation:   domain.CounterBag(p.ClickedAdLoc),
		SkippedAdLocation:   domain.CounterBag(p.SkippedAdLoc),
		UserLocations:       locationsToDomain(p.UserLocations),
		UserLocationsTags:   p.UserLocationsTags,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	if p.LastLat != nil && p.LastLng != nil {
		pref.LastKnownLocation = &domain.GeoPoint{Lat: *p.LastLat, Lng: *p.LastLng}
	}
	return pref
}
