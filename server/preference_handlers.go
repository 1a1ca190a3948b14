package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/clicknbit/newsapi/pkg/domain"
)

// preferenceResponse is the API shape of a personalization profile
type preferenceResponse struct {
	UserID              int64                  `json:"user_id"`
	PreferredNewsType   string                 `json:"preferred_news_type,omitempty"`
	SelectedCategories  []string               `json:"selected_categories,omitempty"`
	ClickedNewsCategory map[string]int         `json:"clicked_news_category,omitempty"`
	SkippedNewsCategory map[string]int         `json:"skipped_news_category,omitempty"`
	ClickedAdCategory   map[string]int         `json:"clicked_ad_category,omitempty"`
	SkippedAdCategory   map[string]int         `json:"skipped_ad_category,omitempty"`
	ClickedNewsLocation map[string]int         `json:"clicked_news_location,omitempty"`
	SkippedNewsLocation map[string]int         `json:"skipped_news_location,omitempty"`
	ClickedAdLocation   map[string]int         `json:"clicked_ad_location,omitempty"`
	SkippedAdLocation   map[string]int         `json:"skipped_ad_location,omitempty"`
	UserLocations       []domain.LocationCount `json:"user_locations,omitempty"`
	UserLocationsTags   []string               `json:"user_locations_tags,omitempty"`
	LastKnownLocation   *domain.GeoPoint       `json:"last_known_location,omitempty"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

func toPreferenceResponse(p *domain.Preference) preferenceResponse {
	return preferenceResponse{
		UserID:              p.UserID,
		PreferredNewsType:   p.PreferredNewsType,
		SelectedCategories:  p.SelectedCategories,
		ClickedNewsCategory: p.ClickedNewsCategory,
		SkippedNewsCategory: p.SkippedNewsCategory,
		ClickedAdCategory:   p.ClickedAdCategory,
		SkippedAdCategory:   p.SkippedAdCategory,
		ClickedNewsLocation: p.ClickedNewsLocation,
		SkippedNewsLocation: p.SkippedNewsLocation,
		ClickedAdLocation:   p.ClickedAdLocation,
		SkippedAdLocation:   p.SkippedAdLocation,
		UserLocations:       p.UserLocations,
		UserLocationsTags:   p.UserLocationsTags,
		LastKnownLocation:   p.LastKnownLocation,
		UpdatedAt:           p.UpdatedAt,
	}
}

// getPreferencesHandler serves the caller's personalization profile, an empty
// profile when none exists yet
func (s *Server) getPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	uid := callerID(r)
	pref, err := s.preferences.GetPreference(r.Context(), uid)
	if err != nil {
		log.Printf("[ERROR] failed to get preferences: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}
	if pref == nil {
		pref = &domain.Preference{UserID: uid}
	}
	renderJSON(w, r, http.StatusOK, toPreferenceResponse(pref))
}

// preferenceUpdateRequest is the JSON body carrying one batch of
// personalization signals
type preferenceUpdateRequest struct {
	ClickedNewsCategory string           `json:"clicked_news_category"`
	SkippedNewsCategory string           `json:"skipped_news_category"`
	ClickedAdCategory   string           `json:"clicked_ad_category"`
	SkippedAdCategory   string           `json:"skipped_ad_category"`
	ClickedNewsLocation string           `json:"clicked_news_location"`
	SkippedNewsLocation string           `json:"skipped_news_location"`
	ClickedAdLocation   string           `json:"clicked_ad_location"`
	SkippedAdLocation   string           `json:"skipped_ad_location"`
	UserLocation        string           `json:"user_location"`
	UserLocationsTags   []string         `json:"user_locations_tags"`
	PreferredNewsType   string           `json:"preferred_news_type"`
	SelectedCategories  []string         `json:"selected_categories"`
	LastKnownLocation   *domain.GeoPoint `json:"last_known_location"`
}

// updatePreferencesHandler folds a batch of signals into the caller's profile
// and returns the updated profile
func (s *Server) updatePreferencesHandler(w http.ResponseWriter, r *http.Request) {
	var req preferenceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	upd := domain.PreferenceUpdate{
		ClickedNewsCategory: req.ClickedNewsCategory,
		SkippedNewsCategory: req.SkippedNewsCategory,
		ClickedAdCategory:   req.ClickedAdCategory,
		SkippedAdCategory:   req.SkippedAdCategory,
		ClickedNewsLocation: req.ClickedNewsLocation,
		SkippedNewsLocation: req.SkippedNewsLocation,
		ClickedAdLocation:   req.ClickedAdLocation,
		SkippedAdLocation:   req.SkippedAdLocation,
		UserLocation:        req.UserLocation,
		UserLocationsTags:   req.UserLocationsTags,
		PreferredNewsType:   req.PreferredNewsType,
		SelectedCategories:  req.SelectedCategories,
		LastKnownLocation:   req.LastKnownLocation,
	}

	pref, err := s.preferences.ApplyUpdate(r.Context(), callerID(r), upd)
	if err != nil {
		log.Printf("[ERROR] failed to update preferences: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, toPreferenceResponse(pref))
}
