package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clicknbit/newsapi/pkg/domain"
)

// overrideResponse is the API shape of a manual top-rank pin
type overrideResponse struct {
	Rank      int       `json:"rank"`
	NewsID    int64     `json:"news_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// listOverridesHandler serves all manual top-rank pins ordered by rank
func (s *Server) listOverridesHandler(w http.ResponseWriter, r *http.Request) {
	overrides, err := s.overrides.ListOverrides(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to list overrides: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}

	out := make([]overrideResponse, len(overrides))
	for i, o := range overrides {
		out[i] = overrideResponse{Rank: o.Rank, NewsID: o.NewsID, UpdatedAt: o.UpdatedAt}
	}
	renderJSON(w, r, http.StatusOK, map[string]interface{}{"overrides": out})
}

// setOverrideHandler pins a news item to a top-list rank
func (s *Server) setOverrideHandler(w http.ResponseWriter, r *http.Request) {
	rank, err := strconv.Atoi(r.PathValue("rank"))
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid rank"), http.StatusBadRequest)
		return
	}

	var req struct {
		NewsID int64 `json:"news_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if req.NewsID == 0 {
		renderError(w, r, fmt.Errorf("news_id is required"), http.StatusBadRequest)
		return
	}

	if err := s.overrides.SetOverride(r.Context(), rank, req.NewsID); err != nil {
		if strings.Contains(err.Error(), "out of range") {
			renderError(w, r, err, http.StatusBadRequest)
			return
		}
		log.Printf("[ERROR] failed to set override: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, overrideResponse{Rank: rank, NewsID: req.NewsID, UpdatedAt: time.Now().UTC()})
}

// clearOverrideHandler removes the pin at a rank
func (s *Server) clearOverrideHandler(w http.ResponseWriter, r *http.Request) {
	rank, err := strconv.Atoi(r.PathValue("rank"))
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid rank"), http.StatusBadRequest)
		return
	}

	if err := s.overrides.ClearOverride(r.Context(), rank); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			renderError(w, r, fmt.Errorf("no override at rank %d", rank), http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] failed to clear override: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// settingResponse is the API shape of a system setting
type settingResponse struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// listSettingsHandler serves all system settings
func (s *Server) listSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.GetAllSettings(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to list settings: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}

	out := make(map[string]settingResponse, len(settings))
	for key, setting := range settings {
		out[key] = settingResponse{Key: setting.Key, Value: setting.Value, UpdatedAt: setting.UpdatedAt}
	}
	renderJSON(w, r, http.StatusOK, map[string]interface{}{"settings": out})
}

// updateSettingHandler upserts a setting value and synchronously drops its
// cached copy, so a frequency change is visible on the next feed call
func (s *Server) updateSettingHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if req.Value == "" {
		renderError(w, r, fmt.Errorf("value is required"), http.StatusBadRequest)
		return
	}

	// frequencies must stay positive integers
	if key == domain.SettingAdFrequency || key == domain.SettingAstonAdFrequency {
		if v, err := strconv.Atoi(req.Value); err != nil || v < 1 {
			renderError(w, r, fmt.Errorf("%s must be a positive integer", key), http.StatusBadRequest)
			return
		}
	}

	if err := s.settings.SetSetting(r.Context(), key, req.Value); err != nil {
		log.Printf("[ERROR] failed to set setting %s: %v", key, err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}

	s.feed.InvalidateSetting(r.Context(), key)

	setting, err := s.settings.GetSetting(r.Context(), key)
	if err != nil {
		log.Printf("[ERROR] failed to reload setting %s: %v", key, err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, settingResponse{Key: setting.Key, Value: setting.Value, UpdatedAt: setting.UpdatedAt})
}
