package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/clicknbit/newsapi/pkg/domain"
	"github.com/clicknbit/newsapi/pkg/feed"
	"github.com/clicknbit/newsapi/pkg/repository"
)

// newsRequest is the JSON body for creating a news item
type newsRequest struct {
	TypeID               int64            `json:"type_id"`
	Title                string           `json:"title"`
	ShortDescription     string           `json:"short_description"`
	LongDescription      string           `json:"long_description"`
	ContentURL           string           `json:"content_url"`
	VerticalContentURL   string           `json:"vertical_content_url"`
	SquareContentURL     string           `json:"square_content_url"`
	CompressedContentURL string           `json:"compressed_content_url"`
	RedirectURL          string           `json:"redirect_url"`
	Category             string           `json:"category"`
	Tags                 []string         `json:"tags"`
	AreaNames            []string         `json:"area_names"`
	Geo                  *domain.GeoPoint `json:"geo"`
	RadiusKm             float64          `json:"radius_km"`
	Featured             bool             `json:"is_featured"`
	Breaking             bool             `json:"is_breaking"`
	PriorityScore        float64          `json:"priority_score"`
	RelevanceExpiresAt   *time.Time       `json:"relevance_expires_at"`
	ExpiresAt            *time.Time       `json:"expires_at"`
}

// listNewsHandler serves a paginated, filterable news listing
func (s *Server) listNewsHandler(w http.ResponseWriter, r *http.Request) {
	filter := repository.NewsListFilter{
		Category: r.URL.Query().Get("category"),
		Tag:      r.URL.Query().Get("tag"),
		Page:     queryInt(r, "page", 1),
		Limit:    queryInt(r, "limit", 20),
	}
	if v := r.URL.Query().Get("featured"); v != "" {
		featured := v == "true"
		filter.Featured = &featured
	}
	if v := r.URL.Query().Get("breaking"); v != "" {
		breaking := v == "true"
		filter.Breaking = &breaking
	}

	items, total, err := s.content.ListNews(r.Context(), filter)
	if err != nil {
		log.Printf("[ERROR] failed to list news: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"items": feed.NewItems(items),
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// createNewsHandler creates a news item
func (s *Server) createNewsHandler(w http.ResponseWriter, r *http.Request) {
	var req newsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		renderError(w, r, fmt.Errorf("title is required"), http.StatusBadRequest)
		return
	}

	item := &domain.ContentItem{
		Kind:                 domain.KindNews,
		TypeID:               req.TypeID,
		Title:                req.Title,
		ShortDescription:     req.ShortDescription,
		LongDescription:      req.LongDescription,
		ContentURL:           req.ContentURL,
		VerticalContentURL:   req.VerticalContentURL,
		SquareContentURL:     req.SquareContentURL,
		CompressedContentURL: req.CompressedContentURL,
		RedirectURL:          req.RedirectURL,
		Category:             req.Category,
		Tags:                 req.Tags,
		AreaNames:            req.AreaNames,
		Geo:                  req.Geo,
		RadiusKm:             req.RadiusKm,
		Active:               true,
		Featured:             req.Featured,
		Breaking:             req.Breaking,
		PriorityScore:        req.PriorityScore,
		RelevanceExpiresAt:   req.RelevanceExpiresAt,
		ExpiresAt:            req.ExpiresAt,
	}

	if err := s.content.CreateNews(r.Context(), item); err != nil {
		log.Printf("[ERROR] failed to create news: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusCreated, feed.NewItem(*item))
}

// newsUpdateRequest is the JSON body for a partial news update, absent fields
// stay untouched
type newsUpdateRequest struct {
	TypeID             *int64           `json:"type_id"`
	Title              *string          `json:"title"`
	ShortDescription   *string          `json:"short_description"`
	LongDescription    *string          `json:"long_description"`
	ContentURL         *string          `json:"content_url"`
	RedirectURL        *string          `json:"redirect_url"`
	Category           *string          `json:"category"`
	Tags               []string         `json:"tags"`
	AreaNames          []string         `json:"area_names"`
	Geo                *domain.GeoPoint `json:"geo"`
	RadiusKm           *float64         `json:"radius_km"`
	Active             *bool            `json:"is_active"`
	Featured           *bool            `json:"is_featured"`
	Breaking           *bool            `json:"is_breaking"`
	PriorityScore      *float64         `json:"priority_score"`
	RelevanceExpiresAt *time.Time       `json:"relevance_expires_at"`
	ExpiresAt          *time.Time       `json:"expires_at"`
}

func (u *newsUpdateRequest) toUpdate() repository.NewsUpdate {
	return repository.NewsUpdate{
		TypeID:             u.TypeID,
		Title:              u.Title,
		ShortDescription:   u.ShortDescription,
		LongDescription:    u.LongDescription,
		ContentURL:         u.ContentURL,
		RedirectURL:        u.RedirectURL,
		Category:           u.Category,
		Tags:               u.Tags,
		AreaNames:          u.AreaNames,
		Geo:                u.Geo,
		RadiusKm:           u.RadiusKm,
		Active:             u.Active,
		Featured:           u.Featured,
		Breaking:           u.Breaking,
		PriorityScore:      u.PriorityScore,
		RelevanceExpiresAt: u.RelevanceExpiresAt,
		ExpiresAt:          u.ExpiresAt,
	}
}

// updateNewsHandler applies a partial update to a news item
func (s *Server) updateNewsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid news ID"), http.StatusBadRequest)
		return
	}

	var req newsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	if err := s.content.UpdateNews(r.Context(), id, req.toUpdate()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			renderError(w, r, fmt.Errorf("news not found"), http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] failed to update news %d: %v", id, err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}

	item, err := s.content.GetNews(r.Context(), id)
	if err != nil || item == nil {
		log.Printf("[ERROR] failed to reload news %d: %v", id, err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, feed.NewItem(*item))
}

// adRequest is the JSON body for creating an advertisement
type adRequest struct {
	FormatID           int64            `json:"format_id"`
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	ContentURL         string           `json:"content_url"`
	RedirectURL        string           `json:"redirect_url"`
	Category           string           `json:"category"`
	TargetTags         []string         `json:"target_tags"`
	AreaNames          []string         `json:"area_names"`
	Geo                *domain.GeoPoint `json:"geo"`
	RadiusKm           float64          `json:"radius_km"`
	Featured           bool             `json:"is_featured"`
	Fullscreen         bool             `json:"fullscreen"`
	PriorityScore      float64          `json:"priority_score"`
	RelevanceExpiresAt *time.Time       `json:"relevance_expires_at"`
	EndAt              *time.Time       `json:"end_at"`
}

// listAdsHandler serves a paginated advertisement listing
func (s *Server) listAdsHandler(w http.ResponseWriter, r *http.Request) {
	filter := repository.AdListFilter{
		FormatID:       int64(queryInt(r, "format_id", 0)),
		TargetCategory: r.URL.Query().Get("category"),
		Page:           queryInt(r, "page", 1),
		Limit:          queryInt(r, "limit", 20),
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active := v == "true"
		filter.Active = &active
	}

	items, total, err := s.content.ListAds(r.Context(), filter)
	if err != nil {
		log.Printf("[ERROR] failed to list ads: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"items": feed.NewItems(items),
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// createAdHandler creates an advertisement
func (s *Server) createAdHandler(w http.ResponseWriter, r *http.Request) {
	var req adRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		renderError(w, r, fmt.Errorf("title is required"), http.StatusBadRequest)
		return
	}

	item := &domain.ContentItem{
		Kind:               domain.KindAd,
		TypeID:             req.FormatID,
		Title:              req.Title,
		ShortDescription:   req.Description,
		ContentURL:         req.ContentURL,
		RedirectURL:        req.RedirectURL,
		Category:           req.Category,
		Tags:               req.TargetTags,
		AreaNames:          req.AreaNames,
		Geo:                req.Geo,
		RadiusKm:           req.RadiusKm,
		Active:             true,
		Featured:           req.Featured,
		Fullscreen:         req.Fullscreen,
		PriorityScore:      req.PriorityScore,
		RelevanceExpiresAt: req.RelevanceExpiresAt,
		ExpiresAt:          req.EndAt,
	}

	if err := s.content.CreateAd(r.Context(), item); err != nil {
		log.Printf("[ERROR] failed to create ad: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusCreated, feed.NewItem(*item))
}

// deleteAdHandler removes an advertisement
func (s *Server) deleteAdHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid ad ID"), http.StatusBadRequest)
		return
	}

	if err := s.content.DeleteAd(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			renderError(w, r, fmt.Errorf("ad not found"), http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] failed to delete ad %d: %v", id, err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// listCategoriesHandler serves all content categories
func (s *Server) listCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := s.content.ListCategories(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to list categories: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]interface{}{"categories": categories})
}

// createCategoryHandler creates a content category
func (s *Server) createCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var cat domain.Category
	if err := json.NewDecoder(r.Body).Decode(&cat); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if cat.Name == "" {
		renderError(w, r, fmt.Errorf("name is required"), http.StatusBadRequest)
		return
	}

	if err := s.content.CreateCategory(r.Context(), &cat); err != nil {
		log.Printf("[ERROR] failed to create category: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusCreated, cat)
}
