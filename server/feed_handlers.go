package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clicknbit/newsapi/pkg/domain"
	"github.com/clicknbit/newsapi/pkg/feed"
)

// top10Handler serves the composite-ranked top list with interleaved ads
func (s *Server) top10Handler(w http.ResponseWriter, r *http.Request) {
	req := feed.Top10Request{
		Categories: splitCSV(r.URL.Query().Get("categories")),
		AdCount:    queryInt(r, "ads", 0),
	}

	resp, err := s.feed.Top10(r.Context(), req, callerID(r))
	if err != nil {
		s.renderFeedError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// feedHandler serves the main paginated feed
func (s *Server) feedHandler(w http.ResponseWriter, r *http.Request) {
	req := feed.FeedRequest{
		Sort:       r.URL.Query().Get("sort"),
		TypeID:     int64(queryInt(r, "type_id", 0)),
		Categories: splitCSV(r.URL.Query().Get("categories")),
		Page:       queryInt(r, "page", 1),
		Limit:      queryInt(r, "limit", 10),
		Geo:        queryGeo(r),
	}
	if after := r.URL.Query().Get("after"); after != "" {
		ts, err := time.Parse(time.RFC3339, after)
		if err != nil {
			renderError(w, r, fmt.Errorf("invalid after cursor"), http.StatusBadRequest)
			return
		}
		req.After = &ts
	}

	resp, err := s.feed.Feed(r.Context(), req, callerID(r))
	if err != nil {
		s.renderFeedError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// bannerHandler serves featured and breaking items with appended ads
func (s *Server) bannerHandler(w http.ResponseWriter, r *http.Request) {
	req := feed.BannerRequest{
		Limit:   queryInt(r, "limit", 5),
		AdCount: queryInt(r, "ads", 0),
	}

	resp, err := s.feed.Banner(r.Context(), req, callerID(r))
	if err != nil {
		s.renderFeedError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// topByMetricHandler serves items ordered by a single engagement metric
func (s *Server) topByMetricHandler(w http.ResponseWriter, r *http.Request) {
	metric := r.PathValue("metric")
	limit := queryInt(r, "limit", 10)

	resp, err := s.feed.TopByMetric(r.Context(), metric, limit, callerID(r))
	if err != nil {
		s.renderFeedError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// topWeightedHandler serves items ordered by a weighted metric combination,
// metrics and weights come as parallel comma-separated lists
func (s *Server) topWeightedHandler(w http.ResponseWriter, r *http.Request) {
	metrics := splitCSV(r.URL.Query().Get("metrics"))

	var weights []float64
	for _, part := range splitCSV(r.URL.Query().Get("weights")) {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			renderError(w, r, fmt.Errorf("invalid weight %q", part), http.StatusBadRequest)
			return
		}
		weights = append(weights, v)
	}

	resp, err := s.feed.TopByWeightedMetrics(r.Context(), metrics, weights, queryInt(r, "limit", 10), callerID(r))
	if err != nil {
		s.renderFeedError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// newsDetailHandler serves a single enriched news item and records the view
func (s *Server) newsDetailHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid news ID"), http.StatusBadRequest)
		return
	}

	item, _, err := s.feed.NewsDetail(r.Context(), id, callerID(r))
	if err != nil {
		s.renderFeedError(w, r, err)
		return
	}
	if item == nil {
		renderError(w, r, fmt.Errorf("news not found"), http.StatusNotFound)
		return
	}

	// view counting must not delay or fail the response
	uid := callerID(r)
	go func() {
		ev := &domain.EngagementEvent{SubjectID: id, Kind: domain.KindNews, UserID: uid, Event: domain.EventView}
		if err := s.engagement.RecordEvent(context.Background(), ev); err != nil {
			log.Printf("[WARN] failed to record view for news %d: %v", id, err)
		}
	}()

	renderJSON(w, r, http.StatusOK, item)
}

// renderFeedError maps feed service failures to HTTP responses
func (s *Server) renderFeedError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *feed.InvalidFilterError
	if errors.As(err, &invalid) {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}
	log.Printf("[ERROR] feed request failed: %v", err)
	renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
}

// splitCSV splits a comma-separated query value, dropping empty parts
func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// queryInt parses an integer query parameter with a fallback
func queryInt(r *http.Request, name string, def int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return v
}

// queryGeo parses lat/lng query parameters, nil when either is absent
func queryGeo(r *http.Request) *domain.GeoPoint {
	latStr, lngStr := r.URL.Query().Get("lat"), r.URL.Query().Get("lng")
	if latStr == "" || lngStr == "" {
		return nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil
	}
	return &domain.GeoPoint{Lat: lat, Lng: lng}
}
