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
)

// eventRequest is the JSON body for recording an engagement event
type eventRequest struct {
	SubjectID       int64            `json:"subject_id"`
	Kind            string           `json:"kind"`
	Event           string           `json:"event"`
	AstonAdID       int64            `json:"aston_ad_id,omitempty"` // ad shown alongside a news view
	DurationSeconds int              `json:"duration_seconds"`
	DeviceType      string           `json:"device_type"`
	Platform        string           `json:"platform"`
	Geo             *domain.GeoPoint `json:"geo"`
}

var validEvents = map[domain.EventKind]bool{
	domain.EventView:    true,
	domain.EventLike:    true,
	domain.EventComment: true,
	domain.EventShare:   true,
	domain.EventClick:   true,
}

// recordEventHandler appends an engagement event, anonymous callers included
func (s *Server) recordEventHandler(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if req.SubjectID == 0 {
		renderError(w, r, fmt.Errorf("subject_id is required"), http.StatusBadRequest)
		return
	}
	kind := domain.ContentKind(req.Kind)
	if kind != domain.KindNews && kind != domain.KindAd {
		renderError(w, r, fmt.Errorf("invalid kind"), http.StatusBadRequest)
		return
	}
	if !validEvents[domain.EventKind(req.Event)] {
		renderError(w, r, fmt.Errorf("invalid event"), http.StatusBadRequest)
		return
	}

	ev := &domain.EngagementEvent{
		SubjectID:       req.SubjectID,
		Kind:            kind,
		UserID:          callerID(r),
		Event:           domain.EventKind(req.Event),
		DurationSeconds: req.DurationSeconds,
		DeviceType:      req.DeviceType,
		Platform:        req.Platform,
		Geo:             req.Geo,
	}

	if err := s.engagement.RecordEvent(r.Context(), ev); err != nil {
		log.Printf("[ERROR] failed to record event: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}

	// aston ads are shown on top of news views, their view rides along
	if req.AstonAdID != 0 && ev.Event == domain.EventView && kind == domain.KindNews {
		aston := &domain.EngagementEvent{
			SubjectID:  req.AstonAdID,
			Kind:       domain.KindAd,
			UserID:     ev.UserID,
			Event:      domain.EventView,
			DeviceType: req.DeviceType,
			Platform:   req.Platform,
		}
		if err := s.engagement.RecordEvent(r.Context(), aston); err != nil {
			log.Printf("[WARN] failed to record aston ad view for ad %d: %v", req.AstonAdID, err)
		}
	}

	renderJSON(w, r, http.StatusCreated, map[string]int64{"id": ev.ID})
}

// likeNewsHandler toggles the caller's like on a news item
func (s *Server) likeNewsHandler(w http.ResponseWriter, r *http.Request) {
	s.toggleLike(w, r, domain.KindNews)
}

// likeAdHandler toggles the caller's like on an advertisement
func (s *Server) likeAdHandler(w http.ResponseWriter, r *http.Request) {
	s.toggleLike(w, r, domain.KindAd)
}

func (s *Server) toggleLike(w http.ResponseWriter, r *http.Request, kind domain.ContentKind) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid ID"), http.StatusBadRequest)
		return
	}

	liked, err := s.engagement.ToggleLike(r.Context(), callerID(r), id, kind)
	if err != nil {
		log.Printf("[ERROR] failed to toggle like: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]bool{"liked": liked})
}

// commentRequest is the JSON body for posting a comment or reply
type commentRequest struct {
	Content  string `json:"content"`
	ParentID *int64 `json:"parent_id"`
}

// commentResponse is the API shape of a comment
type commentResponse struct {
	ID         int64     `json:"id"`
	SubjectID  int64     `json:"subject_id"`
	Kind       string    `json:"kind"`
	UserID     int64     `json:"user_id"`
	ParentID   *int64    `json:"parent_id,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	ReplyCount int64     `json:"reply_count"`
}

func toCommentResponses(comments []domain.Comment) []commentResponse {
	out := make([]commentResponse, len(comments))
	for i, c := range comments {
		out[i] = commentResponse{
			ID:         c.ID,
			SubjectID:  c.SubjectID,
			Kind:       string(c.Kind),
			UserID:     c.UserID,
			ParentID:   c.ParentID,
			Content:    c.Content,
			CreatedAt:  c.CreatedAt,
			ReplyCount: c.ReplyCount,
		}
	}
	return out
}

// createCommentHandler posts a comment (or reply via parent_id) on a news item
func (s *Server) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid news ID"), http.StatusBadRequest)
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		renderError(w, r, fmt.Errorf("content is required"), http.StatusBadRequest)
		return
	}

	comment := &domain.Comment{
		SubjectID: id,
		Kind:      domain.KindNews,
		UserID:    callerID(r),
		ParentID:  req.ParentID,
		Content:   req.Content,
	}

	if err := s.engagement.CreateComment(r.Context(), comment); err != nil {
		log.Printf("[ERROR] failed to create comment: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusCreated, toCommentResponses([]domain.Comment{*comment})[0])
}

// listCommentsHandler serves top-level comments for a news item, newest first
func (s *Server) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid news ID"), http.StatusBadRequest)
		return
	}

	page, limit := queryInt(r, "page", 1), queryInt(r, "limit", 20)
	comments, total, err := s.engagement.ListComments(r.Context(), id, domain.KindNews, page, limit)
	if err != nil {
		log.Printf("[ERROR] failed to list comments: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"comments": toCommentResponses(comments),
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// listRepliesHandler serves replies to a comment, oldest first
func (s *Server) listRepliesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid comment ID"), http.StatusBadRequest)
		return
	}

	page, limit := queryInt(r, "page", 1), queryInt(r, "limit", 20)
	replies, total, err := s.engagement.ListReplies(r.Context(), id, page, limit)
	if err != nil {
		log.Printf("[ERROR] failed to list replies: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"replies": toCommentResponses(replies),
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// listLikedHandler serves everything the caller has liked, newest first
func (s *Server) listLikedHandler(w http.ResponseWriter, r *http.Request) {
	liked, err := s.engagement.ListLiked(r.Context(), callerID(r))
	if err != nil {
		log.Printf("[ERROR] failed to list likes: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, len(liked))
	for i, l := range liked {
		items[i] = map[string]interface{}{"subject_id": l.SubjectID, "kind": l.Kind}
	}
	renderJSON(w, r, http.StatusOK, map[string]interface{}{"liked": items})
}

// listViewedHandler serves ids of news the caller viewed recently
func (s *Server) listViewedHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	ids, err := s.engagement.RecentlyViewedNews(r.Context(), callerID(r), limit)
	if err != nil {
		log.Printf("[ERROR] failed to list viewed news: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]interface{}{"news_ids": ids})
}

// saveRequest is the JSON body for saving a subject
type saveRequest struct {
	SubjectID int64  `json:"subject_id"`
	Kind      string `json:"kind"`
}

func (q *saveRequest) validate() (domain.ContentKind, error) {
	if q.SubjectID == 0 {
		return "", fmt.Errorf("subject_id is required")
	}
	kind := domain.ContentKind(q.Kind)
	if kind != domain.KindNews && kind != domain.KindAd {
		return "", fmt.Errorf("invalid kind")
	}
	return kind, nil
}

// createSaveHandler saves a subject for the caller, idempotent
func (s *Server) createSaveHandler(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	kind, err := req.validate()
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	save := &domain.Save{UserID: callerID(r), SubjectID: req.SubjectID, Kind: kind}
	if err := s.engagement.CreateSave(r.Context(), save); err != nil {
		log.Printf("[ERROR] failed to create save: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusCreated, map[string]bool{"saved": true})
}

// deleteSaveHandler removes a saved subject for the caller
func (s *Server) deleteSaveHandler(w http.ResponseWriter, r *http.Request) {
	req := saveRequest{
		SubjectID: int64(queryInt(r, "subject_id", 0)),
		Kind:      r.URL.Query().Get("kind"),
	}
	kind, err := req.validate()
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	if err := s.engagement.DeleteSave(r.Context(), callerID(r), req.SubjectID, kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			renderError(w, r, fmt.Errorf("save not found"), http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] failed to delete save: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listSavesHandler serves the caller's saved content, newest save first,
// as fully-shaped enriched items
func (s *Server) listSavesHandler(w http.ResponseWriter, r *http.Request) {
	page, limit := queryInt(r, "page", 1), queryInt(r, "limit", 20)
	items, total, err := s.feed.SavedItems(r.Context(), callerID(r), page, limit)
	if err != nil {
		log.Printf("[ERROR] failed to list saves: %v", err)
		renderError(w, r, fmt.Errorf("internal error"), http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"saves": items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}
