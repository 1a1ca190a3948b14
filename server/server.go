package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/clicknbit/newsapi/pkg/domain"
	"github.com/clicknbit/newsapi/pkg/feed"
	"github.com/clicknbit/newsapi/pkg/repository"
)

// Server represents HTTP server instance
type Server struct {
	config      ConfigProvider
	feed        FeedService
	content     ContentStore
	engagement  EngagementStore
	preferences PreferenceStore
	overrides   OverrideStore
	settings    SettingStore
	secret      []byte
	version     string
	debug       bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// FeedService assembles cached, interleaved content listings
type FeedService interface {
	Top10(ctx context.Context, req feed.Top10Request, callerID int64) (*feed.Response, error)
	Feed(ctx context.Context, req feed.FeedRequest, callerID int64) (*feed.Response, error)
	Banner(ctx context.Context, req feed.BannerRequest, callerID int64) (*feed.Response, error)
	TopByMetric(ctx context.Context, metric string, limit int, callerID int64) (*feed.Response, error)
	TopByWeightedMetrics(ctx context.Context, metrics []string, weights []float64, limit int, callerID int64) (*feed.Response, error)
	NewsDetail(ctx context.Context, id, callerID int64) (*feed.RankedItem, bool, error)
	SavedItems(ctx context.Context, callerID int64, page, limit int) ([]feed.RankedItem, int, error)
	InvalidateSetting(ctx context.Context, name string)
}

// ContentStore provides content management operations
type ContentStore interface {
	GetNews(ctx context.Context, id int64) (*domain.ContentItem, error)
	ListNews(ctx context.Context, f repository.NewsListFilter) ([]domain.ContentItem, int, error)
	CreateNews(ctx context.Context, item *domain.ContentItem) error
	UpdateNews(ctx context.Context, id int64, upd repository.NewsUpdate) error
	GetAd(ctx context.Context, id int64) (*domain.ContentItem, error)
	ListAds(ctx context.Context, f repository.AdListFilter) ([]domain.ContentItem, int, error)
	CreateAd(ctx context.Context, item *domain.ContentItem) error
	DeleteAd(ctx context.Context, id int64) error
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, cat *domain.Category) error
}

// EngagementStore provides engagement and save operations
type EngagementStore interface {
	RecordEvent(ctx context.Context, ev *domain.EngagementEvent) error
	ToggleLike(ctx context.Context, userID, subjectID int64, kind domain.ContentKind) (bool, error)
	ListLiked(ctx context.Context, userID int64) ([]repository.LikedSubject, error)
	RecentlyViewedNews(ctx context.Context, userID int64, limit int) ([]int64, error)
	CreateComment(ctx context.Context, c *domain.Comment) error
	ListComments(ctx context.Context, subjectID int64, kind domain.ContentKind, page, limit int) ([]domain.Comment, int, error)
	ListReplies(ctx context.Context, parentID int64, page, limit int) ([]domain.Comment, int, error)
	CreateSave(ctx context.Context, s *domain.Save) error
	DeleteSave(ctx context.Context, userID, subjectID int64, kind domain.ContentKind) error
}

// PreferenceStore provides personalization profile operations
type PreferenceStore interface {
	GetPreference(ctx context.Context, userID int64) (*domain.Preference, error)
	ApplyUpdate(ctx context.Context, userID int64, upd domain.PreferenceUpdate) (*domain.Preference, error)
}

// OverrideStore provides manual top-rank pin operations
type OverrideStore interface {
	ListOverrides(ctx context.Context) ([]domain.Override, error)
	SetOverride(ctx context.Context, rank int, newsID int64) error
	ClearOverride(ctx context.Context, rank int) error
}

// SettingStore provides system settings operations
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (*domain.Setting, error)
	GetAllSettings(ctx context.Context) (map[string]domain.Setting, error)
	SetSetting(ctx context.Context, key, value string) error
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// Deps bundles the server dependencies
type Deps struct {
	Config      ConfigProvider
	Feed        FeedService
	Content     ContentStore
	Engagement  EngagementStore
	Preferences PreferenceStore
	Overrides   OverrideStore
	Settings    SettingStore
	Secret      string
	Version     string
	Debug       bool
}

// New initializes a new server instance
func New(d Deps) *Server {
	s := &Server{
		config:      d.Config,
		feed:        d.Feed,
		content:     d.Content,
		engagement:  d.Engagement,
		preferences: d.Preferences,
		overrides:   d.Overrides,
		settings:    d.Settings,
		secret:      []byte(d.Secret),
		version:     d.Version,
		debug:       d.Debug,
		router:      routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("newsapi", "clicknbit", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)

		// public listing endpoints, caller identity optional
		r.Group().Route(func(pub *routegroup.Bundle) {
			pub.Use(s.withCaller)
			pub.HandleFunc("GET /news", s.listNewsHandler)
			pub.HandleFunc("GET /news/top10", s.top10Handler)
			pub.HandleFunc("GET /news/feed", s.feedHandler)
			pub.HandleFunc("GET /news/banner", s.bannerHandler)
			pub.HandleFunc("GET /news/top/{metric}", s.topByMetricHandler)
			pub.HandleFunc("GET /news/top-weighted", s.topWeightedHandler)
			pub.HandleFunc("GET /news/{id}", s.newsDetailHandler)
			pub.HandleFunc("GET /news/{id}/comments", s.listCommentsHandler)
			pub.HandleFunc("GET /comments/{id}/replies", s.listRepliesHandler)
			pub.HandleFunc("GET /categories", s.listCategoriesHandler)
			pub.HandleFunc("POST /events", s.recordEventHandler)
		})

		// endpoints requiring an authenticated user
		r.Group().Route(func(usr *routegroup.Bundle) {
			usr.Use(s.requireUser)
			usr.HandleFunc("POST /news/{id}/like", s.likeNewsHandler)
			usr.HandleFunc("POST /ads/{id}/like", s.likeAdHandler)
			usr.HandleFunc("POST /news/{id}/comments", s.createCommentHandler)
			usr.HandleFunc("GET /likes", s.listLikedHandler)
			usr.HandleFunc("GET /viewed", s.listViewedHandler)
			usr.HandleFunc("POST /saves", s.createSaveHandler)
			usr.HandleFunc("DELETE /saves", s.deleteSaveHandler)
			usr.HandleFunc("GET /saves", s.listSavesHandler)
			usr.HandleFunc("GET /preferences", s.getPreferencesHandler)
			usr.HandleFunc("PATCH /preferences", s.updatePreferencesHandler)
		})

		// management endpoints
		r.Group().Route(func(adm *routegroup.Bundle) {
			adm.Use(s.requireAdmin)
			adm.HandleFunc("POST /news", s.createNewsHandler)
			adm.HandleFunc("PATCH /news/{id}", s.updateNewsHandler)
			adm.HandleFunc("GET /ads", s.listAdsHandler)
			adm.HandleFunc("POST /ads", s.createAdHandler)
			adm.HandleFunc("DELETE /ads/{id}", s.deleteAdHandler)
			adm.HandleFunc("GET /overrides", s.listOverridesHandler)
			adm.HandleFunc("PUT /overrides/{rank}", s.setOverrideHandler)
			adm.HandleFunc("DELETE /overrides/{rank}", s.clearOverrideHandler)
			adm.HandleFunc("GET /settings", s.listSettingsHandler)
			adm.HandleFunc("PUT /settings/{key}", s.updateSettingHandler)
			adm.HandleFunc("POST /categories", s.createCategoryHandler)
		})
	})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
