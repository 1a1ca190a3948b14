package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clicknbit/newsapi/pkg/domain"
	"github.com/clicknbit/newsapi/pkg/feed"
	"github.com/clicknbit/newsapi/pkg/repository"
)

const testSecret = "test-secret"

type configStub struct{}

func (c *configStub) GetServerConfig() (string, time.Duration) { return ":8080", 30 * time.Second }

// feedStub implements FeedService with configurable functions
type feedStub struct {
	Top10Func       func(ctx context.Context, req feed.Top10Request, callerID int64) (*feed.Response, error)
	FeedFunc        func(ctx context.Context, req feed.FeedRequest, callerID int64) (*feed.Response, error)
	BannerFunc      func(ctx context.Context, req feed.BannerRequest, callerID int64) (*feed.Response, error)
	TopByMetricFunc func(ctx context.Context, metric string, limit int, callerID int64) (*feed.Response, error)
	TopWeightedFunc func(ctx context.Context, metrics []string, weights []float64, limit int, callerID int64) (*feed.Response, error)
	NewsDetailFunc  func(ctx context.Context, id, callerID int64) (*feed.RankedItem, bool, error)
	SavedItemsFunc  func(ctx context.Context, callerID int64, page, limit int) ([]feed.RankedItem, int, error)

	invalidatedSettings []string
}

func (f *feedStub) Top10(ctx context.Context, req feed.Top10Request, callerID int64) (*feed.Response, error) {
	return f.Top10Func(ctx, req, callerID)
}

func (f *feedStub) Feed(ctx context.Context, req feed.FeedRequest, callerID int64) (*feed.Response, error) {
	return f.FeedFunc(ctx, req, callerID)
}

func (f *feedStub) Banner(ctx context.Context, req feed.BannerRequest, callerID int64) (*feed.Response, error) {
	return f.BannerFunc(ctx, req, callerID)
}

func (f *feedStub) TopByMetric(ctx context.Context, metric string, limit int, callerID int64) (*feed.Response, error) {
	return f.TopByMetricFunc(ctx, metric, limit, callerID)
}

func (f *feedStub) TopByWeightedMetrics(ctx context.Context, metrics []string, weights []float64, limit int, callerID int64) (*feed.Response, error) {
	return f.TopWeightedFunc(ctx, metrics, weights, limit, callerID)
}

func (f *feedStub) NewsDetail(ctx context.Context, id, callerID int64) (*feed.RankedItem, bool, error) {
	return f.NewsDetailFunc(ctx, id, callerID)
}

func (f *feedStub) SavedItems(ctx context.Context, callerID int64, page, limit int) ([]feed.RankedItem, int, error) {
	return f.SavedItemsFunc(ctx, callerID, page, limit)
}

func (f *feedStub) InvalidateSetting(_ context.Context, name string) {
	f.invalidatedSettings = append(f.invalidatedSettings, name)
}

// contentStub implements ContentStore with configurable functions
type contentStub struct {
	GetNewsFunc        func(ctx context.Context, id int64) (*domain.ContentItem, error)
	ListNewsFunc       func(ctx context.Context, f repository.NewsListFilter) ([]domain.ContentItem, int, error)
	CreateNewsFunc     func(ctx context.Context, item *domain.ContentItem) error
	UpdateNewsFunc     func(ctx context.Context, id int64, upd repository.NewsUpdate) error
	GetAdFunc          func(ctx context.Context, id int64) (*domain.ContentItem, error)
	ListAdsFunc        func(ctx context.Context, f repository.AdListFilter) ([]domain.ContentItem, int, error)
	CreateAdFunc       func(ctx context.Context, item *domain.ContentItem) error
	DeleteAdFunc       func(ctx context.Context, id int64) error
	ListCategoriesFunc func(ctx context.Context) ([]domain.Category, error)
	CreateCategoryFunc func(ctx context.Context, cat *domain.Category) error
}

func (c *contentStub) GetNews(ctx context.Context, id int64) (*domain.ContentItem, error) {
	return c.GetNewsFunc(ctx, id)
}

func (c *contentStub) ListNews(ctx context.Context, f repository.NewsListFilter) ([]domain.ContentItem, int, error) {
	return c.ListNewsFunc(ctx, f)
}

func (c *contentStub) CreateNews(ctx context.Context, item *domain.ContentItem) error {
	return c.CreateNewsFunc(ctx, item)
}

func (c *contentStub) UpdateNews(ctx context.Context, id int64, upd repository.NewsUpdate) error {
	return c.UpdateNewsFunc(ctx, id, upd)
}

func (c *contentStub) GetAd(ctx context.Context, id int64) (*domain.ContentItem, error) {
	return c.GetAdFunc(ctx, id)
}

func (c *contentStub) ListAds(ctx context.Context, f repository.AdListFilter) ([]domain.ContentItem, int, error) {
	return c.ListAdsFunc(ctx, f)
}

func (c *contentStub) CreateAd(ctx context.Context, item *domain.ContentItem) error {
	return c.CreateAdFunc(ctx, item)
}

func (c *contentStub) DeleteAd(ctx context.Context, id int64) error { return c.DeleteAdFunc(ctx, id) }

func (c *contentStub) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return c.ListCategoriesFunc(ctx)
}

func (c *contentStub) CreateCategory(ctx context.Context, cat *domain.Category) error {
	return c.CreateCategoryFunc(ctx, cat)
}

// engagementStub implements EngagementStore with configurable functions
type engagementStub struct {
	RecordEventFunc        func(ctx context.Context, ev *domain.EngagementEvent) error
	ToggleLikeFunc         func(ctx context.Context, userID, subjectID int64, kind domain.ContentKind) (bool, error)
	ListLikedFunc          func(ctx context.Context, userID int64) ([]repository.LikedSubject, error)
	RecentlyViewedNewsFunc func(ctx context.Context, userID int64, limit int) ([]int64, error)
	CreateCommentFunc      func(ctx context.Context, c *domain.Comment) error
	ListCommentsFunc       func(ctx context.Context, subjectID int64, kind domain.ContentKind, page, limit int) ([]domain.Comment, int, error)
	ListRepliesFunc        func(ctx context.Context, parentID int64, page, limit int) ([]domain.Comment, int, error)
	CreateSaveFunc         func(ctx context.Context, s *domain.Save) error
	DeleteSaveFunc         func(ctx context.Context, userID, subjectID int64, kind domain.ContentKind) error
}

func (e *engagementStub) RecordEvent(ctx context.Context, ev *domain.EngagementEvent) error {
	return e.RecordEventFunc(ctx, ev)
}

func (e *engagementStub) ToggleLike(ctx context.Context, userID, subjectID int64, kind domain.ContentKind) (bool, error) {
	return e.ToggleLikeFunc(ctx, userID, subjectID, kind)
}

func (e *engagementStub) ListLiked(ctx context.Context, userID int64) ([]repository.LikedSubject, error) {
	return e.ListLikedFunc(ctx, userID)
}

func (e *engagementStub) RecentlyViewedNews(ctx context.Context, userID int64, limit int) ([]int64, error) {
	return e.RecentlyViewedNewsFunc(ctx, userID, limit)
}

func (e *engagementStub) CreateComment(ctx context.Context, c *domain.Comment) error {
	return e.CreateCommentFunc(ctx, c)
}

func (e *engagementStub) ListComments(ctx context.Context, subjectID int64, kind domain.ContentKind, page, limit int) ([]domain.Comment, int, error) {
	return e.ListCommentsFunc(ctx, subjectID, kind, page, limit)
}

func (e *engagementStub) ListReplies(ctx context.Context, parentID int64, page, limit int) ([]domain.Comment, int, error) {
	return e.ListRepliesFunc(ctx, parentID, page, limit)
}

func (e *engagementStub) CreateSave(ctx context.Context, s *domain.Save) error {
	return e.CreateSaveFunc(ctx, s)
}

func (e *engagementStub) DeleteSave(ctx context.Context, userID, subjectID int64, kind domain.ContentKind) error {
	return e.DeleteSaveFunc(ctx, userID, subjectID, kind)
}

// preferenceStub implements PreferenceStore with configurable functions
type preferenceStub struct {
	GetPreferenceFunc func(ctx context.Context, userID int64) (*domain.Preference, error)
	ApplyUpdateFunc   func(ctx context.Context, userID int64, upd domain.PreferenceUpdate) (*domain.Preference, error)
}

func (p *preferenceStub) GetPreference(ctx context.Context, userID int64) (*domain.Preference, error) {
	return p.GetPreferenceFunc(ctx, userID)
}

func (p *preferenceStub) ApplyUpdate(ctx context.Context, userID int64, upd domain.PreferenceUpdate) (*domain.Preference, error) {
	return p.ApplyUpdateFunc(ctx, userID, upd)
}

// overrideStub implements OverrideStore with configurable functions
type overrideStub struct {
	ListOverridesFunc func(ctx context.Context) ([]domain.Override, error)
	SetOverrideFunc   func(ctx context.Context, rank int, newsID int64) error
	ClearOverrideFunc func(ctx context.Context, rank int) error
}

func (o *overrideStub) ListOverrides(ctx context.Context) ([]domain.Override, error) {
	return o.ListOverridesFunc(ctx)
}

func (o *overrideStub) SetOverride(ctx context.Context, rank int, newsID int64) error {
	return o.SetOverrideFunc(ctx, rank, newsID)
}

func (o *overrideStub) ClearOverride(ctx context.Context, rank int) error {
	return o.ClearOverrideFunc(ctx, rank)
}

// settingStub implements SettingStore with configurable functions
type settingStub struct {
	GetSettingFunc     func(ctx context.Context, key string) (*domain.Setting, error)
	GetAllSettingsFunc func(ctx context.Context) (map[string]domain.Setting, error)
	SetSettingFunc     func(ctx context.Context, key, value string) error
}

func (s *settingStub) GetSetting(ctx context.Context, key string) (*domain.Setting, error) {
	return s.GetSettingFunc(ctx, key)
}

func (s *settingStub) GetAllSettings(ctx context.Context) (map[string]domain.Setting, error) {
	return s.GetAllSettingsFunc(ctx)
}

func (s *settingStub) SetSetting(ctx context.Context, key, value string) error {
	return s.SetSettingFunc(ctx, key, value)
}

type testDeps struct {
	feed       *feedStub
	content    *contentStub
	engagement *engagementStub
	prefs      *preferenceStub
	overrides  *overrideStub
	settings   *settingStub
}

func testServer(_ *testing.T) (*Server, *testDeps) {
	deps := &testDeps{
		feed:       &feedStub{},
		content:    &contentStub{},
		engagement: &engagementStub{},
		prefs:      &preferenceStub{},
		overrides:  &overrideStub{},
		settings:   &settingStub{},
	}
	srv := New(Deps{
		Config:      &configStub{},
		Feed:        deps.feed,
		Content:     deps.content,
		Engagement:  deps.engagement,
		Preferences: deps.prefs,
		Overrides:   deps.overrides,
		Settings:    deps.settings,
		Secret:      testSecret,
		Version:     "test",
	})
	return srv, deps
}

// signToken issues a test bearer token
func signToken(t *testing.T, uid int64, role string) string {
	t.Helper()
	claims := &Claims{
		UserID: uid,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestServer_Status(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestServer_Top10(t *testing.T) {
	srv, deps := testServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	var gotCaller int64
	var gotReq feed.Top10Request
	deps.feed.Top10Func = func(_ context.Context, req feed.Top10Request, callerID int64) (*feed.Response, error) {
		gotCaller, gotReq = callerID, req
		return &feed.Response{
			Items:       []feed.RankedItem{{Item: feed.Item{ID: 1, Kind: domain.KindNews, Title: "headline"}}},
			DaysScanned: 2,
			Cached:      true,
		}, nil
	}

	t.Run("anonymous caller", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/v1/news/top10?categories=Tech,politics&ads=2")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int64(0), gotCaller)
		assert.Equal(t, []string{"Tech", "politics"}, gotReq.Categories)
		assert.Equal(t, 2, gotReq.AdCount)

		var body feed.Response
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Items, 1)
		assert.Equal(t, "headline", body.Items[0].Title)
		assert.Equal(t, 2, body.DaysScanned)
		assert.True(t, body.Cached)
	})

	t.Run("identified caller", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/news/top10", http.NoBody)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+signToken(t, 42, ""))

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int64(42), gotCaller)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/news/top10", http.NoBody)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer not-a-token")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestServer_Feed(t *testing.T) {
	srv, deps := testServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	t.Run("bad filter becomes 400", func(t *testing.T) {
		deps.feed.FeedFunc = func(_ context.Context, req feed.FeedRequest, _ int64) (*feed.Response, error) {
			return nil, &feed.InvalidFilterError{Reason: fmt.Sprintf("unknown sort mode %q", req.Sort)}
		}

		resp, err := http.Get(ts.URL + "/api/v1/news/feed?sort=bogus")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("request shape passed through", func(t *testing.T) {
		var gotReq feed.FeedRequest
		deps.feed.FeedFunc = func(_ context.Context, req feed.FeedRequest, _ int64) (*feed.Response, error) {
			gotReq = req
			return &feed.Response{Page: req.Page, Limit: req.Limit, AdFrequency: 5, AstonFrequency: 3}, nil
		}

		resp, err := http.Get(ts.URL + "/api/v1/news/feed?sort=time&page=3&limit=7&lat=41.7&lng=44.8")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "time", gotReq.Sort)
		assert.Equal(t, 3, gotReq.Page)
		assert.Equal(t, 7, gotReq.Limit)
		require.NotNil(t, gotReq.Geo)
		assert.InDelta(t, 41.7, gotReq.Geo.Lat, 0.0001)
		assert.InDelta(t, 44.8, gotReq.Geo.Lng, 0.0001)
	})

	t.Run("invalid after cursor", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/v1/news/feed?after=yesterday")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_TopWeighted(t *testing.T) {
	srv, deps := testServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	var gotMetrics []string
	var gotWeights []float64
	deps.feed.TopWeightedFunc = func(_ context.Context, metrics []string, weights []float64, _ int, _ int64) (*feed.Response, error) {
		gotMetrics, gotWeights = metrics, weights
		return &feed.Response{}, nil
	}

	resp, err := http.Get(ts.URL + "/api/v1/news/top-weighted?metrics=views,likes&weights=0.7,0.3")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"views", "likes"}, gotMetrics)
	assert.Equal(t, []float64{0.7, 0.3}, gotWeights)

	t.Run("unparsable weight", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/v1/news/top-weighted?metrics=views&weights=heavy")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_NewsDetail(t *testing.T) {
	srv, deps := testServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	recorded := make(chan *domain.EngagementEvent, 1)
	deps.engagement.RecordEventFunc = func(_ context.Context, ev *domain.EngagementEvent) error {
		recorded <- ev
		return nil
	}

	t.Run("found records a view", func(t *testing.T) {
		deps.feed.NewsDetailFunc = func(_ context.Context, id, _ int64) (*feed.RankedItem, bool, error) {
			return &feed.RankedItem{Item: feed.Item{ID: id, Kind: domain.KindNews}, IsLiked: true}, true, nil
		}

		resp, err := http.Get(ts.URL + "/api/v1/news/7")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var item feed.RankedItem
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&item))
		assert.Equal(t, int64(7), item.ID)
		assert.True(t, item.IsLiked)

		select {
		case ev := <-recorded:
			assert.Equal(t, int64(7), ev.SubjectID)
			assert.Equal(t, domain.EventView, ev.Event)
		case <-time.After(time.Second):
			t.Fatal("view event not recorded")
		}
	})

	t.Run("missing", func(t *testing.T) {
		deps.feed.NewsDetailFunc = func(_ context.Context, _, _ int64) (*feed.RankedItem, bool, error) {
			return nil, false, nil
		}

		resp, err := http.Get(ts.URL + "/api/v1/news/404")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("bad id", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/v1/news/xyz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_RecordEvent(t *testing.T) {
	srv, deps := testServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	var gotEvent *domain.EngagementEvent
	deps.engagement.RecordEventFunc = func(_ context.Context, ev *domain.EngagementEvent) error {
		ev.ID = 99
		gotEvent = ev
		return nil
	}

	t.Run("anonymous event accepted", func(t *testing.T) {
		body := `{"subject_id": 5, "kind": "news", "event": "share", "platform": "android"}`
		resp, err := http.Post(ts.URL+"/api/v1/events", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		require.NotNil(t, gotEvent)
		assert.Equal(t, int64(0), gotEvent.UserID)
		assert.Equal(t, domain.EventShare, gotEvent.Event)
		assert.Equal(t, "android", gotEvent.Platform)
	})

	t.Run("news view carries aston ad view", func(t *testing.T) {
		var events []*domain.EngagementEvent
		deps.engagement.RecordEventFunc = func(_ context.Context, ev *domain.EngagementEvent) error {
			events = append(events, ev)
			return nil
		}

		body := `{"subject_id": 5, "kind": "news", "event": "view", "aston_ad_id": 77}`
		resp, err := http.Post(ts.URL+"/api/v1/events", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		require.Len(t, events, 2)
		assert.Equal(t, domain.KindNews, events[0].Kind)
		assert.Equal(t, int64(77), events[1].SubjectID)
		assert.Equal(t, domain.KindAd, events[1].Kind)
		assert.Equal(t, domain.EventView, events[1].Event)
	})

	t.Run("unknown event rejected", func(t *testing.T) {
		body := `{"subject_id": 5, "kind": "news", "event": "poke"}`
		resp, err := http.Post(ts.URL+"/api/v1/events", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		body := `{"subject_id": 5, "kind": "story", "event": "view"}`
		resp, err := http.Post(ts.URL+"/api/v1/events", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_AuthBoundaries(t *testing.T) {
	srv, deps := testServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	deps.engagement.ToggleLikeFunc = func(_ context.Context, userID, subjectID int64, kind domain.ContentKind) (bool, error) {
		return true, nil
	}
	deps.settings.GetAllSettingsFunc = func(_ context.Context) (map[string]domain.Setting, error) {
		return map[string]domain.Setting{}, nil
	}

	do := func(method, path, token string) *http.Response {
		req, err := http.NewRequest(method, ts.URL+path, http.NoBody)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("user endpoint requires token", func(t *testing.T) {
		resp := do(http.MethodPost, "/api/v1/news/1/like", "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("user endpoint accepts user token", func(t *testing.T) {
		resp := do(http.MethodPost, "/api/v1/news/1/like", signToken(t, 7, ""))
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("admin endpoint rejects plain user", func(t *testing.T) {
		resp := do(http.MethodGet, "/api/v1/settings", signToken(t, 7, ""))
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin endpoint accepts admin", func(t *testing.T) {
		resp := do(http.MethodGet, "/api/v1/settings", signToken(t, 1, "admin"))
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		claims := &Claims{
			UserID: 7,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		resp := do(http.MethodPost, "/api/v1/news/1/like", token)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestServer_Overrides(t *testing.T) {
	srv, deps := testServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	admin := signToken(t, 1, "admin")

	do := func(method, path, body string) *http.Response {
		req, err := http.NewRequest(method, ts.URL+path, bytes.NewBufferString(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+admin)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("set pin", func(t *testing.T) {
		var gotRank int
		var gotNews int64
		deps.overrides.SetOverrideFunc = func(_ context.Context, rank int, newsID int64) error {
			gotRank, gotNews = rank, newsID
			return nil
		}

		resp := do(http.MethodPut, "/api/v1/overrides/3", `{"news_id": 12}`)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 3, gotRank)
		assert.Equal(t, int64(12), gotNews)
	})

	t.Run("rank out of range", func(t *testing.T) {
		deps.overrides.SetOverrideFunc = func(_ context.Context, rank int, _ int64) error {
			return fmt.Errorf("rank %d out of range 1..10", rank)
		}

		resp := do(http.MethodPut, "/api/v1/overrides/11", `{"news_id": 12}`)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("clear missing pin", func(t *testing.T) {
		deps.overrides.ClearOverrideFunc = func(_ context.Context, _ int) error {
			return sql.ErrNoRows
		}

		resp := do(http.MethodDelete, "/api/v1/overrides/4", "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_UpdateSetting(t *testing.T) {
	srv, deps := testServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	admin := signToken(t, 1, "admin")
	stored := map[string]string{}

	deps.settings.SetSettingFunc = func(_ context.Context, key, value string) error {
		stored[key] = value
		return nil
	}
	deps.settings.GetSettingFunc = func(_ context.Context, key string) (*domain.Setting, error) {
		return &domain.Setting{Key: key, Value: stored[key], UpdatedAt: time.Now()}, nil
	}

	do := func(path, body string) *http.Response {
		req, err := http.NewRequest(http.MethodPut, ts.URL+path, bytes.NewBufferString(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+admin)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("frequency change invalidates cached copy", func(t *testing.T) {
		resp := do("/api/v1/settings/ad_frequency", `{"value": "4"}`)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "4", stored["ad_frequency"])
		assert.Equal(t, []string{"ad_frequency"}, deps.feed.invalidatedSettings)
	})

	t.Run("non-numeric frequency rejected", func(t *testing.T) {
		resp := do("/api/v1/settings/aston_ad_frequency", `{"value": "often"}`)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.NotContains(t, stored, "aston_ad_frequency")
	})

	t.Run("zero frequency rejected", func(t *testing.T) {
		resp := do("/api/v1/settings/ad_frequency", `{"value": "0"}`)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_Saves(t *testing.T) {
	srv, deps := testServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	user := signToken(t, 9, "")

	do := func(method, path, body string) *http.Response {
		req, err := http.NewRequest(method, ts.URL+path, bytes.NewBufferString(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+user)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("save for caller", func(t *testing.T) {
		var gotSave *domain.Save
		deps.engagement.CreateSaveFunc = func(_ context.Context, s *domain.Save) error {
			gotSave = s
			return nil
		}

		resp := do(http.MethodPost, "/api/v1/saves", `{"subject_id": 3, "kind": "ad"}`)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		require.NotNil(t, gotSave)
		assert.Equal(t, int64(9), gotSave.UserID)
		assert.Equal(t, domain.KindAd, gotSave.Kind)
	})

	t.Run("delete missing save", func(t *testing.T) {
		deps.engagement.DeleteSaveFunc = func(_ context.Context, _, _ int64, _ domain.ContentKind) error {
			return sql.ErrNoRows
		}

		resp := do(http.MethodDelete, "/api/v1/saves?subject_id=3&kind=news", "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("bad kind rejected", func(t *testing.T) {
		resp := do(http.MethodPost, "/api/v1/saves", `{"subject_id": 3, "kind": "story"}`)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("list returns enriched items", func(t *testing.T) {
		deps.feed.SavedItemsFunc = func(_ context.Context, callerID int64, page, limit int) ([]feed.RankedItem, int, error) {
			assert.Equal(t, int64(9), callerID)
			assert.Equal(t, 1, page)
			assert.Equal(t, 20, limit)
			return []feed.RankedItem{{Item: feed.Item{ID: 3, Kind: domain.KindAd, Title: "ad"}, IsSaved: true}}, 1, nil
		}

		resp := do(http.MethodGet, "/api/v1/saves", "")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Saves []feed.RankedItem `json:"saves"`
			Total int               `json:"total"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, 1, body.Total)
		require.Len(t, body.Saves, 1)
		assert.Equal(t, int64(3), body.Saves[0].ID)
		assert.True(t, body.Saves[0].IsSaved)
	})
}
