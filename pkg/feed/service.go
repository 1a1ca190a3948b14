package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/clicknbit/newsapi/pkg/cache"
	"github.com/clicknbit/newsapi/pkg/domain"
	"github.com/clicknbit/newsapi/pkg/repository"
)

// ContentStore provides ranked and addressed content rows
type ContentStore interface {
	RankEditorial(ctx context.Context, f repository.EditorialFilter) ([]domain.ContentItem, error)
	ListEditorialByTime(ctx context.Context, f repository.EditorialFilter) ([]domain.ContentItem, error)
	ListEditorialByMetric(ctx context.Context, f repository.EditorialFilter, metric string) ([]domain.ContentItem, error)
	RankEditorialWeighted(ctx context.Context, f repository.EditorialFilter, metrics []string, weights []float64) ([]domain.ContentItem, error)
	GetNews(ctx context.Context, id int64) (*domain.ContentItem, error)
	GetNewsByIDs(ctx context.Context, ids []int64) (map[int64]domain.ContentItem, error)
	GetAdsByIDs(ctx context.Context, ids []int64) (map[int64]domain.ContentItem, error)
	ListActiveAds(ctx context.Context, limit int) ([]domain.ContentItem, error)
}

// EngagementStore provides per-caller enrichment lookups
type EngagementStore interface {
	LikedRefs(ctx context.Context, userID int64, refs []domain.SubjectRef) (map[domain.SubjectRef]bool, error)
	SavedRefs(ctx context.Context, userID int64, refs []domain.SubjectRef) (map[domain.SubjectRef]bool, error)
	ListSaves(ctx context.Context, userID int64, page, limit int) ([]domain.Save, int, error)
}

// OverrideStore provides manual top-rank pins
type OverrideStore interface {
	ListOverrides(ctx context.Context) ([]domain.Override, error)
}

// SettingStore provides system settings
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (*domain.Setting, error)
}

// PreferenceStore provides personalization signal rows
type PreferenceStore interface {
	GetPreference(ctx context.Context, userID int64) (*domain.Preference, error)
}

// Params tunes the feed service
type Params struct {
	MaxLookbackDays         int           // top-list day windows to scan, default 30
	TopListSize             int           // default 10
	AdPoolSize              int           // paid candidates fetched per selection, default 50
	DefaultAdFrequency      int           // fallback when the setting is unreadable, default 5
	DefaultAstonAdFrequency int           // default 3
	TopListTTL              time.Duration // default 60s
	FeedTTL                 time.Duration // default 60s
	BannerTTL               time.Duration // default 300s
	DetailTTL               time.Duration // default 300s
	SettingsTTL             time.Duration // default 300s
}

func (p *Params) setDefaults() {
	if p.MaxLookbackDays <= 0 {
		p.MaxLookbackDays = 30
	}
	if p.TopListSize <= 0 {
		p.TopListSize = 10
	}
	if p.AdPoolSize <= 0 {
		p.AdPoolSize = 50
	}
	if p.DefaultAdFrequency <= 0 {
		p.DefaultAdFrequency = 5
	}
	if p.DefaultAstonAdFrequency <= 0 {
		p.DefaultAstonAdFrequency = 3
	}
	if p.TopListTTL <= 0 {
		p.TopListTTL = time.Minute
	}
	if p.FeedTTL <= 0 {
		p.FeedTTL = time.Minute
	}
	if p.BannerTTL <= 0 {
		p.BannerTTL = 5 * time.Minute
	}
	if p.DetailTTL <= 0 {
		p.DetailTTL = 5 * time.Minute
	}
	if p.SettingsTTL <= 0 {
		p.SettingsTTL = 5 * time.Minute
	}
}

// Service assembles ranked, interleaved, cached content feeds. Cache entries
// hold only globally-shareable payloads; per-caller like/save state is spliced
// in live after every hit or miss.
type Service struct {
	content     ContentStore
	engagement  EngagementStore
	overrides   OverrideStore
	settings    SettingStore
	preferences PreferenceStore
	cache       cache.Store
	params      Params

	now  func() time.Time
	rand func() float64
}

// NewService creates a feed service with explicit dependencies
func NewService(content ContentStore, engagement EngagementStore, overrides OverrideStore,
	settings SettingStore, preferences PreferenceStore, cacheStore cache.Store, params Params) *Service {
	params.setDefaults()
	return &Service{
		content:     content,
		engagement:  engagement,
		overrides:   overrides,
		settings:    settings,
		preferences: preferences,
		cache:       cacheStore,
		params:      params,
		now:         time.Now,
		rand:        rand.Float64,
	}
}

// pagePayload is the cacheable, caller-independent part of a feed response
type pagePayload struct {
	Editorial   []Item `json:"editorial"`
	Paid        []Item `json:"paid,omitempty"`
	DaysScanned int    `json:"days_scanned,omitempty"`
}

// load is the cache-aside core: hit decodes the shared payload, miss computes
// it and writes it back best-effort. Any cache failure degrades to a miss, the
// compute path never fails because of the cache.
func (s *Service) load(ctx context.Context, key string, ttl time.Duration,
	compute func(context.Context) (*pagePayload, error)) (payload *pagePayload, hit bool, err error) {

	if data, gerr := s.cache.Get(ctx, key); gerr == nil {
		var p pagePayload
		jerr := json.Unmarshal(data, &p)
		if jerr == nil {
			return &p, true, nil
		}
		log.Printf("[WARN] undecodable cache entry %s, recomputing: %v", key, jerr)
	}

	payload, err = compute(ctx)
	if err != nil {
		return nil, false, err
	}

	if data, merr := json.Marshal(payload); merr == nil {
		if serr := s.cache.Set(ctx, key, data, ttl); serr != nil {
			log.Printf("[WARN] cache write %s failed: %v", key, serr)
		}
	}
	return payload, false, nil
}

// enrich attaches is_liked/is_saved to a page of items for the caller, one
// batched likes query plus one batched saves query for the whole page.
// Anonymous callers get all-false flags without touching the store.
func (s *Service) enrich(ctx context.Context, items []Item, callerID int64) ([]RankedItem, error) {
	ranked := make([]RankedItem, len(items))
	for i, item := range items {
		ranked[i] = RankedItem{Item: item}
	}
	if callerID == 0 || len(items) == 0 {
		return ranked, nil
	}

	refs := make([]domain.SubjectRef, len(items))
	for i, item := range items {
		refs[i] = item.ref()
	}

	liked, err := s.engagement.LikedRefs(ctx, callerID, refs)
	if err != nil {
		return nil, fmt.Errorf("enrich likes: %w", err)
	}
	saved, err := s.engagement.SavedRefs(ctx, callerID, refs)
	if err != nil {
		return nil, fmt.Errorf("enrich saves: %w", err)
	}

	for i := range ranked {
		ref := ranked[i].ref()
		ranked[i].IsLiked = liked[ref]
		ranked[i].IsSaved = saved[ref]
	}
	return ranked, nil
}

// frequency reads an interleaving frequency setting through the cache. Any
// failure falls back to the compiled-in default, the feed must keep serving.
func (s *Service) frequency(ctx context.Context, name string, def int) int {
	key := settingKey(name)

	if data, err := s.cache.Get(ctx, key); err == nil {
		if v, perr := strconv.Atoi(string(data)); perr == nil && v > 0 {
			return v
		}
	}

	setting, err := s.settings.GetSetting(ctx, name)
	if err != nil {
		log.Printf("[WARN] setting %s unavailable, using default %d: %v", name, def, err)
		return def
	}
	v, err := strconv.Atoi(setting.Value)
	if err != nil || v <= 0 {
		log.Printf("[WARN] setting %s holds %q, using default %d", name, setting.Value, def)
		return def
	}

	if serr := s.cache.Set(ctx, key, []byte(setting.Value), s.params.SettingsTTL); serr != nil {
		log.Printf("[WARN] cache write %s failed: %v", key, serr)
	}
	return v
}

// InvalidateSetting drops the cached copy of one setting, called synchronously
// after a settings write so the next interleave sees the new value
func (s *Service) InvalidateSetting(ctx context.Context, name string) {
	if err := s.cache.Delete(ctx, settingKey(name)); err != nil {
		log.Printf("[WARN] cache invalidate %s failed: %v", name, err)
	}
}

// Top10Request shapes a top-ten listing call
type Top10Request struct {
	Categories []string
	AdCount    int
}

// Top10 serves the composite-ranked top list: manual pins take their positions,
// the rest fills from day-windowed ranking with up to MaxLookbackDays of
// expansion, then paid items spread evenly through the result.
func (s *Service) Top10(ctx context.Context, req Top10Request, callerID int64) (*Response, error) {
	cats := normalizeCategories(req.Categories)
	key := top10Key(cats, req.AdCount)

	payload, hit, err := s.load(ctx, key, s.params.TopListTTL, func(ctx context.Context) (*pagePayload, error) {
		overrides, err := s.overrides.ListOverrides(ctx)
		if err != nil {
			return nil, fmt.Errorf("list overrides: %w", err)
		}

		pinnedIDs := make([]int64, len(overrides))
		for i, o := range overrides {
			pinnedIDs[i] = o.NewsID
		}

		items, days, err := s.fillTopN(ctx, s.params.TopListSize, cats, pinnedIDs, s.params.MaxLookbackDays)
		if err != nil {
			return nil, err
		}

		pinnedRows, err := s.content.GetNewsByIDs(ctx, pinnedIDs)
		if err != nil {
			return nil, fmt.Errorf("resolve pinned items: %w", err)
		}
		pinned := make(map[int64]Item, len(pinnedRows))
		for id, row := range pinnedRows {
			pinned[id] = NewItem(row)
		}

		merged := mergeOverrides(NewItems(items), overrides, pinned, s.params.TopListSize)

		ads, err := s.selectAds(ctx, req.AdCount, nil, false)
		if err != nil {
			return nil, err
		}

		return &pagePayload{Editorial: interleaveEven(merged, ads), DaysScanned: days}, nil
	})
	if err != nil {
		return nil, err
	}

	ranked, err := s.enrich(ctx, payload.Editorial, callerID)
	if err != nil {
		return nil, err
	}
	return &Response{Items: ranked, DaysScanned: payload.DaysScanned, Cached: hit}, nil
}

// feed sort modes: recency, single metrics, or the default composite order
// with optional personalization
const (
	SortDefault  = "default"
	SortTime     = "time"
	SortViews    = "views"
	SortLikes    = "likes"
	SortComments = "comments"
	SortShares   = "shares"
)

// FeedRequest shapes a main-feed call
type FeedRequest struct {
	Sort       string
	TypeID     int64
	Categories []string
	Page       int
	Limit      int
	After      *time.Time
	Geo        *domain.GeoPoint
}

func (r *FeedRequest) normalize() error {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit < 1 {
		r.Limit = 10
	}
	if r.Limit > 50 {
		r.Limit = 50
	}
	if r.Sort == "" { // canonical form, "" and "default" must share a cache key
		r.Sort = SortDefault
	}
	switch r.Sort {
	case SortDefault, SortTime, SortViews, SortLikes, SortComments, SortShares:
		return nil
	default:
		return invalidFilterf("unknown sort mode %q", r.Sort)
	}
}

// Feed serves the main paginated feed. The cached payload holds the global
// editorial and paid streams; the interleaving frequency is re-read through the
// settings cache on every call. For the default sort the editorial stream is
// re-ordered per caller by the personalization scorer, and a geo-supplied
// request re-ranks the paid stream by proximity, both before interleaving.
func (s *Service) Feed(ctx context.Context, req FeedRequest, callerID int64) (*Response, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	cats := normalizeCategories(req.Categories)
	key := feedKey(req.Sort, req.TypeID, cats, req.Page, req.Limit, req.After)

	payload, hit, err := s.load(ctx, key, s.params.FeedTTL, func(ctx context.Context) (*pagePayload, error) {
		filter := repository.EditorialFilter{
			Categories:   cats,
			TypeID:       req.TypeID,
			CreatedAfter: req.After,
			Limit:        req.Limit,
			Offset:       (req.Page - 1) * req.Limit,
		}

		var items []domain.ContentItem
		var err error
		switch req.Sort {
		case SortTime:
			items, err = s.content.ListEditorialByTime(ctx, filter)
		case SortViews, SortLikes, SortComments, SortShares:
			items, err = s.content.ListEditorialByMetric(ctx, filter, req.Sort)
		default:
			items, err = s.content.RankEditorial(ctx, filter)
		}
		if err != nil {
			return nil, fmt.Errorf("rank feed page: %w", err)
		}

		// enough paid candidates for any frequency >= 1
		ads, err := s.selectAds(ctx, req.Limit, nil, false)
		if err != nil {
			return nil, err
		}

		return &pagePayload{Editorial: NewItems(items), Paid: ads}, nil
	})
	if err != nil {
		return nil, err
	}

	adFreq := s.frequency(ctx, domain.SettingAdFrequency, s.params.DefaultAdFrequency)
	astonFreq := s.frequency(ctx, domain.SettingAstonAdFrequency, s.params.DefaultAstonAdFrequency)

	editorial := payload.Editorial
	if req.Sort == SortDefault {
		var prefs *domain.Preference
		if callerID != 0 {
			if prefs, err = s.preferences.GetPreference(ctx, callerID); err != nil {
				return nil, fmt.Errorf("load preferences: %w", err)
			}
		}
		editorial = personalize(editorial, prefs, req.Geo, s.now())
	}

	paid := payload.Paid
	if req.Geo != nil {
		paid = rankPaidByGeo(paid, *req.Geo)
	}

	merged := interleaveEvery(editorial, paid, adFreq)

	ranked, err := s.enrich(ctx, merged, callerID)
	if err != nil {
		return nil, err
	}
	return &Response{
		Items:          ranked,
		Page:           req.Page,
		Limit:          req.Limit,
		AdFrequency:    adFreq,
		AstonFrequency: astonFreq,
		Cached:         hit,
	}, nil
}

// BannerRequest shapes a banner call
type BannerRequest struct {
	Limit   int
	AdCount int
}

// Banner serves featured and breaking items by priority with paid items
// appended at the end. Full-screen ad creatives take the paid slots when the
// pool has any.
func (s *Service) Banner(ctx context.Context, req BannerRequest, callerID int64) (*Response, error) {
	if req.Limit < 1 {
		req.Limit = 5
	}
	key := bannerKey(req.Limit, req.AdCount)

	payload, hit, err := s.load(ctx, key, s.params.BannerTTL, func(ctx context.Context) (*pagePayload, error) {
		items, err := s.content.ListEditorialByMetric(ctx, repository.EditorialFilter{
			FeaturedOrBreaking: true,
			Limit:              req.Limit,
		}, "priority_score")
		if err != nil {
			return nil, fmt.Errorf("rank banner: %w", err)
		}

		ads, err := s.selectAds(ctx, req.AdCount, nil, true)
		if err != nil {
			return nil, err
		}

		return &pagePayload{Editorial: append(NewItems(items), ads...)}, nil
	})
	if err != nil {
		return nil, err
	}

	ranked, err := s.enrich(ctx, payload.Editorial, callerID)
	if err != nil {
		return nil, err
	}
	return &Response{Items: ranked, Cached: hit}, nil
}

// TopByMetric serves items ordered by one whitelisted engagement metric
func (s *Service) TopByMetric(ctx context.Context, metric string, limit int, callerID int64) (*Response, error) {
	if !repository.ValidMetric(metric) {
		return nil, invalidFilterf("unknown metric %q", metric)
	}
	if limit < 1 {
		limit = 10
	}
	key := topMetricKey(metric, limit)

	payload, hit, err := s.load(ctx, key, s.params.TopListTTL, func(ctx context.Context) (*pagePayload, error) {
		items, err := s.content.ListEditorialByMetric(ctx, repository.EditorialFilter{Limit: limit}, metric)
		if err != nil {
			return nil, fmt.Errorf("rank by %s: %w", metric, err)
		}
		return &pagePayload{Editorial: NewItems(items)}, nil
	})
	if err != nil {
		return nil, err
	}

	ranked, err := s.enrich(ctx, payload.Editorial, callerID)
	if err != nil {
		return nil, err
	}
	return &Response{Items: ranked, Cached: hit}, nil
}

// weightSumTolerance bounds how far multi-metric weights may drift from 1.0
const weightSumTolerance = 0.01

// TopByWeightedMetrics serves items ordered by a caller-weighted combination of
// whitelisted metrics. Weights must sum to 1 within tolerance; validation runs
// before any store access.
func (s *Service) TopByWeightedMetrics(ctx context.Context, metrics []string, weights []float64, limit int, callerID int64) (*Response, error) {
	if len(metrics) == 0 || len(metrics) != len(weights) {
		return nil, invalidFilterf("metrics and weights must be non-empty and equal length")
	}
	sum := 0.0
	for i, m := range metrics {
		if !repository.ValidMetric(m) {
			return nil, invalidFilterf("unknown metric %q", m)
		}
		sum += weights[i]
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return nil, invalidFilterf("weights sum to %.2f, expected 1.0", sum)
	}
	if limit < 1 {
		limit = 10
	}
	key := topWeightedKey(metrics, weights, limit)

	payload, hit, err := s.load(ctx, key, s.params.TopListTTL, func(ctx context.Context) (*pagePayload, error) {
		items, err := s.content.RankEditorialWeighted(ctx, repository.EditorialFilter{Limit: limit}, metrics, weights)
		if err != nil {
			return nil, fmt.Errorf("rank weighted: %w", err)
		}
		return &pagePayload{Editorial: NewItems(items)}, nil
	})
	if err != nil {
		return nil, err
	}

	ranked, err := s.enrich(ctx, payload.Editorial, callerID)
	if err != nil {
		return nil, err
	}
	return &Response{Items: ranked, Cached: hit}, nil
}

// NewsDetail serves a single news item through the cache with live enrichment.
// Returns (nil, nil) when the item does not exist.
func (s *Service) NewsDetail(ctx context.Context, id, callerID int64) (*RankedItem, bool, error) {
	key := newsDetailKey(id)

	payload, hit, err := s.load(ctx, key, s.params.DetailTTL, func(ctx context.Context) (*pagePayload, error) {
		item, err := s.content.GetNews(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get news %d: %w", id, err)
		}
		if item == nil {
			return &pagePayload{}, nil
		}
		return &pagePayload{Editorial: []Item{NewItem(*item)}}, nil
	})
	if err != nil {
		return nil, false, err
	}
	if len(payload.Editorial) == 0 {
		return nil, hit, nil
	}

	ranked, err := s.enrich(ctx, payload.Editorial, callerID)
	if err != nil {
		return nil, false, err
	}
	return &ranked[0], hit, nil
}

// SavedItems serves the caller's saved content as full items, newest save
// first. Never cached: the page is caller-specific by definition. Rows whose
// subject has since been deleted are skipped.
func (s *Service) SavedItems(ctx context.Context, callerID int64, page, limit int) ([]RankedItem, int, error) {
	saves, total, err := s.engagement.ListSaves(ctx, callerID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list saves: %w", err)
	}

	var newsIDs, adIDs []int64
	for _, sv := range saves {
		if sv.Kind == domain.KindAd {
			adIDs = append(adIDs, sv.SubjectID)
			continue
		}
		newsIDs = append(newsIDs, sv.SubjectID)
	}

	news, err := s.content.GetNewsByIDs(ctx, newsIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("load saved news: %w", err)
	}
	ads, err := s.content.GetAdsByIDs(ctx, adIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("load saved ads: %w", err)
	}

	items := make([]Item, 0, len(saves))
	for _, sv := range saves {
		source := news
		if sv.Kind == domain.KindAd {
			source = ads
		}
		if row, ok := source[sv.SubjectID]; ok {
			items = append(items, NewItem(row))
		}
	}

	ranked, err := s.enrich(ctx, items, callerID)
	if err != nil {
		return nil, 0, err
	}
	for i := range ranked {
		ranked[i].IsSaved = true
	}
	return ranked, total, nil
}
