package domain

import "time"

// ContentKind distinguishes editorial news from paid advertisements
type ContentKind string

// content kinds
const (
	KindNews ContentKind = "news"
	KindAd   ContentKind = "ad"
)

// GeoPoint is a WGS84 coordinate
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EngagementCounts holds aggregated engagement counters for a content item.
// Counters are derived from engagement events at read time, never stored on the item.
type EngagementCounts struct {
	Views    int64 `json:"view_count"`
	Likes    int64 `json:"like_count"`
	Comments int64 `json:"comment_count"`
	Shares   int64 `json:"share_count"`
}

// ContentItem is a unit of displayable content, either editorial (news) or paid (ad)
type ContentItem struct {
	ID                   int64
	Kind                 ContentKind
	TypeID               int64
	Title                string
	ShortDescription     string
	LongDescription      string
	ContentURL           string
	VerticalContentURL   string
	SquareContentURL     string
	CompressedContentURL string
	RedirectURL          string
	Category             string
	Tags                 []string
	AreaNames            []string
	Active               bool
	Featured             bool
	Breaking             bool
	Fullscreen           bool // ads only: full-screen interstitial creative
	PriorityScore        float64
	Geo                  *GeoPoint
	RadiusKm             float64
	CreatedAt            time.Time
	UpdatedAt            time.Time
	RelevanceExpiresAt   *time.Time
	ExpiresAt            *time.Time

	Counts EngagementCounts
}

// CompositeScore is the primary editorial ranking score, a weighted sum of
// engagement counters and the operator-assigned priority. Matches the ordering
// expression used by the ranking queries.
func (c *ContentItem) CompositeScore() float64 {
	return float64(c.Counts.Views)*0.4 +
		float64(c.Counts.Likes)*0.3 +
		float64(c.Counts.Comments)*0.2 +
		float64(c.Counts.Shares)*0.1 +
		c.PriorityScore*0.5
}

// Category represents a content category label
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}
