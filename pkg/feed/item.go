package feed

import (
	"time"

	"github.com/clicknbit/newsapi/pkg/domain"
)

// Item is the wire shape of one feed entry. It carries only globally-true
// fields so serialized pages can be shared between callers; per-caller state
// lives on RankedItem.
type Item struct {
	ID                   int64                   `json:"id"`
	Kind                 domain.ContentKind      `json:"kind"`
	TypeID               int64                   `json:"type_id,omitempty"`
	Title                string                  `json:"title"`
	ShortDescription     string                  `json:"short_description,omitempty"`
	LongDescription      string                  `json:"long_description,omitempty"`
	ContentURL           string                  `json:"content_url"`
	VerticalContentURL   string                  `json:"vertical_content_url,omitempty"`
	SquareContentURL     string                  `json:"square_content_url,omitempty"`
	CompressedContentURL string                  `json:"compressed_content_url,omitempty"`
	RedirectURL          string                  `json:"redirect_url,omitempty"`
	Category             string                  `json:"category,omitempty"`
	Tags                 []string                `json:"tags,omitempty"`
	AreaNames            []string                `json:"area_names,omitempty"`
	Featured             bool                    `json:"is_featured"`
	Breaking             bool                    `json:"is_breaking"`
	Fullscreen           bool                    `json:"fullscreen,omitempty"`
	PriorityScore        float64                 `json:"priority_score"`
	Geo                  *domain.GeoPoint        `json:"geo,omitempty"`
	CreatedAt            time.Time               `json:"created_at"`
	Counts               domain.EngagementCounts `json:"counts"`
}

// RankedItem is an Item plus the caller-specific enrichment fields. Never
// cached, always derived live.
type RankedItem struct {
	Item
	IsLiked bool `json:"is_liked"`
	IsSaved bool `json:"is_saved"`
}

// Response is the result of one feed-producing operation
type Response struct {
	Items          []RankedItem `json:"items"`
	Page           int          `json:"page,omitempty"`
	Limit          int          `json:"limit,omitempty"`
	DaysScanned    int          `json:"days_scanned,omitempty"`
	AdFrequency    int          `json:"ad_frequency,omitempty"`
	AstonFrequency int          `json:"aston_ad_frequency,omitempty"`
	Cached         bool         `json:"cached"`
}

// NewItem converts a stored content row into its response shape
func NewItem(c domain.ContentItem) Item {
	return Item{
		ID:                   c.ID,
		Kind:                 c.Kind,
		TypeID:               c.TypeID,
		Title:                c.Title,
		ShortDescription:     c.ShortDescription,
		LongDescription:      c.LongDescription,
		ContentURL:           c.ContentURL,
		VerticalContentURL:   c.VerticalContentURL,
		SquareContentURL:     c.SquareContentURL,
		CompressedContentURL: c.CompressedContentURL,
		RedirectURL:          c.RedirectURL,
		Category:             c.Category,
		Tags:                 c.Tags,
		AreaNames:            c.AreaNames,
		Featured:             c.Featured,
		Breaking:             c.Breaking,
		Fullscreen:           c.Fullscreen,
		PriorityScore:        c.PriorityScore,
		Geo:                  c.Geo,
		CreatedAt:            c.CreatedAt,
		Counts:               c.Counts,
	}
}

// NewItems converts a batch of content rows, preserving order
func NewItems(items []domain.ContentItem) []Item {
	res := make([]Item, len(items))
	for i, c := range items {
		res[i] = NewItem(c)
	}
	return res
}

func (i Item) ref() domain.SubjectRef {
	return domain.SubjectRef{ID: i.ID, Kind: i.Kind}
}
