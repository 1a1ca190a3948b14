package domain

import "time"

// EventKind is the type of an engagement event
type EventKind string

// engagement event kinds
const (
	EventView    EventKind = "view"
	EventLike    EventKind = "like"
	EventComment EventKind = "comment"
	EventShare   EventKind = "share"
	EventClick   EventKind = "click"
)

// EngagementEvent is an immutable engagement fact. Events are append-only;
// the only deletion is the compensating removal of a like on unlike.
type EngagementEvent struct {
	ID        int64
	SubjectID int64
	Kind      ContentKind // subject kind, news or ad
	UserID    int64       // 0 for anonymous
	Event     EventKind
	CreatedAt time.Time

	// event-specific payload
	DurationSeconds int
	DeviceType      string
	Platform        string
	Geo             *GeoPoint
}

// SubjectRef identifies a content item by id and kind, the composite key used
// for per-user enrichment lookups over mixed news/ad pages
type SubjectRef struct {
	ID   int64
	Kind ContentKind
}

// Comment is a threaded comment on a content item
type Comment struct {
	ID         int64
	SubjectID  int64
	Kind       ContentKind
	UserID     int64
	ParentID   *int64
	Content    string
	CreatedAt  time.Time
	ReplyCount int64
}

// Save marks a content item as saved by a user
type Save struct {
	ID        int64
	UserID    int64
	SubjectID int64
	Kind      ContentKind
	CreatedAt time.Time
}
