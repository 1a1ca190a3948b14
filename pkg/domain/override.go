package domain

import "time"

// override rank bounds
const (
	MinOverrideRank = 1
	MaxOverrideRank = 10
)

// Override pins a content item at a specific top-list rank, taking precedence
// over computed ranking at that position. At most one entry per rank.
type Override struct {
	Rank      int
	NewsID    int64
	UpdatedAt time.Time
}
