package feed

import "github.com/clicknbit/newsapi/pkg/domain"

// mergeOverrides builds the final top list position by position: a pinned item
// claims its rank outright, every other position takes the next unconsumed item
// from the algorithmic stream. A pin does not consume a stream item, so the
// displaced item shifts to the next open slot. Unresolvable pins (item since
// deleted) fall back to the stream.
func mergeOverrides(stream []Item, overrides []domain.Override, pinned map[int64]Item, size int) []Item {
	byRank := make(map[int]Item, len(overrides))
	for _, o := range overrides {
		if item, ok := pinned[o.NewsID]; ok {
			byRank[o.Rank] = item
		}
	}

	result := make([]Item, 0, size)
	next := 0
	for rank := 1; rank <= size; rank++ {
		if item, ok := byRank[rank]; ok {
			result = append(result, item)
			continue
		}
		if next >= len(stream) {
			// stream exhausted, remaining non-pinned positions stay empty
			continue
		}
		result = append(result, stream[next])
		next++
	}
	return result
}
