package feed

import "math"

// interleaveEven merges paid items into the editorial stream at evenly
// distributed positions: paid item k lands after roughly (k+1)*|editorial|/|paid|
// editorial items, via a running interval accumulator rounded to the nearest
// slot. Editorial order and paid order are both preserved.
func interleaveEven(editorial, paid []Item) []Item {
	if len(paid) == 0 {
		return editorial
	}
	if len(editorial) == 0 {
		return paid
	}

	interval := float64(len(editorial)) / float64(len(paid))
	acc := interval
	next := 0

	result := make([]Item, 0, len(editorial)+len(paid))
	for i, item := range editorial {
		result = append(result, item)
		for next < len(paid) && int(math.Round(acc)) <= i+1 {
			result = append(result, paid[next])
			next++
			acc += interval
		}
	}
	// rounding can leave trailing paid items past the last editorial slot
	result = append(result, paid[next:]...)
	return result
}

// interleaveEvery emits one paid item after every `frequency` consecutive
// editorial items. Once the paid stream runs out the remaining editorial items
// pass through untouched; frequency < 1 disables interleaving.
func interleaveEvery(editorial, paid []Item, frequency int) []Item {
	if len(paid) == 0 || frequency < 1 {
		return editorial
	}

	result := make([]Item, 0, len(editorial)+len(paid))
	next := 0
	for i, item := range editorial {
		result = append(result, item)
		if (i+1)%frequency == 0 && next < len(paid) {
			result = append(result, paid[next])
			next++
		}
	}
	return result
}
