package feed

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Cache keys encode only the shareable request shape, never the caller id.
// Categories are lowercased and sorted so equivalent filters hit the same entry.

func normalizeCategories(categories []string) []string {
	var out []string
	for _, c := range categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || c == "all" { // "all" sentinel means unfiltered
			continue
		}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func top10Key(categories []string, adCount int) string {
	return fmt.Sprintf("news:top10:cat=%s:ads=%d", strings.Join(categories, ","), adCount)
}

func feedKey(sortMode string, typeID int64, categories []string, page, limit int, after *time.Time) string {
	cursor := ""
	if after != nil {
		cursor = after.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("news:feed:sort=%s:type=%d:cat=%s:page=%d:limit=%d:after=%s",
		sortMode, typeID, strings.Join(categories, ","), page, limit, cursor)
}

func bannerKey(limit, adCount int) string {
	return fmt.Sprintf("news:banner:limit=%d:ads=%d", limit, adCount)
}

func topMetricKey(metric string, limit int) string {
	return fmt.Sprintf("news:top:metric=%s:limit=%d", metric, limit)
}

func topWeightedKey(metrics []string, weights []float64, limit int) string {
	parts := make([]string, len(metrics))
	for i, m := range metrics {
		parts[i] = fmt.Sprintf("%s=%.2f", m, weights[i])
	}
	return fmt.Sprintf("news:top:weighted=%s:limit=%d", strings.Join(parts, ","), limit)
}

func newsDetailKey(id int64) string {
	return fmt.Sprintf("news:detail:%d", id)
}

func settingKey(name string) string {
	return "system_settings:" + name
}
