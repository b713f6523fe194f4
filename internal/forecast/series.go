package forecast

import (
	"time"

	"github.com/JakeFAU/meteo-crawler/internal/slot"
)

// SeriesHorizon bounds how far ahead chart series reach.
const SeriesHorizon = 10 * 24 * time.Hour

// Point is a [epoch millis, value] pair, the shape chart libraries expect.
type Point [2]any

// Series maps a metric name to one point list per location.
type Series map[string][][]Point

// BuildSeries flattens slots into per-metric, per-location time series with
// points in ascending time. Slots beyond SeriesHorizon from now are skipped,
// as are falsy values. Locations appear in order of first appearance; a
// location that has any value gets a list, possibly empty, under every metric.
func BuildSeries(slots slot.Set, now time.Time) Series {
	var order []string
	byLocation := make(map[string]map[string][]Point)

	for _, key := range slots.Keys() {
		instant, err := slot.ParseKey(key)
		if err != nil || instant.Sub(now) >= SeriesHorizon {
			continue
		}
		ms := instant.UnixMilli()
		for _, snap := range slots[key].POIs {
			title, _ := snap["title"].(string)
			for _, metric := range SeriesFields {
				v, ok := snap[metric]
				if !ok || !truthy(v) {
					continue
				}
				metrics, seen := byLocation[title]
				if !seen {
					metrics = make(map[string][]Point, len(SeriesFields))
					byLocation[title] = metrics
					order = append(order, title)
				}
				metrics[metric] = append(metrics[metric], Point{ms, v})
			}
		}
	}

	out := make(Series, len(SeriesFields))
	if len(order) == 0 {
		return out
	}
	for _, metric := range SeriesFields {
		lists := make([][]Point, 0, len(order))
		for _, title := range order {
			points := byLocation[title][metric]
			if points == nil {
				points = []Point{}
			}
			lists = append(lists, points)
		}
		out[metric] = lists
	}
	return out
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
