package forecast

import (
	"sort"
	"strconv"
)

var iconFields = []string{"daily_weather_icon", "weather_icon", "wind_icon"}

// Pictos lists the unique pictogram file names referenced by the feed,
// including UV_<index> icons, sorted.
func Pictos(feed Feed) []string {
	seen := make(map[string]struct{})
	for _, feat := range feed {
		entries := append(append([]Entry(nil), feat.Properties.Daily...), feat.Properties.Forecast...)
		for _, e := range entries {
			for _, f := range iconFields {
				if name, ok := e[f].(string); ok && name != "" {
					seen[name+".svg"] = struct{}{}
				}
			}
			if uv, ok := e["uv_index"]; ok && uv != nil {
				seen["UV_"+uvLabel(uv)+".svg"] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func uvLabel(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return "unknown"
	}
}
