// Package forecast turns the location-major multiforecast feed into the
// time-major slot records and chart series the site consumes.
package forecast

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Entry is one hourly or daily forecast bag as published by the API.
type Entry map[string]any

// Time returns the entry's slot key, or "" when absent.
func (e Entry) Time() string {
	s, _ := e["time"].(string)
	return s
}

// Feature is the forecast of one location.
type Feature struct {
	UpdateTime string     `json:"update_time"`
	Properties Properties `json:"properties"`
}

// Properties holds the per-location series.
type Properties struct {
	Insee    string  `json:"insee"`
	Forecast []Entry `json:"forecast"`
	Daily    []Entry `json:"daily_forecast"`
}

// Feed is the decoded list of features of a multiforecast response.
type Feed []Feature

// ParseFeed decodes a multiforecast response body.
func ParseFeed(body string) (Feed, error) {
	var doc struct {
		Features Feed `json:"features"`
	}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode multiforecast: %w", err)
	}
	return doc.Features, nil
}

// Location is a point of interest of the zone, in page order. LatText and
// LngText hold the coordinates as the page published them.
type Location struct {
	Title   string
	Lat     float64
	Lng     float64
	LatText string
	LngText string
	Code    string
}

// Coords is the location's "lat,lng" term of the forecast query.
func (l Location) Coords() string {
	return coordText(l.LatText, l.Lat) + "," + coordText(l.LngText, l.Lng)
}

// Allow-lists of properties copied into snapshots and chart series.
var (
	HourlyFields = []string{
		"moment_day", "time", "T", "T_windchill", "relative_humidity", "P_sea",
		"wind_speed", "wind_speed_gust", "wind_direction", "wind_icon",
		"weather_icon", "weather_description", "total_cloud_cover",
	}
	DailyFields = []string{
		"T_min", "T_max", "uv_index",
		"relative_humidity_min", "relative_humidity_max",
		"daily_weather_icon", "daily_weather_description",
	}
	SeriesFields = []string{
		"T", "T_min", "T_max", "T_windchill", "P_sea", "total_cloud_cover",
		"relative_humidity", "relative_humidity_min", "relative_humidity_max",
	}
)

// Path is appended to the zone's API root to request forecasts.
const Path = "/multiforecast"

// Params builds the single batched query covering every location.
func Params(locations []Location) url.Values {
	coords := make([]string, len(locations))
	for i, l := range locations {
		coords[i] = l.Coords()
	}
	return url.Values{
		"bbox":       {""},
		"coords":     {strings.Join(coords, "_")},
		"instants":   {"morning,afternoon,evening,night"},
		"begin_time": {""},
		"end_time":   {""},
		"time":       {""},
	}
}

func coordText(text string, f float64) string {
	if text != "" {
		return text
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
