package forecast

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/meteo-crawler/internal/slot"
)

const (
	keyA = "2024-05-10T03:00:00.000Z"
	keyB = "2024-05-10T09:00:00.000Z"
	keyC = "2024-05-10T15:00:00.000Z"
	keyD = "2024-05-10T21:00:00.000Z"
)

func hourly(key, moment string, temp float64) Entry {
	return Entry{"time": key, "moment_day": moment, "T": temp, "weather_icon": "p1j", "wind_icon": "NO", "unknown": 1.0}
}

func fixtureFeed() Feed {
	return Feed{
		{
			UpdateTime: "2024-05-10T02:30:00.000Z",
			Properties: Properties{
				Insee: "352380",
				Forecast: []Entry{
					hourly(keyA, "nuit", 11), hourly(keyB, "matin", 14), hourly(keyC, "après-midi", 19),
				},
				Daily: []Entry{
					{"time": "2024-05-10T00:00:00.000Z", "T_min": 9.0, "T_max": 20.0, "uv_index": 5.0, "daily_weather_icon": "p2j", "T": 99.0},
				},
			},
		},
		{
			UpdateTime: "2024-05-10T02:45:00.000Z",
			Properties: Properties{
				Insee: "290190",
				Forecast: []Entry{
					hourly(keyB, "matin", 12), hourly(keyC, "après-midi", 16), hourly(keyD, "soirée", 13),
				},
			},
		},
	}
}

var fixtureLocations = []Location{
	{Title: "Brest", Lat: 48.39, Lng: -4.49, Code: "290190"},
	{Title: "Rennes", Lat: 48.11, Lng: -1.68, Code: "352380"},
	{Title: "Quimper", Lat: 47.99, Lng: -4.1, Code: "292320"},
}

func TestIntersectSlots(t *testing.T) {
	t.Parallel()

	inter := IntersectSlots(fixtureFeed())
	assert.Equal(t, []string{keyB, keyC}, inter.Keys)
	assert.Equal(t, "matin", inter.Moments[keyB])
	assert.Equal(t, "soirée", inter.Moments[keyD])
}

func TestIntersectSlotsOrderIndependent(t *testing.T) {
	t.Parallel()

	feed := fixtureFeed()
	reversed := Feed{feed[1], feed[0]}
	assert.Equal(t, IntersectSlots(feed).Keys, IntersectSlots(reversed).Keys)
	assert.Empty(t, IntersectSlots(nil).Keys)
}

func TestCrunch(t *testing.T) {
	t.Parallel()

	p := NewPipeline(fixtureFeed(), fixtureLocations, slot.Paris())
	set, err := p.Crunch()
	require.NoError(t, err)
	require.Equal(t, []string{keyB, keyC}, set.Keys())

	rec := set[keyB]
	assert.Equal(t, slot.Morning, rec.Moment)
	assert.Equal(t, time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC), rec.Instant)
	assert.Contains(t, rec.Text, "11h")
	// Brest comes first in page order and sets the update time.
	assert.Contains(t, rec.Updated, "04h45")

	require.Len(t, rec.POIs, 2, "a location without a feature contributes nothing")
	brest, rennes := rec.POIs[0], rec.POIs[1]
	assert.Equal(t, "Brest", brest["title"])
	assert.Equal(t, 48.39, brest["lat"])
	assert.Equal(t, 12.0, brest["T"])
	assert.NotContains(t, brest, "unknown")
	assert.NotContains(t, brest, "T_max")

	assert.Equal(t, "Rennes", rennes["title"])
	assert.Equal(t, 14.0, rennes["T"], "daily T is not allow-listed")
	assert.Equal(t, 20.0, rennes["T_max"])
	assert.Equal(t, "p2j", rennes["daily_weather_icon"])
}

func TestCrunchUpdateTimeFallsBackToNextLocation(t *testing.T) {
	t.Parallel()

	feed := fixtureFeed()
	feed[1].UpdateTime = "yesterday"
	set, err := NewPipeline(feed, fixtureLocations, slot.Paris()).Crunch()
	require.NoError(t, err)
	require.Equal(t, []string{keyB, keyC}, set.Keys())
	// Brest's update time is unreadable, so Rennes sets it.
	assert.Contains(t, set[keyB].Updated, "04h30")
	assert.Len(t, set[keyB].POIs, 2)
}

func TestCrunchDropsSlotsWithoutReadableUpdateTime(t *testing.T) {
	t.Parallel()

	feed := fixtureFeed()
	feed[0].UpdateTime = "today"
	feed[1].UpdateTime = "yesterday"
	set, err := NewPipeline(feed, fixtureLocations, slot.Paris()).Crunch()
	require.Error(t, err)
	assert.True(t, errors.Is(err, slot.ErrMalformedTimestamp))
	assert.Empty(t, set)
}

func TestCrunchDropsMalformedKey(t *testing.T) {
	t.Parallel()

	feed := Feed{{
		UpdateTime: "2024-05-10T02:30:00.000Z",
		Properties: Properties{Insee: "1", Forecast: []Entry{
			{"time": "2024-05-10T09:00:00Z", "moment_day": "matin"},
			{"time": keyC, "moment_day": "après-midi"},
		}},
	}}
	set, err := NewPipeline(feed, []Location{{Title: "X", Code: "1"}}, slot.Paris()).Crunch()
	require.Error(t, err)
	assert.Equal(t, []string{keyC}, set.Keys())
}

func TestPipelineCachesIntersection(t *testing.T) {
	t.Parallel()

	feed := fixtureFeed()
	p := NewPipeline(feed, fixtureLocations, slot.Paris())
	first := p.Intersection()
	feed[0].Properties.Forecast = nil
	assert.Equal(t, first.Keys, p.Intersection().Keys)
}

func TestBuildSeries(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	far := "2024-05-20T09:00:00.000Z"
	slots := slot.Set{
		keyC: {Key: keyC, POIs: []slot.Snapshot{{"title": "Brest", "T": 16.0, "P_sea": 0.0}, {"title": "Rennes", "T": 19.0}}},
		keyB: {Key: keyB, POIs: []slot.Snapshot{{"title": "Brest", "T": 12.0, "weather_icon": "p1j"}, {"title": "Nowhere", "T": nil}}},
		far:  {Key: far, POIs: []slot.Snapshot{{"title": "Brest", "T": 30.0}}},
	}

	series := BuildSeries(slots, now)
	require.Len(t, series, len(SeriesFields))

	msB := time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC).UnixMilli()
	msC := time.Date(2024, time.May, 10, 15, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, [][]Point{
		{{msB, 12.0}, {msC, 16.0}},
		{{msC, 19.0}},
	}, series["T"])
	assert.Equal(t, [][]Point{{}, {}}, series["P_sea"], "zero values are omitted")
	assert.NotContains(t, series, "weather_icon")
}

func TestBuildSeriesEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, BuildSeries(slot.Set{}, time.Now()))
}

func TestPictos(t *testing.T) {
	t.Parallel()

	feed := fixtureFeed()
	feed[1].Properties.Daily = []Entry{{"time": "2024-05-11", "uv_index": nil, "daily_weather_icon": nil}}
	assert.Equal(t, []string{"NO.svg", "UV_5.svg", "p1j.svg", "p2j.svg"}, Pictos(feed))
}

func TestParams(t *testing.T) {
	t.Parallel()

	p := Params(fixtureLocations[:2])
	assert.Equal(t, "48.39,-4.49_48.11,-1.68", p.Get("coords"))
	assert.Equal(t, "morning,afternoon,evening,night", p.Get("instants"))
	for _, k := range []string{"bbox", "begin_time", "end_time", "time"} {
		assert.Contains(t, p, k)
		assert.Equal(t, "", p.Get(k))
	}
}

func TestParamsKeepPublishedCoordinates(t *testing.T) {
	t.Parallel()

	locs := []Location{
		{Title: "Paris", Lat: 48.85, Lng: 2.35, LatText: "48.8500", LngText: "2.3500", Code: "750560"},
		{Title: "Brest", Lat: 48.39, Lng: -4.49, LngText: "-4.490", Code: "290190"},
	}
	assert.Equal(t, "48.8500,2.3500_48.39,-4.490", Params(locs).Get("coords"))
}

func TestParseFeed(t *testing.T) {
	t.Parallel()

	feed, err := ParseFeed(`{"type": "FeatureCollection", "features": [
	  {"update_time": "2024-05-10T02:30:00.000Z", "properties": {"insee": "352380",
	    "forecast": [{"time": "2024-05-10T09:00:00.000Z", "T": 14}], "daily_forecast": []}}]}`)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "352380", feed[0].Properties.Insee)
	assert.Equal(t, 14.0, feed[0].Properties.Forecast[0]["T"])

	_, err = ParseFeed("<html>")
	assert.Error(t, err)
}
