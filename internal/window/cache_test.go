package window

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/meteo-crawler/internal/slot"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// May 10 2024, 14:00 in Paris (CEST, UTC+2).
var summerNoon = time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)

func newCache(fs afero.Fs, now time.Time) *Cache {
	return New("REGIN10", Options{Fs: fs, Dir: "cache", Now: fixedClock(now), Location: slot.Paris()})
}

func rec(key string, temp float64) slot.Record {
	return slot.Record{Key: key, Updated: "ven. 10/05 04h45", POIs: []slot.Snapshot{{"title": "Rennes", "T": temp}}}
}

func TestOpenWithoutFileAddsPlaceholders(t *testing.T) {
	t.Parallel()

	c := newCache(afero.NewMemMapFs(), summerNoon)
	require.NoError(t, c.Open())

	slots := c.Slots()
	assert.Equal(t, []string{
		"2024-05-09T01:00:00.000Z",
		"2024-05-09T07:00:00.000Z",
		"2024-05-09T13:00:00.000Z",
		"2024-05-09T19:00:00.000Z",
		"2024-05-10T01:00:00.000Z",
		"2024-05-10T07:00:00.000Z",
		"2024-05-10T13:00:00.000Z",
		"2024-05-10T19:00:00.000Z",
	}, slots.Keys())
	for _, r := range slots {
		assert.Empty(t, r.POIs)
		assert.NotNil(t, r.POIs)
		assert.Empty(t, r.Updated)
	}
	assert.Equal(t, slot.Morning, slots["2024-05-10T07:00:00.000Z"].Moment)
	assert.Contains(t, slots["2024-05-10T07:00:00.000Z"].Text, "09h")
}

func TestOpenPlaceholdersFollowWinterOffset(t *testing.T) {
	t.Parallel()

	c := newCache(afero.NewMemMapFs(), time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC))
	require.NoError(t, c.Open())
	assert.Contains(t, c.Slots(), "2024-01-15T08:00:00.000Z")
	assert.Contains(t, c.Slots(), "2024-01-14T02:00:00.000Z")
}

func TestTodayIsTakenInParis(t *testing.T) {
	t.Parallel()

	// 23:30 UTC on May 10 is already May 11 in Paris.
	c := newCache(afero.NewMemMapFs(), time.Date(2024, time.May, 10, 23, 30, 0, 0, time.UTC))
	require.NoError(t, c.Open())
	assert.Contains(t, c.Slots(), "2024-05-11T19:00:00.000Z")
	assert.NotContains(t, c.Slots(), "2024-05-09T19:00:00.000Z")

	lower, upper := c.Bounds()
	assert.Equal(t, "2024-05-10T05:00:00+00:00", lower)
	assert.Equal(t, "2024-05-12T05:00:00+00:00", upper)
}

func TestOpenKeepsPersistedRecords(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	existing := slot.Set{"2024-05-10T07:00:00.000Z": rec("2024-05-10T07:00:00.000Z", 14)}
	data, err := json.Marshal(existing)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "cache/REGIN10-cache.json", data, 0o644))

	c := newCache(fs, summerNoon)
	require.NoError(t, c.Open())
	got := c.Slots()
	assert.Len(t, got, 8)
	require.Len(t, got["2024-05-10T07:00:00.000Z"].POIs, 1)
	assert.Equal(t, 14.0, got["2024-05-10T07:00:00.000Z"].POIs[0]["T"])
}

func TestUpdateBoundsAndPrecedence(t *testing.T) {
	t.Parallel()

	c := newCache(afero.NewMemMapFs(), summerNoon)
	require.NoError(t, c.Open())

	const (
		tooOld   = "2024-05-08T19:00:00.000Z"
		atLower  = "2024-05-09T05:00:00.000Z"
		current  = "2024-05-10T13:00:00.000Z"
		atUpper  = "2024-05-11T05:00:00.000Z"
		tomorrow = "2024-05-11T07:00:00.000Z"
	)
	c.slots[tooOld] = rec(tooOld, 1)
	c.slots[atLower] = rec(atLower, 2)
	c.slots[tomorrow] = rec(tomorrow, 3)

	fresh := slot.Set{
		current: rec(current, 20),
		atUpper: rec(atUpper, 21),
	}
	c.Update(fresh)

	kept := c.Slots()
	assert.NotContains(t, kept, tooOld)
	assert.NotContains(t, kept, "2024-05-09T01:00:00.000Z", "yesterday night is before the lower bound")
	assert.Contains(t, kept, atLower)
	assert.NotContains(t, kept, tomorrow, "cached slots past the upper bound are pruned")
	assert.NotContains(t, kept, atUpper, "keys at the upper bound compare after it")
	assert.Equal(t, 20.0, kept[current].POIs[0]["T"], "fresh wins over the placeholder")

	// fresh is completed with the window but keeps its own future slots.
	assert.Contains(t, fresh, atUpper)
	assert.Contains(t, fresh, atLower)
	assert.Contains(t, fresh, "2024-05-09T07:00:00.000Z")
	assert.Equal(t, 20.0, fresh[current].POIs[0]["T"])
}

func TestUpdateIsIdempotent(t *testing.T) {
	t.Parallel()

	c := newCache(afero.NewMemMapFs(), summerNoon)
	require.NoError(t, c.Open())

	first := slot.Set{"2024-05-10T13:00:00.000Z": rec("2024-05-10T13:00:00.000Z", 20)}
	c.Update(first)
	afterFirst := c.Slots()

	second := slot.Set{"2024-05-10T13:00:00.000Z": rec("2024-05-10T13:00:00.000Z", 20)}
	c.Update(second)
	assert.Equal(t, afterFirst, c.Slots())
	assert.Equal(t, first, second)
}

func TestCloseRoundTrip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	c := newCache(fs, summerNoon)
	require.NoError(t, c.Open())
	c.Update(slot.Set{"2024-05-10T13:00:00.000Z": rec("2024-05-10T13:00:00.000Z", 20)})
	require.NoError(t, c.Close())

	exists, err := afero.Exists(fs, "cache/REGIN10-cache.json")
	require.NoError(t, err)
	require.True(t, exists)

	reopened := newCache(fs, summerNoon)
	require.NoError(t, reopened.Open())
	before := c.Slots()
	after := reopened.Slots()
	// yesterday night was pruned by Update and comes back as a placeholder.
	assert.Len(t, after, len(before)+1)
	for key, r := range before {
		require.Contains(t, after, key)
		assert.True(t, r.Instant.Equal(after[key].Instant))
		assert.Equal(t, r.POIs, after[key].POIs)
		assert.Equal(t, r.Updated, after[key].Updated)
	}
}

func TestOpenDiscardsCorruptFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "cache/REGIN10-cache.json", []byte("{"), 0o644))
	c := newCache(fs, summerNoon)
	require.NoError(t, c.Open())
	assert.Len(t, c.Slots(), 8)
}
