// Package slot parses and formats forecast time-slot keys and defines the
// time-major record shared by the crunching pipeline and the window cache.
package slot

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// KeyLayout is the upstream slot key format. The trailing Z is literal.
const KeyLayout = "2006-01-02T15:04:05.000Z"

// ErrMalformedTimestamp is returned when a slot key does not match KeyLayout.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// regexp.Regexp is safe for concurrent use, so ParseKey needs no lock.
var keyPattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2}):(\d{2})\.000Z$`)

// ParseKey converts a slot key such as 2024-05-10T09:00:00.000Z into a UTC instant.
func ParseKey(key string) (time.Time, error) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, key)
	}
	var f [6]int
	for i := range f {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, key)
		}
		f[i] = n
	}
	t := time.Date(f[0], time.Month(f[1]), f[2], f[3], f[4], f[5], 0, time.UTC)
	// time.Date normalizes out-of-range fields; a real calendar instant formats back to itself.
	if FormatKey(t) != key {
		return time.Time{}, fmt.Errorf("%w: %q is not a calendar instant", ErrMalformedTimestamp, key)
	}
	return t, nil
}

// FormatKey renders t in UTC as a slot key.
func FormatKey(t time.Time) string {
	return t.UTC().Format(KeyLayout)
}

// DatePrefix returns the calendar date part (first 10 characters) of a key.
func DatePrefix(key string) string {
	if len(key) < 10 {
		return key
	}
	return key[:10]
}

// PartOfDay is the coarse label attached to a slot, as emitted upstream.
type PartOfDay string

// Parts of day reported by the forecast API.
const (
	Night     PartOfDay = "nuit"
	Morning   PartOfDay = "matin"
	Afternoon PartOfDay = "après-midi"
	Evening   PartOfDay = "soirée"
)

// Canonical lists the parts of day in display order within a calendar day.
var Canonical = []PartOfDay{Night, Morning, Afternoon, Evening}

// LocalHour is the wall-clock hour at which the part of day is displayed.
func (p PartOfDay) LocalHour() int {
	switch p {
	case Night:
		return 3
	case Morning:
		return 9
	case Afternoon:
		return 15
	case Evening:
		return 21
	default:
		return 0
	}
}

// Snapshot is the per-location bag of forecast properties for one slot.
type Snapshot map[string]any

// Record is one time-major forecast slot for a zone.
type Record struct {
	Key     string     `json:"date_iso"`
	Instant time.Time  `json:"instant"`
	Text    string     `json:"date_txt"`
	Updated string     `json:"updated"`
	Moment  PartOfDay  `json:"moment"`
	POIs    []Snapshot `json:"pois"`
}

// Set maps slot keys to records.
type Set map[string]Record

// Keys returns the slot keys in ascending order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sorted returns the records ordered by key.
func (s Set) Sorted() []Record {
	out := make([]Record, 0, len(s))
	for _, k := range s.Keys() {
		out = append(out, s[k])
	}
	return out
}
