// Package window keeps, per zone, the forecast slots of a rolling two-day
// window so that pages still show the recent past after upstream drops it.
package window

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/meteo-crawler/internal/slot"
)

const (
	fileSuffix = "-cache.json"
	boundHour  = 5
)

// Options configures a Cache.
type Options struct {
	Fs       afero.Fs
	Dir      string
	Now      func() time.Time
	Location *time.Location
	Logger   *zap.Logger
}

// Cache is the window of one zone. It is not safe for concurrent use; each
// zone task owns its own Cache.
type Cache struct {
	id     string
	fs     afero.Fs
	path   string
	now    func() time.Time
	loc    *time.Location
	logger *zap.Logger

	slots slot.Set
}

// New builds the cache of zone id. Nothing is read until Open.
func New(id string, opts Options) *Cache {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = slot.Paris()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		id:     id,
		fs:     fs,
		path:   filepath.Join(opts.Dir, id+fileSuffix),
		now:    now,
		loc:    loc,
		logger: logger.Named("window").With(zap.String("zone", id)),
		slots:  make(slot.Set),
	}
}

// Open loads the persisted window, then adds an empty placeholder for each
// part of day of yesterday and today that is not already present.
func (c *Cache) Open() error {
	loaded, err := c.load()
	if err != nil {
		return err
	}
	c.slots = loaded

	y, m, d := c.now().In(c.loc).Date()
	added := 0
	for _, offset := range []int{-1, 0} {
		for _, part := range slot.Canonical {
			local := time.Date(y, m, d+offset, part.LocalHour(), 0, 0, 0, c.loc)
			key := slot.FormatKey(local)
			if _, ok := c.slots[key]; ok {
				continue
			}
			c.slots[key] = slot.Record{
				Key:     key,
				Instant: local.UTC(),
				Text:    slot.DisplayText(local, c.loc),
				Moment:  part,
				POIs:    []slot.Snapshot{},
			}
			added++
		}
	}
	c.logger.Debug("window opened", zap.Int("slots", len(c.slots)), zap.Int("placeholders", added))
	return nil
}

// Bounds returns the retention window [lower, upper) for the current day, in
// the textual form keys are compared against.
func (c *Cache) Bounds() (lower, upper string) {
	y, m, d := c.now().In(c.loc).Date()
	morning := time.Date(y, m, d, boundHour, 0, 0, 0, time.UTC)
	return formatBound(morning.AddDate(0, 0, -1)), formatBound(morning.AddDate(0, 0, 1))
}

// Keys and bounds are compared as strings, so a key at exactly 05:00 sorts
// after the bound (".000Z" > "+00:00").
func formatBound(t time.Time) string {
	return t.Format("2006-01-02T15:04:05") + "+00:00"
}

// Update prunes the window to its bounds, stores the fresh slots before the
// upper bound, then fills fresh in place with the cached slots it lacks.
// Fresh slots win over cached ones for the same key.
func (c *Cache) Update(fresh slot.Set) {
	lower, upper := c.Bounds()

	next := make(slot.Set, len(c.slots)+len(fresh))
	for key, rec := range c.slots {
		if key >= lower && key < upper {
			next[key] = rec
		}
	}
	for key, rec := range fresh {
		if key < upper {
			next[key] = rec
		}
	}
	c.slots = next

	for key, rec := range c.slots {
		if _, ok := fresh[key]; !ok {
			fresh[key] = rec
		}
	}
}

// Slots returns a copy of the current window.
func (c *Cache) Slots() slot.Set {
	out := make(slot.Set, len(c.slots))
	for k, v := range c.slots {
		out[k] = v
	}
	return out
}

// Close persists the window.
func (c *Cache) Close() error {
	data, err := json.Marshal(c.slots)
	if err != nil {
		return fmt.Errorf("encode window %s: %w", c.id, err)
	}
	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("mkdir window dir: %w", err)
	}
	if err := afero.WriteFile(c.fs, c.path, data, 0o644); err != nil {
		return fmt.Errorf("write window %s: %w", c.id, err)
	}
	return nil
}

func (c *Cache) load() (slot.Set, error) {
	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(slot.Set), nil
		}
		return nil, fmt.Errorf("read window %s: %w", c.id, err)
	}
	set := make(slot.Set)
	if err := json.Unmarshal(data, &set); err != nil {
		c.logger.Warn("discarding unreadable window", zap.String("path", c.path), zap.Error(err))
		return make(slot.Set), nil
	}
	return set, nil
}
