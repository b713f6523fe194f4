package forecast

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/meteo-crawler/internal/slot"
)

// Intersection is the set of slot keys every location reports, with the
// part-of-day label of each key.
type Intersection struct {
	Keys    []string
	Moments map[string]string
}

// IntersectSlots computes the slot keys present in every feature, sorted
// ascending. The first label seen for a key wins.
func IntersectSlots(feed Feed) Intersection {
	moments := make(map[string]string)
	var common map[string]struct{}
	for i, feat := range feed {
		own := make(map[string]struct{}, len(feat.Properties.Forecast))
		for _, e := range feat.Properties.Forecast {
			key := e.Time()
			if key == "" {
				continue
			}
			own[key] = struct{}{}
			if _, seen := moments[key]; !seen {
				moment, _ := e["moment_day"].(string)
				moments[key] = moment
			}
		}
		if i == 0 {
			common = own
			continue
		}
		for key := range common {
			if _, ok := own[key]; !ok {
				delete(common, key)
			}
		}
	}

	keys := make([]string, 0, len(common))
	for key := range common {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return Intersection{Keys: keys, Moments: moments}
}

// Pipeline crunches one zone's feed. It is not meant to be shared across zones.
type Pipeline struct {
	feed      Feed
	locations []Location
	loc       *time.Location

	once  sync.Once
	inter Intersection
}

// NewPipeline builds a pipeline over feed for the given locations, rendering
// display texts in loc.
func NewPipeline(feed Feed, locations []Location, loc *time.Location) *Pipeline {
	return &Pipeline{feed: feed, locations: locations, loc: loc}
}

// Intersection returns the slot intersection, computed once per pipeline.
func (p *Pipeline) Intersection() Intersection {
	p.once.Do(func() {
		p.inter = IntersectSlots(p.feed)
	})
	return p.inter
}

// Crunch builds one record per intersected slot. Each record lists the zone's
// locations in page order, each with its hourly then daily allow-listed
// fields. A slot whose key is malformed, or for which no location has a
// readable update time, is left out and its error joined into the result.
func (p *Pipeline) Crunch() (slot.Set, error) {
	inter := p.Intersection()

	byCode := make(map[string]*Feature, len(p.feed))
	for i := range p.feed {
		code := p.feed[i].Properties.Insee
		if _, dup := byCode[code]; !dup {
			byCode[code] = &p.feed[i]
		}
	}

	set := make(slot.Set, len(inter.Keys))
	var errs []error
	for _, key := range inter.Keys {
		rec, err := p.record(key, inter.Moments[key], byCode)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		set[key] = rec
	}
	return set, errors.Join(errs...)
}

func (p *Pipeline) record(key, moment string, byCode map[string]*Feature) (slot.Record, error) {
	instant, err := slot.ParseKey(key)
	if err != nil {
		return slot.Record{}, fmt.Errorf("slot %s: %w", key, err)
	}
	rec := slot.Record{
		Key:     key,
		Instant: instant,
		Text:    slot.DisplayText(instant, p.loc),
		Moment:  slot.PartOfDay(moment),
		POIs:    []slot.Snapshot{},
	}
	day := slot.DatePrefix(key)

	var updErr error
	for _, l := range p.locations {
		feat, ok := byCode[l.Code]
		if !ok {
			continue
		}
		// Update time is per location; the first readable one sets it.
		if rec.Updated == "" {
			upd, err := slot.ParseKey(feat.UpdateTime)
			if err != nil {
				updErr = errors.Join(updErr, fmt.Errorf("slot %s: update_time of %s: %w", key, l.Code, err))
			} else {
				rec.Updated = slot.UpdatedText(upd, p.loc)
			}
		}

		snap := slot.Snapshot{"title": l.Title, "lat": l.Lat, "lng": l.Lng}
		for _, e := range feat.Properties.Forecast {
			if e.Time() == key {
				copyFields(snap, e, HourlyFields)
			}
		}
		// Daily values last: past the hourly horizon they stand in for T and the icon.
		for _, e := range feat.Properties.Daily {
			if slot.DatePrefix(e.Time()) == day {
				copyFields(snap, e, DailyFields)
			}
		}
		rec.POIs = append(rec.POIs, snap)
	}
	if rec.Updated == "" && updErr != nil {
		return slot.Record{}, updErr
	}
	return rec, nil
}

func copyFields(dst slot.Snapshot, src Entry, fields []string) {
	for _, f := range fields {
		if v, ok := src[f]; ok {
			dst[f] = v
		}
	}
}
