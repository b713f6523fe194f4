package crawler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/meteo-crawler/internal/forecast"
	"github.com/JakeFAU/meteo-crawler/internal/site"
	"github.com/JakeFAU/meteo-crawler/internal/slot"
	"github.com/JakeFAU/meteo-crawler/internal/svgmap"
	"github.com/JakeFAU/meteo-crawler/internal/window"
	"github.com/JakeFAU/meteo-crawler/internal/zone"
)

// emit fetches the zone's forecasts, pictograms, geography and map, then
// merges the forecasts into the zone's window and writes the artifacts.
func (r *run) emit(ctx context.Context, z *zone.Zone) error {
	logger := r.logger.With(zap.String("zone", z.ID))

	locations := Locations(z)
	feed, err := r.fetchForecast(ctx, z, locations)
	if err != nil {
		return err
	}
	if err := r.fetchPictos(ctx, feed); err != nil {
		return err
	}
	geo, err := r.fetchGeography(ctx, z)
	if err != nil {
		return err
	}
	if err := r.fetchMap(ctx, z); err != nil {
		return err
	}

	slots, err := forecast.NewPipeline(feed, locations, slot.Paris()).Crunch()
	if err != nil {
		logger.Warn("dropped malformed forecast slots", zap.Error(err))
	}

	win := window.New(z.ID, r.deps.Window)
	if err := win.Open(); err != nil {
		return fmt.Errorf("open window %s: %w", z.ID, err)
	}
	win.Update(slots)

	m := r.cfg.Margins
	rec := site.NewRecord(z, geo, geo.Crop(m.North, m.South, m.East, m.West), slots, r.deps.Now())
	emitErr := r.deps.Emitter.WriteData(ctx, rec)
	if emitErr == nil {
		emitErr = r.deps.Emitter.WritePage(ctx, z)
	}
	if err := win.Close(); err != nil {
		emitErr = errors.Join(emitErr, fmt.Errorf("close window %s: %w", z.ID, err))
	}
	if emitErr != nil {
		return emitErr
	}
	logger.Debug("zone emitted", zap.Int("slots", len(rec.Prevs)))
	return nil
}

// Locations lists the zone's points of interest in page order.
func Locations(z *zone.Zone) []forecast.Location {
	out := make([]forecast.Location, 0, len(z.POIs))
	for _, p := range z.POIs {
		out = append(out, forecast.Location{
			Title:   p.Title,
			Lat:     p.Lat.Value,
			Lng:     p.Lng.Value,
			LatText: p.Lat.Text,
			LngText: p.Lng.Text,
			Code:    p.Insee,
		})
	}
	return out
}

func (r *run) fetchForecast(ctx context.Context, z *zone.Zone, locations []forecast.Location) (forecast.Feed, error) {
	if len(locations) == 0 {
		return forecast.Feed{}, nil
	}
	body, err := r.deps.Session.Fetch(ctx, z.APIURL+forecast.Path, forecast.Params(locations), r.cfg.CacheForecasts)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast %s: %w", z.ID, err)
	}
	feed, err := forecast.ParseFeed(body)
	if err != nil {
		return nil, fmt.Errorf("zone %s: %w", z.ID, err)
	}
	return feed, nil
}

func (r *run) fetchPictos(ctx context.Context, feed forecast.Feed) error {
	for _, name := range forecast.Pictos(feed) {
		body, err := r.deps.Session.Fetch(ctx, zone.PictoURL(r.cfg.BaseURL, name), nil, r.cfg.CacheAssets)
		if err != nil {
			return fmt.Errorf("fetch pictogram %s: %w", name, err)
		}
		if err := r.deps.Writer.Write(ctx, r.cfg.SVGDir, name, []byte(body)); err != nil {
			return fmt.Errorf("write pictogram %s: %w", name, err)
		}
	}
	return nil
}

func (r *run) fetchGeography(ctx context.Context, z *zone.Zone) (zone.Geography, error) {
	body, err := r.deps.Session.Fetch(ctx, z.GeographyURL(r.cfg.BaseURL), nil, r.cfg.CacheAssets)
	if err != nil {
		return zone.Geography{}, fmt.Errorf("fetch geography %s: %w", z.ID, err)
	}
	geo, err := zone.ParseGeography(body)
	if err != nil {
		return zone.Geography{}, fmt.Errorf("zone %s: %w", z.ID, err)
	}
	return z.SelectSubzones(geo)
}

func (r *run) fetchMap(ctx context.Context, z *zone.Zone) error {
	body, err := r.deps.Session.Fetch(ctx, z.SVGURL(r.cfg.BaseURL), nil, r.cfg.CacheAssets)
	if err != nil {
		return fmt.Errorf("fetch map %s: %w", z.ID, err)
	}
	cropped, err := svgmap.Crop(body, r.cfg.Margins)
	if err != nil {
		return fmt.Errorf("crop map %s: %w", z.ID, err)
	}
	if err := r.deps.Writer.Write(ctx, r.cfg.SVGDir, z.SVGName(), []byte(cropped)); err != nil {
		return fmt.Errorf("write map %s: %w", z.ID, err)
	}
	return nil
}
