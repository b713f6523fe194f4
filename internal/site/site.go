// Package site renders the per-zone data script and HTML page of the static site.
package site

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"github.com/JakeFAU/meteo-crawler/internal/forecast"
	"github.com/JakeFAU/meteo-crawler/internal/slot"
	"github.com/JakeFAU/meteo-crawler/internal/storage"
	"github.com/JakeFAU/meteo-crawler/internal/zone"
)

// DataPrefix starts every data script; the page reads the assigned global.
const DataPrefix = "\"use strict\";\n var globalMapData = "

//go:embed page.html.tmpl
var pageTemplate string

var page = template.Must(template.New("page").Parse(pageTemplate))

// Record is the JSON object a zone page loads.
type Record struct {
	Name       string           `json:"name"`
	IDTech     string           `json:"idtech"`
	Taxonomy   string           `json:"taxonomy"`
	Subzones   []map[string]any `json:"subzones"`
	BBox       zone.CroppedBBox `json:"bbox"`
	Prevs      []slot.Record    `json:"prevs"`
	Chroniques forecast.Series  `json:"chroniques"`
}

// NewRecord assembles a zone's record from its selected geography, the
// bbox of its cropped map and the merged forecast window.
func NewRecord(z *zone.Zone, geo zone.Geography, bbox zone.CroppedBBox, slots slot.Set, now time.Time) Record {
	subzones := geo.Features
	if subzones == nil {
		subzones = []map[string]any{}
	}
	return Record{
		Name:       z.Name,
		IDTech:     z.ID,
		Taxonomy:   z.Taxonomy,
		Subzones:   subzones,
		BBox:       bbox,
		Prevs:      slots.Sorted(),
		Chroniques: forecast.BuildSeries(slots, now),
	}
}

type pageData struct {
	HeadDescription string
	HeadTitle       string
	Breadcrumb      []zone.Crumb
	IDTech          string
}

// Dirs locates emitted artifacts.
type Dirs struct {
	WWW  string
	Data string
}

// Emitter writes zone artifacts through a storage.Writer.
type Emitter struct {
	w    storage.Writer
	dirs Dirs
}

// NewEmitter returns an Emitter writing into dirs.
func NewEmitter(w storage.Writer, dirs Dirs) *Emitter {
	return &Emitter{w: w, dirs: dirs}
}

// DataName is the file name of a zone's data script.
func DataName(idtech string) string {
	return idtech + "-data.js"
}

// WriteData serializes rec as <idtech>-data.js in the data directory.
func (e *Emitter) WriteData(ctx context.Context, rec Record) error {
	body, err := RenderData(rec)
	if err != nil {
		return err
	}
	if err := e.w.Write(ctx, e.dirs.Data, DataName(rec.IDTech), body); err != nil {
		return fmt.Errorf("write data for %s: %w", rec.IDTech, err)
	}
	return nil
}

// WritePage renders the zone's HTML page as <ownPath>.html in the www directory.
func (e *Emitter) WritePage(ctx context.Context, z *zone.Zone) error {
	body, err := RenderPage(z)
	if err != nil {
		return err
	}
	if err := e.w.Write(ctx, e.dirs.WWW, z.OwnPath+".html", body); err != nil {
		return fmt.Errorf("write page for %s: %w", z.ID, err)
	}
	return nil
}

// RenderData returns the data script for rec.
func RenderData(rec Record) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", rec.IDTech, err)
	}
	return append([]byte(DataPrefix), b...), nil
}

// RenderPage returns the HTML page of z.
func RenderPage(z *zone.Zone) ([]byte, error) {
	var buf bytes.Buffer
	err := page.Execute(&buf, pageData{
		HeadDescription: "Prévisions météo " + z.Name + " en grand format.",
		HeadTitle:       fmt.Sprintf("Météo %s monopage", z.Name),
		Breadcrumb:      z.Breadcrumb(),
		IDTech:          z.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("render page %s: %w", z.ID, err)
	}
	return buf.Bytes(), nil
}
