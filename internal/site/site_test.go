package site

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/meteo-crawler/internal/slot"
	"github.com/JakeFAU/meteo-crawler/internal/storage/local"
	"github.com/JakeFAU/meteo-crawler/internal/zone"
)

func testZones() (*zone.Zone, *zone.Zone) {
	root := zone.New(zone.EmbeddedConfig{Info: zone.Info{Name: "France", IDTechnique: "PAYS007", Taxonomy: "PAYS"}}, "france", nil)
	child := zone.New(zone.EmbeddedConfig{Info: zone.Info{Name: "Bretagne", IDTechnique: "REGIN03", Taxonomy: "REGIN"}}, "bretagne", root)
	return root, child
}

func TestRenderData(t *testing.T) {
	t.Parallel()

	_, z := testZones()
	now := time.Date(2024, time.May, 10, 8, 0, 0, 0, time.UTC)
	slots := slot.Set{
		"2024-05-10T13:00:00.000Z": {Key: "2024-05-10T13:00:00.000Z", POIs: []slot.Snapshot{{"title": "Rennes", "T": 18.0}}},
		"2024-05-10T07:00:00.000Z": {Key: "2024-05-10T07:00:00.000Z", POIs: []slot.Snapshot{{"title": "Rennes", "T": 12.0}}},
	}
	bbox := zone.CroppedBBox{LngW: -5, LatS: 47, LngE: -1, LatN: 49}
	rec := NewRecord(z, zone.Geography{}, bbox, slots, now)

	body, err := RenderData(rec)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(body), DataPrefix))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body[len(DataPrefix):], &decoded))
	assert.Equal(t, "Bretagne", decoded["name"])
	assert.Equal(t, "REGIN03", decoded["idtech"])
	assert.Equal(t, "REGIN", decoded["taxonomy"])
	assert.Equal(t, []any{}, decoded["subzones"])
	assert.Equal(t, map[string]any{"lng_O": -5.0, "lat_S": 47.0, "lng_E": -1.0, "lat_N": 49.0}, decoded["bbox"])

	prevs, ok := decoded["prevs"].([]any)
	require.True(t, ok)
	require.Len(t, prevs, 2)
	assert.Equal(t, "2024-05-10T07:00:00.000Z", prevs[0].(map[string]any)["date_iso"])
	assert.Equal(t, "2024-05-10T13:00:00.000Z", prevs[1].(map[string]any)["date_iso"])

	chroniques, ok := decoded["chroniques"].(map[string]any)
	require.True(t, ok)
	temps, ok := chroniques["T"].([]any)
	require.True(t, ok)
	require.Len(t, temps, 1)
	assert.Len(t, temps[0], 2)
}

func TestRenderPage(t *testing.T) {
	t.Parallel()

	_, z := testZones()
	body, err := RenderPage(z)
	require.NoError(t, err)
	html := string(body)

	assert.Contains(t, html, "<title>Météo Bretagne monopage</title>")
	assert.Contains(t, html, `content="Prévisions météo Bretagne en grand format."`)
	assert.Contains(t, html, `<a href="france.html">France</a>`)
	assert.Contains(t, html, `<a href="bretagne.html">Bretagne</a>`)
	assert.Less(t, strings.Index(html, "france.html"), strings.Index(html, "bretagne.html"))
	assert.Contains(t, html, `data/REGIN03-data.js`)
}

func TestRenderPageEscapesNames(t *testing.T) {
	t.Parallel()

	z := zone.New(zone.EmbeddedConfig{Info: zone.Info{Name: "<b>x</b>", IDTechnique: "X"}}, "x", nil)
	body, err := RenderPage(z)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "<b>x</b>")
}

func TestEmitterWrites(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	w, err := local.New(local.Config{Fs: fs, BaseDir: "."})
	require.NoError(t, err)
	e := NewEmitter(w, Dirs{WWW: "www/", Data: "www/data/"})

	_, z := testZones()
	ctx := context.Background()
	require.NoError(t, e.WritePage(ctx, z))
	require.NoError(t, e.WriteData(ctx, NewRecord(z, zone.Geography{}, zone.CroppedBBox{}, slot.Set{}, time.Now())))

	page, err := afero.ReadFile(fs, "www/bretagne.html")
	require.NoError(t, err)
	assert.Contains(t, string(page), "Bretagne")

	data, err := afero.ReadFile(fs, "www/data/REGIN03-data.js")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), DataPrefix))
}
