package zone

import (
	"encoding/json"
	"fmt"
)

// Geography is the aggregated GeoJSON of a zone's subzones. Features are kept
// as generic objects so unknown properties pass through to the page untouched.
type Geography struct {
	Type     string           `json:"type"`
	BBox     [4]float64       `json:"bbox"`
	Features []map[string]any `json:"features"`
}

// ParseGeography decodes a GeoJSON feature collection.
func ParseGeography(body string) (Geography, error) {
	var geo Geography
	if err := json.Unmarshal([]byte(body), &geo); err != nil {
		return Geography{}, fmt.Errorf("decode geography: %w", err)
	}
	return geo, nil
}

// SelectSubzones keeps the features whose prop0.cible is a declared subzone and
// annotates each with prop_custom {path, name} so the page can link to it.
func (z *Zone) SelectSubzones(geo Geography) (Geography, error) {
	selected := make([]map[string]any, 0, len(z.Subzones))
	for _, feat := range geo.Features {
		props, _ := feat["properties"].(map[string]any)
		prop0, _ := props["prop0"].(map[string]any)
		cible, _ := prop0["cible"].(string)
		sz, ok := z.Subzones[cible]
		if !ok {
			continue
		}
		m := pathName.FindStringSubmatch(sz.Path)
		if m == nil {
			return Geography{}, fmt.Errorf("subzone %s: unexpected path %q", cible, sz.Path)
		}
		props["prop_custom"] = map[string]any{
			"path": m[1] + ".html",
			"name": sz.Name,
		}
		selected = append(selected, feat)
	}
	geo.Features = selected
	return geo, nil
}

// CroppedBBox is the geographic extent of the cropped background map.
type CroppedBBox struct {
	LngW float64 `json:"lng_O"`
	LatS float64 `json:"lat_S"`
	LngE float64 `json:"lng_E"`
	LatN float64 `json:"lat_N"`
}

// Crop shrinks the bbox by the given fractions of its width and height.
func (g Geography) Crop(north, south, east, west float64) CroppedBBox {
	lngW, latS, lngE, latN := g.BBox[0], g.BBox[1], g.BBox[2], g.BBox[3]
	return CroppedBBox{
		LngW: lngW + west*(lngE-lngW),
		LatS: latS + south*(latN-latS),
		LngE: lngE - east*(lngE-lngW),
		LatN: latN - north*(latN-latS),
	}
}
