// Package zone models one node of the geographic zone tree: its embedded page
// settings, breadcrumb, child filter and asset locations.
package zone

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Crumb is one breadcrumb link.
type Crumb struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Zone is a crawled zone. It is immutable after New; a child keeps a copy of
// its parent's breadcrumb rather than a pointer to the parent.
type Zone struct {
	ID         string
	Name       string
	Taxonomy   string
	PathAssets string
	OwnPath    string
	APIURL     string
	POIs       []POI
	Subzones   Subzones

	crumbs []Crumb
}

// New builds a zone from its page settings. parent is nil for the root.
func New(cfg EmbeddedConfig, ownPath string, parent *Zone) *Zone {
	var crumbs []Crumb
	if parent != nil {
		crumbs = make([]Crumb, 0, len(parent.crumbs)+1)
		crumbs = append(crumbs, parent.crumbs...)
	}
	crumbs = append(crumbs, Crumb{Path: ownPath + ".html", Name: cfg.Info.Name})

	subzones := cfg.Subzones
	if subzones == nil {
		subzones = Subzones{}
	}
	return &Zone{
		ID:         cfg.Info.IDTechnique,
		Name:       cfg.Info.Name,
		Taxonomy:   cfg.Info.Taxonomy,
		PathAssets: cfg.Info.PathAssets,
		OwnPath:    ownPath,
		APIURL:     cfg.Tools.APIURL(),
		POIs:       append([]POI(nil), cfg.POIs...),
		Subzones:   subzones,
		crumbs:     crumbs,
	}
}

// Breadcrumb returns the chain from the root to this zone.
func (z *Zone) Breadcrumb() []Crumb {
	return append([]Crumb(nil), z.crumbs...)
}

// ChildPaths returns the page paths of the subzones the filter allows, ordered by id.
func (z *Zone) ChildPaths(f *Filter) []string {
	ids := make([]string, 0, len(z.Subzones))
	for id := range z.Subzones {
		if f.Allow(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		paths = append(paths, z.Subzones[id].Path)
	}
	return paths
}

var pathName = regexp.MustCompile(`/([\w-]*)/\w*$`)

// OwnPath derives the file stem of a zone page from its URL: the parent
// directory of the last segment, or "france" for the site root.
func OwnPath(rawURL, path string) (string, error) {
	if m := pathName.FindStringSubmatch(rawURL); m != nil {
		return m[1], nil
	}
	if path == "/" {
		return "france", nil
	}
	return "", fmt.Errorf("cannot derive page name from %q", rawURL)
}

const mapsPrefix = "/modules/custom/mf_map_layers_v2/maps/desktop/"

// GeographyURL locates the aggregated GeoJSON of the zone's subzones.
func (z *Zone) GeographyURL(base string) string {
	return base + mapsPrefix + z.PathAssets + "/geo_json/" + strings.ToLower(z.ID) + "-aggrege.json"
}

// SVGName is the file name of the zone's background map.
func (z *Zone) SVGName() string {
	return strings.ToLower(z.ID) + ".svg"
}

// SVGURL locates the zone's background map.
func (z *Zone) SVGURL(base string) string {
	return base + mapsPrefix + z.PathAssets + "/" + z.SVGName()
}

// PictoURL locates a weather pictogram by file name.
func PictoURL(base, name string) string {
	return base + "/modules/custom/mf_tools_common_theme_public/svg/weather/" + name
}
