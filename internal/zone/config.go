package zone

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrConfigNotFound is returned when a zone page carries no embedded settings block.
var ErrConfigNotFound = errors.New("embedded zone config not found")

const settingsSelector = `script[type="application/json"][data-drupal-selector="drupal-settings-json"]`

// EmbeddedConfig is the subset of the page settings JSON the crawler reads.
type EmbeddedConfig struct {
	Info     Info     `json:"mf_map_layers_v2"`
	POIs     []POI    `json:"mf_map_layers_v2_children_poi"`
	Subzones Subzones `json:"mf_map_layers_v2_sub_zone"`
	Tools    Tools    `json:"mf_tools_common"`
}

// Info describes the zone itself.
type Info struct {
	Nid         string `json:"nid"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Taxonomy    string `json:"taxonomy"`
	PathAssets  string `json:"path_assets"`
	IDTechnique string `json:"field_id_technique"`
}

// POI is a forecast location of the zone.
type POI struct {
	Title string      `json:"title"`
	Lat   StringFloat `json:"lat"`
	Lng   StringFloat `json:"lng"`
	Insee string      `json:"insee"`
	Path  string      `json:"path"`
}

// Subzone is a child zone reference.
type Subzone struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Subzones maps a child's technical id to its reference.
type Subzones map[string]Subzone

// Tools carries the forecast API location.
type Tools struct {
	Config struct {
		Site    string `json:"site"`
		BaseURL string `json:"base_url"`
	} `json:"config"`
}

// APIURL is the forecast API root, e.g. https://rpcache-aa.meteofrance.com/internet2018client/2.0.
func (t Tools) APIURL() string {
	return "https://" + t.Config.Site + "." + t.Config.BaseURL
}

// StringFloat decodes coordinates published either as numbers or as strings.
// Text keeps the published form so requests can echo it unchanged.
type StringFloat struct {
	Value float64
	Text  string
}

// UnmarshalJSON accepts 48.1 as well as "48.1".
func (sf *StringFloat) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null":
		*sf = StringFloat{}
		return nil
	case strings.HasPrefix(raw, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		raw = strings.TrimSpace(v)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("coordinate %s: %w", string(b), err)
	}
	*sf = StringFloat{Value: f, Text: raw}
	return nil
}

// String returns the published text, or the shortest exact form of Value.
func (sf StringFloat) String() string {
	if sf.Text != "" {
		return sf.Text
	}
	return strconv.FormatFloat(sf.Value, 'f', -1, 64)
}

// UnmarshalJSON accepts an object, or an empty array for zones without children.
func (sz *Subzones) UnmarshalJSON(b []byte) error {
	tmp := make(map[string]Subzone)
	err := json.Unmarshal(b, &tmp)
	if err == nil {
		*sz = tmp
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) || typeErr.Value != "array" {
		return err
	}
	var arr []json.RawMessage
	if aerr := json.Unmarshal(b, &arr); aerr != nil || len(arr) > 0 {
		return fmt.Errorf("subzones are neither an object nor an empty array: %w", err)
	}
	*sz = Subzones{}
	return nil
}

// ExtractConfig finds the settings script of a zone page and decodes it.
func ExtractConfig(html string) (EmbeddedConfig, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return EmbeddedConfig{}, fmt.Errorf("parse zone page: %w", err)
	}
	sel := doc.Find(settingsSelector).First()
	if sel.Length() == 0 {
		return EmbeddedConfig{}, ErrConfigNotFound
	}
	var cfg EmbeddedConfig
	if err := json.Unmarshal([]byte(sel.Text()), &cfg); err != nil {
		return EmbeddedConfig{}, fmt.Errorf("decode embedded zone config: %w", err)
	}
	return cfg, nil
}
