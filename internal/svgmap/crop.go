// Package svgmap trims the margins of a zone's background map.
package svgmap

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ErrDimensionMismatch is returned when the root viewBox and pixel size disagree.
var ErrDimensionMismatch = errors.New("svg viewBox does not match pixel size")

// Margins holds the fraction of the original size removed from each side.
type Margins struct {
	North, South, East, West float64
}

// DefaultMargins trims the empty sea margins around the published maps.
var DefaultMargins = Margins{North: 0.08, South: 0.08, East: 0.08, West: 0.20}

var (
	rootTag   = regexp.MustCompile(`<svg\b[^>]*>`)
	attrRegex = map[string]*regexp.Regexp{
		"viewBox": regexp.MustCompile(`(\s)viewBox\s*=\s*("[^"]*"|'[^']*')`),
		"width":   regexp.MustCompile(`(\s)width\s*=\s*("[^"]*"|'[^']*')`),
		"height":  regexp.MustCompile(`(\s)height\s*=\s*("[^"]*"|'[^']*')`),
	}
)

// Crop trims svg by m. Only the viewBox, width and height attributes of the
// root element change; the rest of the document is returned byte for byte.
func Crop(svg string, m Margins) (string, error) {
	doc, err := xmlquery.Parse(strings.NewReader(svg))
	if err != nil {
		return "", fmt.Errorf("parse svg: %w", err)
	}
	root := rootElement(doc)
	if root == nil || root.Data != "svg" {
		return "", errors.New("parse svg: root element is not <svg>")
	}

	vb, err := parseViewBox(root.SelectAttr("viewBox"))
	if err != nil {
		return "", err
	}
	width, err := parsePixels(root.SelectAttr("width"))
	if err != nil {
		return "", fmt.Errorf("svg width: %w", err)
	}
	height, err := parsePixels(root.SelectAttr("height"))
	if err != nil {
		return "", fmt.Errorf("svg height: %w", err)
	}
	if vb[2] != width || vb[3] != height {
		return "", fmt.Errorf("%w: viewBox %dx%d, size %dx%d", ErrDimensionMismatch, vb[2], vb[3], width, height)
	}

	w, h := float64(vb[2]), float64(vb[3])
	cropped := [4]int{
		int(float64(vb[0]) + m.West*w),
		int(float64(vb[1]) + m.North*h),
		int(w - (m.West+m.East)*w),
		int(h - (m.North+m.South)*h),
	}

	loc := rootTag.FindStringIndex(svg)
	if loc == nil {
		return "", errors.New("parse svg: root tag not found")
	}
	tag := svg[loc[0]:loc[1]]
	tag = setAttr(tag, "viewBox", fmt.Sprintf("%d %d %d %d", cropped[0], cropped[1], cropped[2], cropped[3]))
	tag = setAttr(tag, "width", fmt.Sprintf("%dpx", cropped[2]))
	tag = setAttr(tag, "height", fmt.Sprintf("%dpx", cropped[3]))
	return svg[:loc[0]] + tag + svg[loc[1]:], nil
}

func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

func setAttr(tag, name, value string) string {
	re := attrRegex[name]
	done := false
	return re.ReplaceAllStringFunc(tag, func(match string) string {
		if done {
			return match
		}
		done = true
		return match[:1] + name + `="` + value + `"`
	})
}

func parseViewBox(raw string) ([4]int, error) {
	var vb [4]int
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' || r == '\n' })
	if len(fields) != 4 {
		return vb, fmt.Errorf("svg viewBox %q: want 4 numbers", raw)
	}
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return vb, fmt.Errorf("svg viewBox %q: %w", raw, err)
		}
		vb[i] = n
	}
	return vb, nil
}

func parsePixels(raw string) (int, error) {
	v, ok := strings.CutSuffix(strings.TrimSpace(raw), "px")
	if !ok {
		return 0, fmt.Errorf("%q is not a pixel size", raw)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", raw, err)
	}
	return n, nil
}
