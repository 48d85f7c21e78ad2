// Package geo provides bounding-box handling: GeoJSON polygon construction
// and reprojection of common European CRS codes to EPSG:4326.
package geo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// WGS84 is the EPSG code all spatial extents are normalized to.
const WGS84 = 4326

var epsgPattern = regexp.MustCompile(`(?i)epsg\D*(\d{1,5})`)

// ParseEPSG extracts a numeric EPSG code from a reference-system string such
// as "EPSG:25830" or "http://www.opengis.net/def/crs/EPSG/0/4258". Returns 0
// when no code is present.
func ParseEPSG(text string) int {
	m := epsgPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}

	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}

	return code
}

// ReferenceSystemURI renders an EPSG code as its OGC CRS registry URI.
func ReferenceSystemURI(epsg int) string {
	return fmt.Sprintf("http://www.opengis.net/def/crs/EPSG/0/%d", epsg)
}

// IsETRS89 reports whether a free-text reference system mentions ETRS89.
func IsETRS89(text string) bool {
	return strings.Contains(strings.ToLower(text), "etrs89")
}

// BoundingBox is a rectangular extent in a given CRS.
type BoundingBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
	EPSG int
}

// ToWGS84 reprojects the box corners to EPSG:4326 when the source CRS is a
// supported projected system. Geographic CRS variants pass through unchanged.
func (b BoundingBox) ToWGS84() (BoundingBox, error) {
	if b.EPSG == 0 || isGeographic(b.EPSG) {
		out := b
		out.EPSG = WGS84
		return out, nil
	}

	minx, miny, err := toWGS84(b.EPSG, b.MinX, b.MinY)
	if err != nil {
		return BoundingBox{}, err
	}

	maxx, maxy, err := toWGS84(b.EPSG, b.MaxX, b.MaxY)
	if err != nil {
		return BoundingBox{}, err
	}

	return BoundingBox{MinX: minx, MinY: miny, MaxX: maxx, MaxY: maxy, EPSG: WGS84}, nil
}

// GeoJSON renders the box as a closed GeoJSON polygon string.
func (b BoundingBox) GeoJSON() (string, error) {
	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{{
		{b.MinX, b.MinY},
		{b.MaxX, b.MinY},
		{b.MaxX, b.MaxY},
		{b.MinX, b.MaxY},
		{b.MinX, b.MinY},
	}})
	if err != nil {
		return "", fmt.Errorf("failed to build bounding polygon: %w", err)
	}

	raw, err := geojson.Marshal(poly)
	if err != nil {
		return "", fmt.Errorf("failed to encode bounding polygon: %w", err)
	}

	return string(raw), nil
}
