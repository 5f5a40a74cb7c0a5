package entity

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// FeatureKind is the geometry variant of a GeoFeature.
type FeatureKind string

const (
	KindPoint      FeatureKind = "Point"
	KindLineString FeatureKind = "LineString"
)

// AreaUnit is appended to every formatted area.
const AreaUnit = "m²"

// GeoFeature is a georeferenced output feature before id assignment.
type GeoFeature struct {
	Kind         FeatureKind
	Point        orb.Point
	Line         orb.LineString
	Name         string
	Description  string
	AreaPhysical float64
}

// NewPointFeature creates a Point feature.
func NewPointFeature(p orb.Point, name, description string, area float64) GeoFeature {
	return GeoFeature{Kind: KindPoint, Point: p, Name: name, Description: description, AreaPhysical: area}
}

// NewLineFeature creates a LineString feature.
func NewLineFeature(ls orb.LineString, name, description string, area float64) GeoFeature {
	return GeoFeature{Kind: KindLineString, Line: ls, Name: name, Description: description, AreaPhysical: area}
}

// Geometry returns the orb geometry of the feature.
func (f GeoFeature) Geometry() orb.Geometry {
	if f.Kind == KindLineString {
		return f.Line
	}
	return f.Point
}

// FormatArea renders an area rounded to two decimals with the unit suffix,
// keeping at least one fractional digit: 4 -> "4.0 m²", 12.344 -> "12.34 m²".
func FormatArea(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	s := strconv.FormatFloat(rounded, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + " " + AreaUnit
}
