package model

import (
	"math"
	"strconv"
)

// ColumnPrefix is prepended to a reference location name to form the output column.
const ColumnPrefix = "road_distance_"

// Coordinate is a latitude/longitude pair in decimal degrees.
// Values are not range-checked.
type Coordinate struct {
	Lat float64 `json:"latitude" mapstructure:"latitude"`
	Lon float64 `json:"longitude" mapstructure:"longitude"`
}

// String formats the coordinate as "lat,lon" using the shortest decimal
// representation that round-trips.
func (c Coordinate) String() string {
	return FormatDegrees(c.Lat) + "," + FormatDegrees(c.Lon)
}

// FormatDegrees formats a single coordinate component.
func FormatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReferenceLocation is a named point every facility is measured against.
type ReferenceLocation struct {
	Name      string  `json:"name" yaml:"name" mapstructure:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude" mapstructure:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude" mapstructure:"longitude"`
}

// Coordinate returns the location's position.
func (r ReferenceLocation) Coordinate() Coordinate {
	return Coordinate{Lat: r.Latitude, Lon: r.Longitude}
}

// Column returns the output column name for this reference location.
func (r ReferenceLocation) Column() string {
	return ColumnName(r.Name)
}

// ColumnName returns the deterministic output column for a reference name.
func ColumnName(name string) string {
	return ColumnPrefix + name
}

// DefaultReferenceLocations returns the university campuses used when no
// reference set is configured. Iteration order is column emission order.
func DefaultReferenceLocations() []ReferenceLocation {
	return []ReferenceLocation{
		{Name: "city", Latitude: 51.5280, Longitude: -0.1025},
		{Name: "exeter", Latitude: 50.7365, Longitude: -3.5344},
		{Name: "warick", Latitude: 52.3793, Longitude: -1.5615},
	}
}

// MissingDistance returns the sentinel used for a distance the routing
// service did not report.
func MissingDistance() float64 {
	return math.NaN()
}

// IsMissing reports whether d is the missing-distance sentinel.
func IsMissing(d float64) bool {
	return math.IsNaN(d)
}

// FormatDistance renders a distance for CSV output. Missing values become
// the empty string.
func FormatDistance(d float64) string {
	if IsMissing(d) {
		return ""
	}
	return strconv.FormatFloat(d, 'f', -1, 64)
}
