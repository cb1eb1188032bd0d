package models

import (
	"github.com/golang/geo/s2"
)

const earthRadiusKm = 6371.0088

// cellLevel 13 cells are roughly 1 km across, about a neighbourhood block
const cellLevel = 13

// Coordinates is a WGS84 position in degrees
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether no position was resolved
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// Valid reports whether c is a real position on the globe
func (c Coordinates) Valid() bool {
	return !c.IsZero() && c.LatLng().IsValid()
}

func (c Coordinates) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(c.Lat, c.Lng)
}

// DistanceKm is the great-circle distance between two positions
func (c Coordinates) DistanceKm(other Coordinates) float64 {
	return c.LatLng().Distance(other.LatLng()).Radians() * earthRadiusKm
}

// CellToken is the s2 cell token used to index records by area.
// Empty for unresolved positions.
func (c Coordinates) CellToken() string {
	if !c.Valid() {
		return ""
	}
	return s2.CellIDFromLatLng(c.LatLng()).Parent(cellLevel).ToToken()
}
