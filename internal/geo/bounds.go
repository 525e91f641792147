package geo

import (
	"math"

	"github.com/woozymasta/nbmap/internal/places"
)

// Bounds is a lat/lng bounding box.
type Bounds struct {
	SouthWest places.Position `json:"south_west"`
	NorthEast places.Position `json:"north_east"`
}

// BoundsOf returns the smallest box containing every place.
// ok is false for an empty list.
func BoundsOf(list []places.Place) (b Bounds, ok bool) {
	if len(list) == 0 {
		return Bounds{}, false
	}

	b.SouthWest = places.Position{Lat: math.Inf(1), Lng: math.Inf(1)}
	b.NorthEast = places.Position{Lat: math.Inf(-1), Lng: math.Inf(-1)}

	for _, p := range list {
		b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Position.Lat)
		b.SouthWest.Lng = math.Min(b.SouthWest.Lng, p.Position.Lng)
		b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Position.Lat)
		b.NorthEast.Lng = math.Max(b.NorthEast.Lng, p.Position.Lng)
	}

	return b, true
}

// Center returns the midpoint of the box.
func (b Bounds) Center() places.Position {
	return places.Position{
		Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
		Lng: (b.SouthWest.Lng + b.NorthEast.Lng) / 2,
	}
}

// Contains reports whether pos lies inside the box, edges included.
func (b Bounds) Contains(pos places.Position) bool {
	return pos.Lat >= b.SouthWest.Lat && pos.Lat <= b.NorthEast.Lat &&
		pos.Lng >= b.SouthWest.Lng && pos.Lng <= b.NorthEast.Lng
}
