// Package geo handles geographic data structures and coordinate helpers.
package geo

import "github.com/woozymasta/nbmap/internal/places"

// GeoJSONFeatureCollection represents a collection of geographic features.
// It follows the standard GeoJSON structure.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type" yaml:"type"`
	Features []GeoJSONFeature `json:"features" yaml:"features"`
}

// GeoJSONFeature represents a single geographic feature with geometry and properties.
type GeoJSONFeature struct {
	Properties map[string]interface{} `json:"properties" yaml:"properties"`
	ID         string                 `json:"id,omitempty" yaml:"id,omitempty"`
	Type       string                 `json:"type" yaml:"type"`
	Geometry   GeoJSONGeometry        `json:"geometry" yaml:"geometry"`
}

// GeoJSONGeometry represents the geometry of a feature (Point, Polygon, etc.).
type GeoJSONGeometry struct {
	Type        string    `json:"type" yaml:"type"`
	Coordinates []float64 `json:"coordinates" yaml:"coordinates"` // [Lon, Lat]
}

// FromPlaces converts places into point features. The result is never nil
// so an empty map still encodes as a valid collection.
func FromPlaces(list []places.Place) GeoJSONFeatureCollection {
	fc := GeoJSONFeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]GeoJSONFeature, 0, len(list)),
	}

	for _, p := range list {
		fc.Features = append(fc.Features, GeoJSONFeature{
			ID:   p.ID,
			Type: "Feature",
			Geometry: GeoJSONGeometry{
				Type:        "Point",
				Coordinates: []float64{p.Position.Lng, p.Position.Lat},
			},
			Properties: map[string]interface{}{
				"name":     p.Name,
				"type":     string(p.Category),
				"category": string(p.Category),
				"address":  p.Address,
			},
		})
	}

	return fc
}
