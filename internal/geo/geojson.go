// Package geo holds coordinates, distance math and the GeoJSON shapes
// used to hand markers and location tracks around.
package geo

// GeoJSONFeatureCollection represents a collection of geographic features.
// It follows the standard GeoJSON structure.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type" yaml:"type"`
	Features []GeoJSONFeature `json:"features" yaml:"features"`
}

// GeoJSONFeature represents a single point feature with properties.
type GeoJSONFeature struct {
	Properties map[string]any  `json:"properties" yaml:"properties"`
	Type       string          `json:"type" yaml:"type"`
	Geometry   GeoJSONGeometry `json:"geometry" yaml:"geometry"`
}

// GeoJSONGeometry represents the geometry of a point feature.
type GeoJSONGeometry struct {
	Type        string    `json:"type" yaml:"type"`
	Coordinates []float64 `json:"coordinates" yaml:"coordinates"` // [Lon, Lat]
}

// NewFeatureCollection returns an empty collection ready for appending.
func NewFeatureCollection(capacity int) GeoJSONFeatureCollection {
	return GeoJSONFeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]GeoJSONFeature, 0, capacity),
	}
}

// PointFeature builds a Point feature at c.
func PointFeature(c Coordinate, props map[string]any) GeoJSONFeature {
	if props == nil {
		props = map[string]any{}
	}
	return GeoJSONFeature{
		Type: "Feature",
		Geometry: GeoJSONGeometry{
			Type:        "Point",
			Coordinates: []float64{c.Lng, c.Lat},
		},
		Properties: props,
	}
}

// Point returns the coordinate of a Point feature.
// It reports false for other geometry types or short coordinate arrays.
func (f GeoJSONFeature) Point() (Coordinate, bool) {
	if f.Geometry.Type != "Point" || len(f.Geometry.Coordinates) < 2 {
		return Coordinate{}, false
	}
	c := Coordinate{Lat: f.Geometry.Coordinates[1], Lng: f.Geometry.Coordinates[0]}
	return c, c.Valid()
}
