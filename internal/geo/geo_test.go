package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinateValid(t *testing.T) {
	tests := []struct {
		name string
		c    Coordinate
		want bool
	}{
		{"origin", Coordinate{0, 0}, true},
		{"corner", Coordinate{90, -180}, true},
		{"lat too big", Coordinate{90.1, 0}, false},
		{"lng too small", Coordinate{0, -180.5}, false},
		{"nan", Coordinate{math.NaN(), 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Valid())
		})
	}
}

func TestCoordinateString(t *testing.T) {
	assert.Equal(t, "-33.8670522,151.1957362", Coordinate{-33.8670522, 151.1957362}.String())
	assert.Equal(t, "1,2", Coordinate{1, 2}.String())
}

func TestDistance(t *testing.T) {
	assert.Zero(t, Distance(Coordinate{10, 10}, Coordinate{10, 10}))

	// one degree of latitude is roughly 111.2 km
	d := Distance(Coordinate{0, 0}, Coordinate{1, 0})
	assert.InDelta(t, 111195, d, 10)

	paris := Coordinate{48.8566, 2.3522}
	london := Coordinate{51.5074, -0.1278}
	assert.InDelta(t, 343500, Distance(paris, london), 1500)
	assert.InDelta(t, Distance(paris, london), Distance(london, paris), 1e-6)
}

func TestPointFeatureRoundTrip(t *testing.T) {
	f := PointFeature(Coordinate{Lat: 1.5, Lng: 2.5}, nil)
	assert.Equal(t, []float64{2.5, 1.5}, f.Geometry.Coordinates)
	assert.NotNil(t, f.Properties)

	c, ok := f.Point()
	assert.True(t, ok)
	assert.Equal(t, Coordinate{Lat: 1.5, Lng: 2.5}, c)

	_, ok = GeoJSONFeature{Geometry: GeoJSONGeometry{Type: "Polygon"}}.Point()
	assert.False(t, ok)
}
