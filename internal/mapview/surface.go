// Package mapview holds the state of the map: camera, the user's own
// position, markers and the selected marker.
//
// A Surface is not safe for concurrent use. It is owned by the render
// loop and every method must be called from a loop task.
package mapview

import (
	"github.com/woozymasta/nearmap/internal/geo"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var markersPlaced = promauto.NewCounter(prometheus.CounterOpts{
	Name: "nearmap_markers_placed_total",
	Help: "Markers added to the map.",
})

// Camera is the map viewpoint.
type Camera struct {
	Target   geo.Coordinate `json:"target"`
	Zoom     float64        `json:"zoom"`
	Animated bool           `json:"animated"`
}

// PlaceInfo describes the place a marker stands for. All fields are optional.
type PlaceInfo struct {
	Name     string `json:"name,omitempty"`
	PlaceID  string `json:"place_id,omitempty"`
	Vicinity string `json:"vicinity,omitempty"`
}

// Marker is a pin on the map. Its position never changes.
type Marker struct {
	Place    PlaceInfo      `json:"place"`
	Icon     string         `json:"icon"`
	Position geo.Coordinate `json:"position"`
	ID       uuid.UUID      `json:"id"`
}

// Selection records the selected marker and the icon to restore.
type Selection struct {
	PreviousIcon string    `json:"previous_icon"`
	MarkerID     uuid.UUID `json:"marker_id"`
}

// Surface is an in-memory map.
type Surface struct {
	index      map[uuid.UUID]int
	selection  *Selection
	markers    []Marker
	camera     Camera
	myLocation geo.Coordinate
	hasCamera  bool
	myEnabled  bool
	hasMy      bool
}

// NewSurface creates an empty map.
func NewSurface() *Surface {
	return &Surface{index: make(map[uuid.UUID]int)}
}

// SetCamera moves the viewpoint.
func (s *Surface) SetCamera(c Camera) {
	s.camera = c
	s.hasCamera = true
	log.Trace().
		Str("target", c.Target.String()).
		Float64("zoom", c.Zoom).
		Bool("animated", c.Animated).
		Msg("Camera moved")
}

// Camera returns the viewpoint and whether one was ever set.
func (s *Surface) Camera() (Camera, bool) {
	return s.camera, s.hasCamera
}

// SetMyLocationEnabled turns display of the user's own position on or off.
// Turning it off forgets the last known position.
func (s *Surface) SetMyLocationEnabled(enabled bool) {
	s.myEnabled = enabled
	if !enabled {
		s.hasMy = false
	}
}

// MyLocationEnabled reports whether the user's position is displayed.
func (s *Surface) MyLocationEnabled() bool {
	return s.myEnabled
}

// UpdateMyLocation records the user's position. It is ignored while
// my-location display is disabled.
func (s *Surface) UpdateMyLocation(c geo.Coordinate) {
	if !s.myEnabled {
		return
	}
	s.myLocation = c
	s.hasMy = true
}

// MyLocation returns the user's last known position.
func (s *Surface) MyLocation() (geo.Coordinate, bool) {
	return s.myLocation, s.hasMy
}

// AddMarker places a new marker. Every call creates a distinct marker,
// even at an already used position.
func (s *Surface) AddMarker(pos geo.Coordinate, icon string, place PlaceInfo) Marker {
	m := Marker{
		ID:       uuid.New(),
		Position: pos,
		Icon:     icon,
		Place:    place,
	}
	s.index[m.ID] = len(s.markers)
	s.markers = append(s.markers, m)
	markersPlaced.Inc()

	log.Trace().Str("id", m.ID.String()).Str("position", pos.String()).Str("icon", icon).Msg("Marker added")
	return m
}

// Markers returns a copy of all markers in placement order.
func (s *Surface) Markers() []Marker {
	out := make([]Marker, len(s.markers))
	copy(out, s.markers)
	return out
}

// Marker looks a marker up by ID.
func (s *Surface) Marker(id uuid.UUID) (Marker, bool) {
	i, ok := s.index[id]
	if !ok {
		return Marker{}, false
	}
	return s.markers[i], true
}

// Select marks a marker as selected and swaps its icon. A marker that
// was selected before gets its icon back first.
func (s *Surface) Select(id uuid.UUID, selectedIcon string) (Marker, bool) {
	i, ok := s.index[id]
	if !ok {
		return Marker{}, false
	}

	if s.selection != nil && s.selection.MarkerID == id {
		return s.markers[i], true
	}
	s.ClearSelection()

	s.selection = &Selection{MarkerID: id, PreviousIcon: s.markers[i].Icon}
	s.markers[i].Icon = selectedIcon
	return s.markers[i], true
}

// ClearSelection restores the selected marker icon.
// It reports false when nothing was selected.
func (s *Surface) ClearSelection() bool {
	if s.selection == nil {
		return false
	}
	if i, ok := s.index[s.selection.MarkerID]; ok {
		s.markers[i].Icon = s.selection.PreviousIcon
	}
	s.selection = nil
	return true
}

// Selected returns the selected marker.
func (s *Surface) Selected() (Marker, bool) {
	if s.selection == nil {
		return Marker{}, false
	}
	return s.Marker(s.selection.MarkerID)
}

// Clear removes all markers and the selection.
func (s *Surface) Clear() {
	s.markers = nil
	s.index = make(map[uuid.UUID]int)
	s.selection = nil
}

// FeatureCollection exports markers as GeoJSON points.
func (s *Surface) FeatureCollection() geo.GeoJSONFeatureCollection {
	fc := geo.NewFeatureCollection(len(s.markers))

	var selected uuid.UUID
	if s.selection != nil {
		selected = s.selection.MarkerID
	}

	for _, m := range s.markers {
		props := map[string]any{
			"id":       m.ID.String(),
			"icon":     m.Icon,
			"selected": m.ID == selected,
		}
		if m.Place.Name != "" {
			props["name"] = m.Place.Name
		}
		if m.Place.PlaceID != "" {
			props["place_id"] = m.Place.PlaceID
		}
		if m.Place.Vicinity != "" {
			props["vicinity"] = m.Place.Vicinity
		}
		fc.Features = append(fc.Features, geo.PointFeature(m.Position, props))
	}

	return fc
}
