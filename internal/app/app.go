// Package app is the home screen controller: it connects the location
// tracker, the nearby places fetcher and the map surface.
//
// Unless stated otherwise, App methods must run on the render loop.
package app

import (
	"context"
	"math/rand/v2"
	"sync/atomic"

	"github.com/woozymasta/nearmap/internal/geo"
	"github.com/woozymasta/nearmap/internal/mapview"
	"github.com/woozymasta/nearmap/internal/places"
	"github.com/woozymasta/nearmap/internal/tracker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// View is the map surface as seen by the controller.
type View interface {
	tracker.Map
	Camera() (mapview.Camera, bool)
	MyLocation() (geo.Coordinate, bool)
	AddMarker(pos geo.Coordinate, icon string, place mapview.PlaceInfo) mapview.Marker
	Markers() []mapview.Marker
	Select(id uuid.UUID, selectedIcon string) (mapview.Marker, bool)
	Selected() (mapview.Marker, bool)
	ClearSelection() bool
}

// Fetcher looks up places around a coordinate and reports the result,
// or nil, to done from any goroutine.
type Fetcher interface {
	Nearby(ctx context.Context, c geo.Coordinate, done func(*places.Response))
}

// Dispatcher runs functions on the render loop.
type Dispatcher interface {
	Post(fn func()) error
}

// Options configures the controller.
type Options struct {
	SelectedIcon string
	Icons        []string
	Zoom         float64
}

// Detail is what the detail panel shows for a selected marker.
type Detail struct {
	Distance *float64       `json:"distance_m,omitempty"` // from the user, when known
	Marker   mapview.Marker `json:"marker"`
}

// Snapshot is a read-only view of the home screen state.
type Snapshot struct {
	Camera     *mapview.Camera `json:"camera,omitempty"`
	MyLocation *geo.Coordinate `json:"my_location,omitempty"`
	Selected   *Detail         `json:"selected,omitempty"`
	State      tracker.State   `json:"tracking_state"`
	Markers    int             `json:"markers"`
	InFlight   int64           `json:"in_flight"`
}

// App is the home screen controller.
type App struct {
	view     View
	fetcher  Fetcher
	loop     Dispatcher
	tracker  *tracker.Controller
	pickIcon func(icons []string) string
	opts     Options
	inFlight atomic.Int64
}

// New creates the controller.
func New(view View, fetcher Fetcher, loop Dispatcher, tr *tracker.Controller, opts Options) *App {
	return &App{
		view:     view,
		fetcher:  fetcher,
		loop:     loop,
		tracker:  tr,
		opts:     opts,
		pickIcon: randomIcon,
	}
}

// SetIconPicker replaces the random marker icon choice.
func (a *App) SetIconPicker(pick func(icons []string) string) {
	a.pickIcon = pick
}

// Tracker returns the location controller.
func (a *App) Tracker() *tracker.Controller {
	return a.tracker
}

// AroundMe centers the camera on the user and searches around them.
// It reports false when the user's position is not known yet.
func (a *App) AroundMe(ctx context.Context) bool {
	me, ok := a.view.MyLocation()
	if !ok {
		log.Debug().Msg("Around me requested before the first location fix")
		return false
	}

	a.view.SetCamera(mapview.Camera{Target: me, Zoom: a.opts.Zoom, Animated: true})
	a.FindNearby(ctx, me)
	return true
}

// FindNearby searches around c and places a marker for every result.
// Markers are added by loop tasks posted from the fetch completion.
// Overlapping searches are independent and their markers add up.
// Safe to call from any goroutine.
func (a *App) FindNearby(ctx context.Context, c geo.Coordinate) {
	a.inFlight.Add(1)
	log.Debug().Str("location", c.String()).Msg("Searching nearby places")

	a.fetcher.Nearby(ctx, c, func(res *places.Response) {
		defer a.inFlight.Add(-1)

		if res == nil {
			log.Debug().Str("location", c.String()).Msg("No nearby places result")
			return
		}

		found := places.Places(res)
		log.Info().
			Str("location", c.String()).
			Int("results", len(res.Results)).
			Int("placeable", len(found)).
			Msg("Nearby places received")

		for _, p := range found {
			if err := a.loop.Post(func() { a.placeMarker(p) }); err != nil {
				log.Warn().Err(err).Msg("Dropping marker placement")
				return
			}
		}
	})
}

func (a *App) placeMarker(p places.Place) {
	a.view.AddMarker(p.Coordinate, a.pickIcon(a.opts.Icons), mapview.PlaceInfo{
		Name:     p.Name,
		PlaceID:  p.PlaceID,
		Vicinity: p.Vicinity,
	})
}

// SelectMarker highlights a marker and returns its detail.
func (a *App) SelectMarker(id uuid.UUID) (Detail, bool) {
	m, ok := a.view.Select(id, a.opts.SelectedIcon)
	if !ok {
		return Detail{}, false
	}
	return a.detail(m), true
}

// CloseDetail drops the selection and restores the marker icon.
func (a *App) CloseDetail() bool {
	return a.view.ClearSelection()
}

// Snapshot collects the current state.
func (a *App) Snapshot() Snapshot {
	s := Snapshot{
		Markers:  len(a.view.Markers()),
		InFlight: a.inFlight.Load(),
	}
	if a.tracker != nil {
		s.State = a.tracker.State()
	}
	if cam, ok := a.view.Camera(); ok {
		s.Camera = &cam
	}
	if me, ok := a.view.MyLocation(); ok {
		s.MyLocation = &me
	}
	if m, ok := a.view.Selected(); ok {
		d := a.detail(m)
		s.Selected = &d
	}
	return s
}

func (a *App) detail(m mapview.Marker) Detail {
	d := Detail{Marker: m}
	if me, ok := a.view.MyLocation(); ok {
		dist := geo.Distance(me, m.Position)
		d.Distance = &dist
	}
	return d
}

func randomIcon(icons []string) string {
	if len(icons) == 0 {
		return ""
	}
	return icons[rand.IntN(len(icons))]
}
