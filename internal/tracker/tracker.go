// Package tracker drives location permission and keeps the camera on
// the user's position.
package tracker

import (
	"fmt"

	"github.com/woozymasta/nearmap/internal/geo"
	"github.com/woozymasta/nearmap/internal/mapview"

	"github.com/rs/zerolog/log"
)

// State of the controller.
type State int

const (
	// Unauthorized waits for a permission grant.
	Unauthorized State = iota
	// AwaitingFix has permission and waits for the first position.
	AwaitingFix
	// Tracking follows every position update.
	Tracking
)

func (s State) String() string {
	switch s {
	case Unauthorized:
		return "unauthorized"
	case AwaitingFix:
		return "awaiting_fix"
	case Tracking:
		return "tracking"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Provider is the device location subsystem.
type Provider interface {
	RequestWhenInUseAuthorization()
	StartUpdatingLocation()
}

// Map is the part of the map the controller drives.
type Map interface {
	SetMyLocationEnabled(enabled bool)
	UpdateMyLocation(c geo.Coordinate)
	SetCamera(c mapview.Camera)
}

// Controller is the location permission and camera state machine.
// Its methods must run on the render loop.
type Controller struct {
	provider Provider
	view     Map
	zoom     float64
	state    State
}

// New creates a controller that centers the camera at zoom.
func New(provider Provider, view Map, zoom float64) *Controller {
	return &Controller{provider: provider, view: view, zoom: zoom}
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Start asks the provider for permission.
func (c *Controller) Start() {
	log.Debug().Msg("Requesting when-in-use location authorization")
	c.provider.RequestWhenInUseAuthorization()
}

// AuthorizationChanged handles a permission change. A grant starts
// location updates; anything else leaves the state untouched.
func (c *Controller) AuthorizationChanged(status AuthorizationStatus) {
	if !status.Authorized() {
		log.Info().Str("status", status.String()).Msg("Location not authorized, map stays where it is")
		return
	}
	if c.state != Unauthorized {
		return
	}

	c.provider.StartUpdatingLocation()
	c.view.SetMyLocationEnabled(true)
	c.state = AwaitingFix

	log.Info().Str("status", status.String()).Msg("Location authorized, waiting for first fix")
}

// LocationsUpdated handles a batch of fixes. The first fix of the batch
// becomes the user's position and the camera is centered on it.
func (c *Controller) LocationsUpdated(fixes []geo.Coordinate) {
	if c.state == Unauthorized {
		log.Debug().Int("fixes", len(fixes)).Msg("Ignoring location update before authorization")
		return
	}
	if len(fixes) == 0 {
		log.Debug().Msg("Unable to find locations")
		return
	}

	fix := fixes[0]
	if !fix.Valid() {
		log.Debug().Str("fix", fix.String()).Msg("Ignoring invalid location fix")
		return
	}

	c.view.UpdateMyLocation(fix)
	c.view.SetCamera(mapview.Camera{Target: fix, Zoom: c.zoom})

	if c.state == AwaitingFix {
		log.Info().Str("fix", fix.String()).Msg("First location fix, tracking")
	}
	c.state = Tracking
}
