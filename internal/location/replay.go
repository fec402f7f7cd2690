// Package location provides a device location provider that replays a
// recorded track.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/woozymasta/nearmap/internal/geo"
	"github.com/woozymasta/nearmap/internal/loop"
	"github.com/woozymasta/nearmap/internal/tracker"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Sink receives provider events. It is called from render loop tasks.
type Sink interface {
	AuthorizationChanged(status tracker.AuthorizationStatus)
	LocationsUpdated(fixes []geo.Coordinate)
}

// Dispatcher runs functions on the render loop.
type Dispatcher interface {
	Post(fn func()) error
}

// Replay feeds recorded fixes to a Sink at a fixed interval once
// location updates have been started.
type Replay struct {
	loop      Dispatcher
	sink      Sink
	started   chan struct{}
	fixes     []geo.Coordinate
	interval  time.Duration
	startOnce sync.Once
	autoGrant bool
}

// NewReplay creates a provider. With autoGrant the provider answers an
// authorization request with a when-in-use grant; otherwise permission
// has to come from elsewhere.
func NewReplay(dispatcher Dispatcher, fixes []geo.Coordinate, interval time.Duration, autoGrant bool) *Replay {
	if interval <= 0 {
		interval = time.Second
	}
	return &Replay{
		loop:      dispatcher,
		fixes:     fixes,
		interval:  interval,
		autoGrant: autoGrant,
		started:   make(chan struct{}),
	}
}

// SetSink sets the event receiver. It must be called before Run.
func (r *Replay) SetSink(s Sink) {
	r.sink = s
}

// RequestWhenInUseAuthorization implements tracker.Provider.
func (r *Replay) RequestWhenInUseAuthorization() {
	if !r.autoGrant {
		log.Info().Msg("Location authorization requested, waiting for an external grant")
		return
	}

	// Called from a loop task, so the answer is posted asynchronously.
	go func() {
		if err := r.loop.Post(func() { r.sink.AuthorizationChanged(tracker.AuthorizedWhenInUse) }); err != nil {
			log.Warn().Err(err).Msg("Unable to deliver authorization grant")
		}
	}()
}

// StartUpdatingLocation implements tracker.Provider.
func (r *Replay) StartUpdatingLocation() {
	r.startOnce.Do(func() { close(r.started) })
}

// Run waits for location updates to start and then replays the track.
// It returns when the track is exhausted or ctx is done.
func (r *Replay) Run(ctx context.Context) error {
	if r.sink == nil {
		return errors.New("replay sink is not set")
	}

	select {
	case <-ctx.Done():
		return nil
	case <-r.started:
	}

	if len(r.fixes) == 0 {
		log.Info().Msg("No track to replay, expecting locations over the API")
		return nil
	}

	log.Info().
		Int("fixes", len(r.fixes)).
		Dur("interval", r.interval).
		Msg("Replaying location track")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for i, fix := range r.fixes {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}

		if err := r.loop.Post(func() { r.sink.LocationsUpdated([]geo.Coordinate{fix}) }); err != nil {
			if ctx.Err() != nil || errors.Is(err, loop.ErrClosed) {
				log.Debug().Err(err).Int("fix", i).Msg("Render loop stopped, ending replay")
				return nil
			}
			return fmt.Errorf("deliver fix %d: %w", i, err)
		}
	}

	log.Info().Msg("Location track finished")
	return nil
}

// LoadTrack reads Point features from a GeoJSON (.geojson, .json) or
// YAML (.yaml, .yml) feature collection, in file order.
// Features that are not valid points are skipped.
func LoadTrack(path string) ([]geo.Coordinate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fc geo.GeoJSONFeatureCollection
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse track %s: %w", path, err)
	}

	fixes := make([]geo.Coordinate, 0, len(fc.Features))
	for i, f := range fc.Features {
		c, ok := f.Point()
		if !ok {
			log.Debug().Int("feature", i).Str("path", path).Msg("Skipping non point track feature")
			continue
		}
		fixes = append(fixes, c)
	}

	return fixes, nil
}
