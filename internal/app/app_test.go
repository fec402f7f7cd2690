package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/woozymasta/nearmap/internal/geo"
	"github.com/woozymasta/nearmap/internal/loop"
	"github.com/woozymasta/nearmap/internal/mapview"
	"github.com/woozymasta/nearmap/internal/places"
	"github.com/woozymasta/nearmap/internal/tracker"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopCheckedSurface records whether markers were added from a loop task.
type loopCheckedSurface struct {
	*mapview.Surface
	loop    *loop.Loop
	offLoop int
}

func (s *loopCheckedSurface) AddMarker(pos geo.Coordinate, icon string, place mapview.PlaceInfo) mapview.Marker {
	if !s.loop.Executing() {
		s.offLoop++
	}
	return s.Surface.AddMarker(pos, icon, place)
}

// fakeFetcher answers from a fresh goroutine, like a network completion.
type fakeFetcher struct {
	mu    sync.Mutex
	body  string
	calls []geo.Coordinate
}

func (f *fakeFetcher) Nearby(_ context.Context, c geo.Coordinate, done func(*places.Response)) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	body := f.body
	f.mu.Unlock()

	go func() {
		if body == "" {
			done(nil)
			return
		}
		var res places.Response
		if err := json.Unmarshal([]byte(body), &res); err != nil {
			done(nil)
			return
		}
		done(&res)
	}()
}

type noopProvider struct{}

func (noopProvider) RequestWhenInUseAuthorization() {}
func (noopProvider) StartUpdatingLocation()         {}

type fixture struct {
	app     *App
	loop    *loop.Loop
	surface *loopCheckedSurface
	fetcher *fakeFetcher
}

func newFixture(t *testing.T, body string) *fixture {
	t.Helper()

	l := loop.New(16)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	s := &loopCheckedSurface{Surface: mapview.NewSurface(), loop: l}
	f := &fakeFetcher{body: body}
	tr := tracker.New(noopProvider{}, s, 20)
	a := New(s, f, l, tr, Options{
		Zoom:         20,
		Icons:        []string{"marker_alert", "marker_police", "marker_alertminor"},
		SelectedIcon: "marker_selected",
	})

	return &fixture{app: a, loop: l, surface: s, fetcher: f}
}

func (fx *fixture) call(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, fx.loop.Call(context.Background(), fn))
}

func (fx *fixture) markers(t *testing.T) []mapview.Marker {
	t.Helper()
	var ms []mapview.Marker
	fx.call(t, func() { ms = fx.surface.Markers() })
	return ms
}

func (fx *fixture) waitMarkers(t *testing.T, n int) []mapview.Marker {
	t.Helper()
	var ms []mapview.Marker
	require.Eventually(t, func() bool {
		ms = fx.markers(t)
		return len(ms) == n && fx.app.inFlight.Load() == 0
	}, 5*time.Second, 5*time.Millisecond)
	return ms
}

func (fx *fixture) track(t *testing.T, c geo.Coordinate) {
	t.Helper()
	fx.call(t, func() {
		fx.app.Tracker().AuthorizationChanged(tracker.AuthorizedWhenInUse)
		fx.app.Tracker().LocationsUpdated([]geo.Coordinate{c})
	})
}

func TestAroundMeWithoutLocation(t *testing.T) {
	fx := newFixture(t, `{"results": []}`)

	var ok bool
	fx.call(t, func() { ok = fx.app.AroundMe(context.Background()) })
	assert.False(t, ok)
	assert.Empty(t, fx.fetcher.calls)
}

func TestAroundMePlacesMarkersOnLoop(t *testing.T) {
	fx := newFixture(t, `{"results": [{"name": "Cafe", "geometry": {"location": {"lat": 1.0, "lng": 2.0}}}]}`)
	me := geo.Coordinate{Lat: 1.0001, Lng: 2.0001}
	fx.track(t, me)

	var ok bool
	fx.call(t, func() { ok = fx.app.AroundMe(context.Background()) })
	require.True(t, ok)

	ms := fx.waitMarkers(t, 1)
	assert.Equal(t, geo.Coordinate{Lat: 1, Lng: 2}, ms[0].Position)
	assert.Equal(t, "Cafe", ms[0].Place.Name)
	assert.Contains(t, []string{"marker_alert", "marker_police", "marker_alertminor"}, ms[0].Icon)
	assert.Equal(t, []geo.Coordinate{me}, fx.fetcher.calls)

	var cam mapview.Camera
	fx.call(t, func() { cam, _ = fx.surface.Camera() })
	assert.True(t, cam.Animated)
	assert.Equal(t, me, cam.Target)

	fx.call(t, func() { assert.Zero(t, fx.surface.offLoop) })
}

func TestDuplicateResultsGiveDistinctMarkers(t *testing.T) {
	fx := newFixture(t, `{"results": [
		{"geometry": {"location": {"lat": 5, "lng": 6}}},
		{"geometry": {"location": {"lat": 5, "lng": 6}}}
	]}`)

	fx.app.FindNearby(context.Background(), geo.Coordinate{Lat: 5, Lng: 6})

	ms := fx.waitMarkers(t, 2)
	assert.NotEqual(t, ms[0].ID, ms[1].ID)
	assert.Equal(t, ms[0].Position, ms[1].Position)
}

func TestOverlappingFetchesAddUp(t *testing.T) {
	fx := newFixture(t, `{"results": [{"geometry": {"location": {"lat": 5, "lng": 6}}}]}`)

	for range 3 {
		fx.app.FindNearby(context.Background(), geo.Coordinate{Lat: 5, Lng: 6})
	}

	fx.waitMarkers(t, 3)
	fx.call(t, func() { assert.Zero(t, fx.surface.offLoop) })
}

func TestNoResultPlacesNothing(t *testing.T) {
	for _, body := range []string{"", `{"status": "REQUEST_DENIED"}`} {
		fx := newFixture(t, body)
		fx.app.FindNearby(context.Background(), geo.Coordinate{Lat: 1, Lng: 2})

		require.Eventually(t, func() bool { return fx.app.inFlight.Load() == 0 }, 5*time.Second, 5*time.Millisecond)
		assert.Empty(t, fx.markers(t))
	}
}

func TestSelectAndCloseDetail(t *testing.T) {
	fx := newFixture(t, `{"results": [{"geometry": {"location": {"lat": 0, "lng": 0.001}}}]}`)
	fx.app.SetIconPicker(func([]string) string { return "marker_police" })
	fx.track(t, geo.Coordinate{Lat: 0, Lng: 0})
	fx.app.FindNearby(context.Background(), geo.Coordinate{Lat: 0, Lng: 0})
	ms := fx.waitMarkers(t, 1)

	var (
		d  Detail
		ok bool
	)
	fx.call(t, func() { d, ok = fx.app.SelectMarker(ms[0].ID) })
	require.True(t, ok)
	assert.Equal(t, "marker_selected", d.Marker.Icon)
	require.NotNil(t, d.Distance)
	assert.InDelta(t, 111.2, *d.Distance, 0.5)

	var snap Snapshot
	fx.call(t, func() { snap = fx.app.Snapshot() })
	require.NotNil(t, snap.Selected)
	assert.Equal(t, ms[0].ID, snap.Selected.Marker.ID)
	assert.Equal(t, tracker.Tracking, snap.State)
	assert.Equal(t, 1, snap.Markers)

	var closed bool
	fx.call(t, func() { closed = fx.app.CloseDetail() })
	assert.True(t, closed)
	assert.Equal(t, "marker_police", fx.markers(t)[0].Icon)

	fx.call(t, func() { closed = fx.app.CloseDetail() })
	assert.False(t, closed)

	fx.call(t, func() { _, ok = fx.app.SelectMarker(uuid.New()) })
	assert.False(t, ok)
}

func TestRandomIcon(t *testing.T) {
	assert.Empty(t, randomIcon(nil))
	icons := []string{"a", "b"}
	for range 20 {
		assert.Contains(t, icons, randomIcon(icons))
	}
}
