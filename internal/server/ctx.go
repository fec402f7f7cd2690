package server

import (
	"context"
	"net/http"

	"github.com/woozymasta/nearmap/assets"
	"github.com/woozymasta/nearmap/internal/app"
	"github.com/woozymasta/nearmap/internal/loop"
	"github.com/woozymasta/nearmap/internal/mapview"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Caller runs a function on the render loop and waits for it.
type Caller interface {
	Call(ctx context.Context, fn func()) error
}

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Loop      Caller
	App       *app.App
	Surface   *mapview.Surface
	IconsDir  string
	IndexHTML []byte
}

// NewServerContext wires the handlers to the home controller and the map
// surface. Both are only touched through l.
func NewServerContext(l *loop.Loop, a *app.App, surface *mapview.Surface, iconsDir string) *ServerContext {
	log.Info().Str("icons_dir", iconsDir).Msg("Initializing server context")

	return &ServerContext{
		Loop:      l,
		App:       a,
		Surface:   surface,
		IconsDir:  iconsDir,
		IndexHTML: assets.Index,
	}
}

// Routes returns the HTTP handler with all routes and request logging.
func (s *ServerContext) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.HandleState)
	mux.HandleFunc("GET /api/markers", s.HandleMarkers)
	mux.HandleFunc("POST /api/nearby", s.HandleNearby)
	mux.HandleFunc("POST /api/markers/{id}/select", s.HandleSelect)
	mux.HandleFunc("DELETE /api/selection", s.HandleCloseSelection)
	mux.HandleFunc("POST /api/authorization", s.HandleAuthorization)
	mux.HandleFunc("POST /api/location", s.HandleLocation)
	mux.HandleFunc("GET /icons/{file}", s.HandleIcon)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /", s.HandleIndex)

	return RequestLogger(mux)
}
