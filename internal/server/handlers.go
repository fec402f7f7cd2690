// Package server exposes the map state and actions over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/woozymasta/nearmap/internal/app"
	"github.com/woozymasta/nearmap/internal/geo"
	"github.com/woozymasta/nearmap/internal/icons"
	"github.com/woozymasta/nearmap/internal/tracker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	etagCap     = 64
	maxBodySize = 64 << 10
)

// HandleIndex serves the map page.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	etag := fmt.Sprintf(`"%x"`, len(s.IndexHTML))

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// HandleIcon serves a marker icon from the icons directory.
func (s *ServerContext) HandleIcon(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	name, ok := strings.CutSuffix(file, icons.Ext)
	if !ok || name == "" || strings.ContainsAny(name, `/\.`) {
		http.NotFound(w, r)
		return
	}

	if !s.serveFile(w, r, icons.Path(s.IconsDir, name), "image/webp") {
		http.NotFound(w, r)
	}
}

// HandleState serves camera, tracking state, user position and selection.
func (s *ServerContext) HandleState(w http.ResponseWriter, r *http.Request) {
	var snap app.Snapshot
	if !s.call(w, r, func() { snap = s.App.Snapshot() }) {
		return
	}
	writeJSON(w, http.StatusOK, "application/json", snap)
}

// HandleMarkers serves all markers as a GeoJSON feature collection.
func (s *ServerContext) HandleMarkers(w http.ResponseWriter, r *http.Request) {
	var fc geo.GeoJSONFeatureCollection
	if !s.call(w, r, func() { fc = s.Surface.FeatureCollection() }) {
		return
	}
	writeJSON(w, http.StatusOK, "application/geo+json", fc)
}

// HandleNearby starts a nearby search. With lat/lng query parameters it
// searches around that position, otherwise around the user.
func (s *ServerContext) HandleNearby(w http.ResponseWriter, r *http.Request) {
	// the search outlives the request
	ctx := context.WithoutCancel(r.Context())
	q := r.URL.Query()

	if q.Has("lat") || q.Has("lng") {
		c, err := parseCoordinate(q.Get("lat"), q.Get("lng"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !s.call(w, r, func() { s.App.FindNearby(ctx, c) }) {
			return
		}
		writeJSON(w, http.StatusAccepted, "application/json", map[string]any{"location": c})
		return
	}

	var started bool
	if !s.call(w, r, func() { started = s.App.AroundMe(ctx) }) {
		return
	}
	if !started {
		http.Error(w, "user location is not known yet", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, "application/json", map[string]any{"around_me": true})
}

// HandleSelect selects a marker and returns its detail.
func (s *ServerContext) HandleSelect(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid marker id", http.StatusBadRequest)
		return
	}

	var (
		detail app.Detail
		found  bool
	)
	if !s.call(w, r, func() { detail, found = s.App.SelectMarker(id) }) {
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, "application/json", detail)
}

// HandleCloseSelection closes the detail of the selected marker.
func (s *ServerContext) HandleCloseSelection(w http.ResponseWriter, r *http.Request) {
	var closed bool
	if !s.call(w, r, func() { closed = s.App.CloseDetail() }) {
		return
	}
	if !closed {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type authorizationRequest struct {
	Status tracker.AuthorizationStatus `json:"status"`
}

// HandleAuthorization delivers a location permission change.
func (s *ServerContext) HandleAuthorization(w http.ResponseWriter, r *http.Request) {
	var req authorizationRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var state tracker.State
	if !s.call(w, r, func() {
		tr := s.App.Tracker()
		tr.AuthorizationChanged(req.Status)
		state = tr.State()
	}) {
		return
	}
	writeJSON(w, http.StatusOK, "application/json", map[string]any{"tracking_state": state})
}

type locationRequest struct {
	Fixes []geo.Coordinate `json:"fixes"`
}

// HandleLocation delivers a batch of location fixes.
func (s *ServerContext) HandleLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var state tracker.State
	if !s.call(w, r, func() {
		tr := s.App.Tracker()
		tr.LocationsUpdated(req.Fixes)
		state = tr.State()
	}) {
		return
	}
	writeJSON(w, http.StatusOK, "application/json", map[string]any{"tracking_state": state})
}

// call runs fn on the render loop, answering 503 when it cannot.
func (s *ServerContext) call(w http.ResponseWriter, r *http.Request, fn func()) bool {
	if err := s.Loop.Call(r.Context(), fn); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("Render loop unavailable")
		}
		http.Error(w, "map is not available", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// serveFile tries to serve a file from disk with ETag generation.
// It returns true if the file was found and served (or 304).
func (s *ServerContext) serveFile(w http.ResponseWriter, r *http.Request, path string, contentType string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	etag := string(buf)

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeFile(w, r, filepath.Clean(path))
	return true
}

func writeJSON(w http.ResponseWriter, status int, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseCoordinate(latStr, lngStr string) (geo.Coordinate, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return geo.Coordinate{}, errors.New("invalid latitude")
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return geo.Coordinate{}, errors.New("invalid longitude")
	}

	c := geo.Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return geo.Coordinate{}, errors.New("coordinate out of range")
	}
	return c, nil
}
