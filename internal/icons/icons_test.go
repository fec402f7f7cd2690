package icons

import (
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func decodeWebP(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := webp.Decode(f)
	require.NoError(t, err)
	return img
}

func TestFitRect(t *testing.T) {
	assert.Equal(t, image.Rect(0, 0, 48, 48), fitRect(image.Rect(0, 0, 10, 10), 48))
	assert.Equal(t, image.Rect(0, 12, 48, 36), fitRect(image.Rect(0, 0, 100, 50), 48))
	assert.Equal(t, image.Rect(12, 0, 36, 48), fitRect(image.Rect(0, 0, 50, 100), 48))
	assert.Equal(t, image.Rect(0, 0, 8, 8), fitRect(image.Rectangle{}, 8))
}

func TestConvertLocalFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pin.png")
	writePNG(t, src, 64, 32)

	out := Path(filepath.Join(dir, "icons"), "marker_alert")
	require.NoError(t, Convert(http.DefaultClient, src, out, 24, false))

	img := decodeWebP(t, out)
	assert.Equal(t, 24, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())

	// corner stays transparent, center is painted
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Zero(t, a)
	_, _, _, a = img.At(12, 12).RGBA()
	assert.NotZero(t, a)
}

func TestConvertSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "marker.webp")
	require.NoError(t, os.WriteFile(out, []byte("keep"), 0o644))

	// source does not exist, but nothing is loaded without force
	require.NoError(t, Convert(http.DefaultClient, filepath.Join(dir, "nope.png"), out, 16, false))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))

	assert.Error(t, Convert(http.DefaultClient, filepath.Join(dir, "nope.png"), out, 16, true))
}

func TestConvertFromURL(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pin.png")
	writePNG(t, src, 16, 16)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pin.png" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, src)
	}))
	defer srv.Close()

	out := Path(dir, "remote")
	require.NoError(t, Convert(srv.Client(), srv.URL+"/pin.png", out, 8, false))
	assert.Equal(t, 8, decodeWebP(t, out).Bounds().Dx())

	assert.Error(t, Convert(srv.Client(), srv.URL+"/missing.png", Path(dir, "missing"), 8, false))
}

func TestProcessCountsFailures(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pin.png")
	writePNG(t, src, 16, 16)

	err := Process(http.DefaultClient, map[string]string{
		"marker_alert":  src,
		"marker_broken": filepath.Join(dir, "missing.png"),
	}, filepath.Join(dir, "icons"), 8, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")

	_, statErr := os.Stat(Path(filepath.Join(dir, "icons"), "marker_alert"))
	assert.NoError(t, statErr)
}

func TestConvertRejectsBadSize(t *testing.T) {
	assert.Error(t, Convert(http.DefaultClient, "x.png", filepath.Join(t.TempDir(), "x.webp"), 0, true))
}
