// Package icons prepares marker icon images for the map page.
package icons

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Ext is the extension of produced icon files.
const Ext = ".webp"

// Path returns the icon file path for name inside dir.
func Path(dir, name string) string {
	return filepath.Join(dir, name+Ext)
}

// Process converts every source into dir. Sources map icon names to a
// local path or http(s) URL. Failures are logged and counted; the
// returned error reports how many icons failed.
func Process(client *http.Client, sources map[string]string, dir string, size int, force bool) error {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		if err := Convert(client, sources[name], Path(dir, name), size, force); err != nil {
			log.Error().Err(err).Str("icon", name).Msg("Failed to convert icon")
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d icons failed", failed, len(names))
	}
	return nil
}

// Convert loads source, fits it into a transparent size x size square
// keeping the aspect ratio, and writes it to outPath as lossless webp.
// An existing non-empty outPath is kept unless force is set.
func Convert(client *http.Client, source, outPath string, size int, force bool) error {
	if size <= 0 {
		return fmt.Errorf("icon size must be positive, got %d", size)
	}

	if !force {
		if info, err := os.Stat(outPath); err == nil && info.Size() > 0 {
			log.Debug().Str("path", outPath).Msg("Icon exists, skipping")
			return nil
		}
	}

	src, err := loadSourceImage(client, source)
	if err != nil {
		return err
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, fitRect(src.Bounds(), size), src, src.Bounds(), draw.Over, nil)

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", outPath).Msg("Failed to close file")
		}
	}()

	if err := webp.Encode(f, dst, &webp.Options{Lossless: true}); err != nil {
		return fmt.Errorf("encode %s: %w", outPath, err)
	}

	log.Info().Str("source", source).Str("path", outPath).Int("size", size).Msg("Icon written")
	return nil
}

// fitRect centers a rectangle with the aspect ratio of b inside a size x size square.
func fitRect(b image.Rectangle, size int) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return image.Rect(0, 0, size, size)
	}

	dw, dh := size, size
	if w > h {
		dh = max(1, h*size/w)
	} else if h > w {
		dw = max(1, w*size/h)
	}

	x0 := (size - dw) / 2
	y0 := (size - dh) / 2
	return image.Rect(x0, y0, x0+dw, y0+dh)
}

func loadSourceImage(client *http.Client, source string) (image.Image, error) {
	var reader io.Reader

	if strings.HasPrefix(source, "http") {
		log.Debug().Str("url", source).Msg("Downloading icon source")
		resp, err := client.Get(source)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("download failed: %d", resp.StatusCode)
		}

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(bodyBytes)
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()

		reader = f
	}

	img, format, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	log.Debug().Str("format", format).Str("source", source).Msg("Icon source decoded")
	return img, nil
}
