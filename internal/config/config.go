// Package config handles configuration loading and shared data structures.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Default values of the nearby search and camera.
const (
	DefaultEndpoint = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	DefaultRadius   = 70
	DefaultZoom     = 20
	DefaultTimeout  = 15 * time.Second
)

// Config represents the root configuration file structure.
type Config struct {
	Places   Places   `yaml:"places"`
	Markers  Markers  `yaml:"markers"`
	Location Location `yaml:"location"`
	Camera   Camera   `yaml:"camera"`
}

// Places configures the nearby places search.
type Places struct {
	Endpoint  string        `yaml:"endpoint"`
	APIKey    string        `yaml:"api_key,omitempty"`
	Radius    int           `yaml:"radius"`               // meters
	Timeout   time.Duration `yaml:"timeout,omitempty"`    // per request
	RateLimit float64       `yaml:"rate_limit,omitempty"` // requests per second, 0 is unlimited
}

// Camera configures how the map follows the user.
type Camera struct {
	Zoom float64 `yaml:"zoom"`
}

// Markers configures marker icons.
type Markers struct {
	// source images for cmd/icons, keyed by icon name
	Sources      map[string]string `yaml:"sources,omitempty"`
	Icons        []string          `yaml:"icons"`
	SelectedIcon string            `yaml:"selected_icon"`
	Dir          string            `yaml:"dir"`
	Size         int               `yaml:"size,omitempty"`
}

// Location configures the replayed location provider.
type Location struct {
	Track     string        `yaml:"track,omitempty"`
	Interval  time.Duration `yaml:"interval,omitempty"`
	AutoGrant bool          `yaml:"auto_grant,omitempty"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Places: Places{
			Endpoint: DefaultEndpoint,
			Radius:   DefaultRadius,
			Timeout:  DefaultTimeout,
		},
		Camera: Camera{Zoom: DefaultZoom},
		Markers: Markers{
			Icons:        []string{"marker_alert", "marker_police", "marker_alertminor"},
			SelectedIcon: "marker_selected",
			Dir:          "icons",
			Size:         48,
		},
		Location: Location{Interval: 2 * time.Second},
	}
}

// Load reads and parses the YAML configuration file from the specified path.
// Values absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to defaults
// when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", path).Msg("Configuration file not found, using defaults")
		return Default(), nil
	}
	return cfg, err
}

// LoadDotEnv loads variables from .env files into the process environment.
// Existing variables are not overridden and a missing file is not an error.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			log.Debug().Str("file", f).Msg("No env file loaded, assuming variables are set directly")
		}
	}
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	if c.Places.Endpoint == "" {
		return errors.New("places endpoint is empty")
	}
	if c.Places.APIKey == "" {
		return errors.New("places api key is empty, set PLACES_API_KEY")
	}
	if c.Places.Radius <= 0 {
		return fmt.Errorf("places radius must be positive, got %d", c.Places.Radius)
	}
	if c.Camera.Zoom <= 0 {
		return fmt.Errorf("camera zoom must be positive, got %v", c.Camera.Zoom)
	}
	if len(c.Markers.Icons) == 0 {
		return errors.New("at least one marker icon is required")
	}
	return nil
}
