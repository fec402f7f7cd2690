package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/nearmap/internal/app"
	"github.com/woozymasta/nearmap/internal/config"
	"github.com/woozymasta/nearmap/internal/geo"
	"github.com/woozymasta/nearmap/internal/location"
	"github.com/woozymasta/nearmap/internal/logger"
	"github.com/woozymasta/nearmap/internal/loop"
	"github.com/woozymasta/nearmap/internal/mapview"
	"github.com/woozymasta/nearmap/internal/places"
	"github.com/woozymasta/nearmap/internal/server"
	"github.com/woozymasta/nearmap/internal/tracker"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string  `short:"c" long:"config"  env:"CONFIG_FILE"    description:"Path to configuration file" default:"config.yaml"`
	EnvFile    string  `short:"e" long:"env"     env:"ENV_FILE"       description:"Path to .env file" default:".env"`
	Addr       string  `short:"a" long:"addr"    env:"LISTEN_ADDRESS" description:"Address to listen on" default:"0.0.0.0"`
	Port       int     `short:"p" long:"port"    env:"LISTEN_PORT"    description:"Port to listen on" default:"8080"`
	APIKey     string  `short:"k" long:"api-key" env:"PLACES_API_KEY" description:"Places API key"`
	Radius     int     `short:"r" long:"radius"  env:"PLACES_RADIUS"  description:"Search radius in meters, overrides config"`
	Zoom       float64 `short:"z" long:"zoom"    env:"CAMERA_ZOOM"    description:"Camera zoom, overrides config"`
	Track      string  `short:"t" long:"track"   env:"LOCATION_TRACK" description:"GeoJSON or YAML track to replay, overrides config"`
	AutoGrant  bool    `short:"g" long:"grant"   env:"LOCATION_GRANT" description:"Grant location permission on request"`
}

func main() {
	var opts Options

	// .env has to be loaded before flags read the environment
	config.LoadDotEnv(envFileFromArgs(os.Args[1:]))

	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.LoadOrDefault(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyOptions(cfg, &opts)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, fmt.Sprintf("%s:%d", opts.Addr, opts.Port)); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}

	log.Info().Msg("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, listenAddr string) error {
	client, err := places.NewClient(places.Options{
		Endpoint:  cfg.Places.Endpoint,
		APIKey:    cfg.Places.APIKey,
		Radius:    cfg.Places.Radius,
		RateLimit: cfg.Places.RateLimit,
	}, nil, cfg.Places.Timeout)
	if err != nil {
		return fmt.Errorf("places client: %w", err)
	}

	var fixes []geo.Coordinate
	if cfg.Location.Track != "" {
		fixes, err = location.LoadTrack(cfg.Location.Track)
		if err != nil {
			return fmt.Errorf("location track: %w", err)
		}
	}

	renderLoop := loop.New(256)
	surface := mapview.NewSurface()
	provider := location.NewReplay(renderLoop, fixes, cfg.Location.Interval, cfg.Location.AutoGrant)
	tr := tracker.New(provider, surface, cfg.Camera.Zoom)
	provider.SetSink(tr)

	home := app.New(surface, client, renderLoop, tr, app.Options{
		Zoom:         cfg.Camera.Zoom,
		Icons:        cfg.Markers.Icons,
		SelectedIcon: cfg.Markers.SelectedIcon,
	})

	srvCtx := server.NewServerContext(renderLoop, home, surface, cfg.Markers.Dir)
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srvCtx.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return renderLoop.Run(gctx)
	})

	g.Go(func() error {
		return provider.Run(gctx)
	})

	g.Go(func() error {
		log.Info().
			Str("addr", listenAddr).
			Int("radius", cfg.Places.Radius).
			Float64("zoom", cfg.Camera.Zoom).
			Int("track_fixes", len(fixes)).
			Msg("Web server started")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := renderLoop.Post(tr.Start); err != nil {
		return err
	}

	err = g.Wait()
	teardown(surface)
	return err
}

// teardown drops map state once the render loop has stopped.
func teardown(surface *mapview.Surface) {
	log.Debug().Int("markers", len(surface.Markers())).Msg("Clearing map surface")
	surface.Clear()
}

func applyOptions(cfg *config.Config, opts *Options) {
	if opts.APIKey != "" {
		cfg.Places.APIKey = opts.APIKey
	}
	if opts.Radius > 0 {
		cfg.Places.Radius = opts.Radius
	}
	if opts.Zoom > 0 {
		cfg.Camera.Zoom = opts.Zoom
	}
	if opts.Track != "" {
		cfg.Location.Track = opts.Track
	}
	if opts.AutoGrant {
		cfg.Location.AutoGrant = true
	}
}

// envFileFromArgs finds -e/--env before the full flag parse.
func envFileFromArgs(args []string) string {
	for i, arg := range args {
		switch {
		case (arg == "-e" || arg == "--env") && i+1 < len(args):
			return args[i+1]
		case len(arg) > len("--env=") && arg[:len("--env=")] == "--env=":
			return arg[len("--env="):]
		}
	}
	if v := os.Getenv("ENV_FILE"); v != "" {
		return v
	}
	return ".env"
}
