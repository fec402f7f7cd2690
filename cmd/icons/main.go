package main

import (
	"crypto/tls"
	"net/http"
	"os"
	"time"

	"github.com/woozymasta/nearmap/internal/config"
	"github.com/woozymasta/nearmap/internal/icons"
	"github.com/woozymasta/nearmap/internal/logger"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string   `short:"c" long:"config" env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	Limit      []string `short:"l" long:"limit"  env:"LIMIT_NAMES" description:"Limit processing to specific icon names"`
	Dir        string   `short:"d" long:"dir"    env:"ICONS_DIR"   description:"Output directory, overrides config"`
	Size       int      `short:"s" long:"size"   env:"ICON_SIZE"   description:"Icon size in pixels, overrides config"`
	Force      bool     `short:"f" long:"force"  description:"Force overwrite of existing files"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	dir := cfg.Markers.Dir
	if opts.Dir != "" {
		dir = opts.Dir
	}
	size := cfg.Markers.Size
	if opts.Size > 0 {
		size = opts.Size
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSNextProto: make(map[string]func(string, *tls.Conn) http.RoundTripper),
		},
		Timeout: 15 * time.Second,
	}

	// Filter icons if limit is set
	sources := cfg.Markers.Sources
	if len(opts.Limit) > 0 {
		sources = make(map[string]string, len(opts.Limit))
		for _, name := range opts.Limit {
			src, ok := cfg.Markers.Sources[name]
			if !ok {
				log.Error().
					Str("name", name).
					Msg("Icon specified in --limit not found in configuration")
				continue
			}
			sources[name] = src
		}
	}

	if len(sources) == 0 {
		log.Warn().Msg("No icon sources configured, nothing to do")
		return
	}

	log.Info().
		Int("icons_total", len(cfg.Markers.Sources)).
		Int("icons_queued", len(sources)).
		Str("dir", dir).
		Int("size", size).
		Msg("Starting icon conversion")

	if err := icons.Process(client, sources, dir, size, opts.Force); err != nil {
		log.Fatal().Err(err).Msg("Icon conversion incomplete")
	}

	log.Info().Msg("Icons finished successfully")
}
