package main

import (
	"bytes"
	"os"
	"text/template"

	"github.com/woozymasta/nearmap/internal/logger"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	Dir string `short:"d" long:"dir" description:"Assets directory" default:"assets"`
}

type PageData struct {
	CSS string
	JS  string
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

	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)

	cssMin := minifyFile(m, "text/css", opts.Dir+"/style.css")
	jsMin := minifyFile(m, "text/javascript", opts.Dir+"/script.js")

	htmlRaw, err := os.ReadFile(opts.Dir + "/index.html.tpl")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read HTML template")
	}

	tmpl, err := template.New("index").Parse(string(htmlRaw))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse HTML template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, PageData{CSS: cssMin, JS: jsMin}); err != nil {
		log.Fatal().Err(err).Msg("Failed to render HTML template")
	}

	finalHTML, err := m.String("text/html", buf.String())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to minify HTML")
	}

	out := opts.Dir + "/index.html"
	if err := os.WriteFile(out, []byte(finalHTML), 0644); err != nil {
		log.Fatal().Err(err).Msg("Failed to write page")
	}

	log.Info().Str("path", out).Int("bytes", len(finalHTML)).Msg("Minify done")
}

func minifyFile(m *minify.M, mediaType, path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to read asset")
	}

	out, err := m.String(mediaType, string(raw))
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to minify asset")
	}

	return out
}
