// Package assets embeds the map page served at the site root.
package assets

import _ "embed"

// Index is the minified map page built by cmd/minify.
//
//go:embed index.html
var Index []byte
