// Package static holds the built login pages served by the web server.
package static

import (
	"embed"
	"io/fs"
)

//go:embed all:dist/*
var distFS embed.FS

// dist is the dist directory itself; fs.Sub only fails for invalid paths.
var dist, _ = fs.Sub(distFS, "dist")

// Open opens a file from the built pages, such as "index.html" or
// "assets/app.js".
func Open(name string) (fs.File, error) {
	return dist.Open(name)
}

// Built reports whether the pages have been built into dist. A checkout
// without a frontend build embeds an empty directory.
func Built() bool {
	entries, err := fs.ReadDir(dist, ".")
	return err == nil && len(entries) > 0
}
