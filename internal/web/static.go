package web

import (
	"embed"
)

// staticFiles holds the embedded HTML, CSS, and JS files.
// The final binary includes all files under static/.
//
//go:embed static/*
var staticFiles embed.FS
