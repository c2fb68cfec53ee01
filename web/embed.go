// Package web bundles the dashboard's templates and assets into the binary.
package web

import (
	"embed"
	"io/fs"
)

// Templates holds the layouts, partials and pages of the dashboard.
//
//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html
var Templates embed.FS

// TemplatePatterns lists the globs the view engine parses, layouts first so
// pages can reference them.
var TemplatePatterns = []string{
	"templates/layouts/*.html",
	"templates/partials/*.html",
	"templates/pages/*.html",
}

//go:embed static
var static embed.FS

// Assets returns the static files rooted so /static/css/app.css maps to css/app.css.
func Assets() (fs.FS, error) {
	return fs.Sub(static, "static")
}
