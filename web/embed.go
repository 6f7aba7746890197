// Package web holds the templates and static assets compiled into the binary.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html
var templates embed.FS

//go:embed static
var static embed.FS

// TemplateFS is rooted above templates/, as view.New expects.
var TemplateFS fs.FS = templates

// Assets returns the static files rooted at static/, ready to be served
// under /static/.
func Assets() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		// Only an invalid literal path can fail here.
		panic(err)
	}
	return sub
}
