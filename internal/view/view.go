package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"go-blog-app/internal/content"
)

// View represents a collection of parsed HTML templates.
type View struct {
	templates map[string]*template.Template
	settings  Settings
	now       func() time.Time
}

// New creates a new View by parsing all templates from the given filesystem.
// Every page under templates/pages is parsed together with all layouts and
// partials and is executed through the "base" layout.
func New(templateFS fs.FS, settings Settings) (*View, error) {
	v := &View{
		templates: make(map[string]*template.Template),
		settings:  settings,
		now:       time.Now,
	}

	// First, get all the layout files
	layouts, err := fs.Glob(templateFS, "templates/layouts/*.html")
	if err != nil {
		return nil, err
	}
	partials, err := fs.Glob(templateFS, "templates/partials/*.html")
	if err != nil {
		return nil, err
	}
	shared := append(layouts, partials...)

	// Then, get all the page files
	pages, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}

	// For each page, parse it with the layout files
	for _, page := range pages {
		files := make([]string, 0, len(shared)+1)
		files = append(files, shared...)
		files = append(files, page)
		// The name of the template is the base name of the page file
		name := filepath.Base(page)
		ts, err := template.New(name).Funcs(funcs).ParseFS(templateFS, files...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		v.templates[name] = ts
	}

	return v, nil
}

// Render executes a specific template by name and writes it with status.
// Nothing is written when execution fails.
func (v *View) Render(w http.ResponseWriter, status int, name string, data map[string]interface{}) error {
	ts, ok := v.templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}

	if data == nil {
		data = make(map[string]interface{})
	}
	data["Site"] = v.settings.forRender(v.now())

	// Execute the template into a buffer first to catch any errors
	// before writing to the response writer.
	buf := new(bytes.Buffer)
	if err := ts.ExecuteTemplate(buf, "base", data); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format("January 2, 2006")
	},
	"isoDate": func(t time.Time) string {
		return t.Format("2006-01-02")
	},
	"readingTime": content.ReadingTime,
	// pageURL builds a listing link that keeps the active filters.
	"pageURL": func(path string, page int, filters map[string]string) string {
		q := url.Values{}
		for k, val := range filters {
			if val != "" {
				q.Set(k, val)
			}
		}
		if page > 1 {
			q.Set("page", strconv.Itoa(page))
		}
		if len(q) == 0 {
			return path
		}
		return path + "?" + q.Encode()
	},
}
