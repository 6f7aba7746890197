package handler

import (
	"io/fs"
	"net/http"

	"go-blog-app/internal/middleware"
	"go-blog-app/internal/session"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router bundles what NewRouter wires together.
type Router struct {
	Posts    *PostHandler
	Taxonomy *TaxonomyHandler
	Auth     *AuthHandler
	Seo      *SeoHandler

	Session      session.Manager
	Authenticate func(http.Handler) http.Handler
	Authorize    func(http.Handler) http.Handler
	Errors       func(middleware.AppHandler) http.Handler

	// Static serves /static/; MediaDir, when set, serves /media/ from disk.
	Static   fs.FS
	MediaDir string
}

// NewRouter creates and configures a new chi router.
func NewRouter(rt Router) *chi.Mux {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)

	// Assets and machine-readable endpoints need no session.
	if rt.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(rt.Static))))
	}
	if rt.MediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(rt.MediaDir))))
	}
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/robots.txt", rt.Seo.robotsHandler)
	r.Get("/sitemap.xml", rt.Seo.sitemapHandler)

	r.Group(func(r chi.Router) {
		r.Use(rt.Session.LoadAndSave)
		r.Use(rt.Authenticate)

		// Authentication routes
		r.Get("/auth/login", rt.Auth.handleLogin)
		r.Get("/auth/callback", rt.Auth.handleCallback)

		// Public routes
		r.Method(http.MethodGet, "/", rt.Errors(rt.Posts.indexHandler))
		r.Method(http.MethodGet, "/post/{slug}/", rt.Errors(rt.Posts.detailHandler))
		r.Method(http.MethodGet, "/search/", rt.Errors(rt.Posts.searchHandler))
		r.Method(http.MethodGet, "/tag/{slug}/", rt.Errors(rt.Taxonomy.tagHandler))
		r.Method(http.MethodGet, "/category/{slug}/", rt.Errors(rt.Taxonomy.categoryHandler))

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(rt.Authorize)

			r.Get("/auth/logout", rt.Auth.handleLogout)

			r.Method(http.MethodGet, "/post/new/", rt.Errors(rt.Posts.newHandler))
			r.Method(http.MethodPost, "/post/new/", rt.Errors(rt.Posts.createHandler))
			r.Method(http.MethodGet, "/post/{slug}/edit/", rt.Errors(rt.Posts.editHandler))
			r.Method(http.MethodPost, "/post/{slug}/edit/", rt.Errors(rt.Posts.updateHandler))
			r.Method(http.MethodGet, "/post/{slug}/delete/", rt.Errors(rt.Posts.deleteConfirmHandler))
			r.Method(http.MethodPost, "/post/{slug}/delete/", rt.Errors(rt.Posts.deleteHandler))

			r.Method(http.MethodGet, "/categories/new/", rt.Errors(rt.Taxonomy.newCategoryHandler))
			r.Method(http.MethodPost, "/categories/new/", rt.Errors(rt.Taxonomy.createCategoryHandler))
		})
	})

	return r
}
