package handler

import (
	"errors"
	"net/http"
	"strconv"

	"go-blog-app/internal/data"
	"go-blog-app/internal/logger"
	"go-blog-app/internal/middleware"
	"go-blog-app/internal/service"
	"go-blog-app/internal/session"
)

// renderer carries what every page needs: the layout data and the
// templates themselves.
type renderer struct {
	posts   service.PostServicer
	view    middleware.Renderer
	session session.Manager
	log     logger.Logger
}

// render executes a page with the signed-in user, the pending flash message
// and the sidebar added to data.
func (rd *renderer) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]interface{}) *middleware.AppError {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["User"] = middleware.GetUser(r.Context())
	data["Flash"] = rd.session.PopString(r.Context(), session.KeyFlash)
	data["Path"] = r.URL.Path

	sidebar, err := rd.posts.Sidebar(r.Context())
	if err != nil {
		rd.log.Error(err, "Failed to load sidebar")
		sidebar = &service.Sidebar{}
	}
	data["Sidebar"] = sidebar

	if err := rd.view.Render(w, status, name, data); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to render page", Code: http.StatusInternalServerError}
	}
	return nil
}

// flash stores msg to be shown on the next rendered page.
func (rd *renderer) flash(r *http.Request, msg string) {
	rd.session.Put(r.Context(), session.KeyFlash, msg)
}

// serviceError maps a service error onto an error page.
func serviceError(err error, msg string) *middleware.AppError {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return &middleware.AppError{Error: err, Message: "Page not found", Code: http.StatusNotFound}
	case errors.Is(err, service.ErrForbidden):
		return &middleware.AppError{Error: err, Message: "You do not have permission to do that.", Code: http.StatusForbidden}
	case errors.Is(err, service.ErrUnauthenticated):
		return &middleware.AppError{Error: err, Message: "Please sign in first.", Code: http.StatusUnauthorized}
	default:
		return &middleware.AppError{Error: err, Message: msg, Code: http.StatusInternalServerError}
	}
}

// currentUser returns the signed-in user or, for anonymous requests,
// redirects to the login page and returns nil.
func currentUser(w http.ResponseWriter, r *http.Request) *data.User {
	user := middleware.GetUser(r.Context())
	if user == nil {
		http.Redirect(w, r, middleware.LoginURL(r.URL.RequestURI()), http.StatusFound)
	}
	return user
}

// pageNumber reads ?page=. A missing value is page 1; anything unparsable
// or below 1 is -1, which the service rejects as not found.
func pageNumber(r *http.Request) int {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return -1
	}
	return n
}

// postURL is the canonical path of a post.
func postURL(p *data.Post) string {
	return "/post/" + p.Slug + "/"
}
