package handler

import (
	"errors"
	"net/http"

	"go-blog-app/internal/logger"
	"go-blog-app/internal/middleware"
	"go-blog-app/internal/service"
	"go-blog-app/internal/session"

	"github.com/go-chi/chi/v5"
)

// TaxonomyHandler serves the tag and category pages.
type TaxonomyHandler struct {
	renderer
	posts    service.PostServicer
	taxonomy service.TaxonomyServicer
}

// NewTaxonomyHandler creates a new TaxonomyHandler.
func NewTaxonomyHandler(ps service.PostServicer, ts service.TaxonomyServicer, v middleware.Renderer, sm session.Manager, log logger.Logger) *TaxonomyHandler {
	return &TaxonomyHandler{
		renderer: renderer{posts: ps, view: v, session: sm, log: log},
		posts:    ps,
		taxonomy: ts,
	}
}

// tagHandler lists the published posts carrying a tag.
func (h *TaxonomyHandler) tagHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	tag, err := h.taxonomy.TagBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		return serviceError(err, "Failed to retrieve tag")
	}
	page, err := h.posts.ListPosts(r.Context(), service.ListQuery{TagSlug: tag.Slug, Page: pageNumber(r)})
	if err != nil {
		return serviceError(err, "Failed to retrieve posts")
	}
	data := map[string]interface{}{
		"Tag":  tag,
		"Page": page,
	}
	return h.render(w, r, http.StatusOK, "tag_posts.html", data)
}

// categoryHandler lists the published posts of a category.
func (h *TaxonomyHandler) categoryHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	category, err := h.taxonomy.CategoryBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		return serviceError(err, "Failed to retrieve category")
	}
	page, err := h.posts.ListPosts(r.Context(), service.ListQuery{CategorySlug: category.Slug, Page: pageNumber(r)})
	if err != nil {
		return serviceError(err, "Failed to retrieve posts")
	}
	data := map[string]interface{}{
		"Category": category,
		"Page":     page,
	}
	return h.render(w, r, http.StatusOK, "category_posts.html", data)
}

// newCategoryHandler shows the category form.
func (h *TaxonomyHandler) newCategoryHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if currentUser(w, r) == nil {
		return nil
	}
	return h.render(w, r, http.StatusOK, "category_form.html", map[string]interface{}{
		"Form":   service.CategoryInput{},
		"Errors": map[string]string{},
	})
}

// createCategoryHandler saves a new category.
func (h *TaxonomyHandler) createCategoryHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	user := currentUser(w, r)
	if user == nil {
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return &middleware.AppError{Error: err, Message: "Malformed form submission.", Code: http.StatusBadRequest}
	}
	in := service.CategoryInput{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
	}

	category, err := h.taxonomy.CreateCategory(r.Context(), user, in)
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return h.render(w, r, http.StatusUnprocessableEntity, "category_form.html", map[string]interface{}{
			"Form":   in,
			"Errors": verr.Fields,
		})
	}
	if err != nil {
		return serviceError(err, "Failed to create category")
	}

	h.flash(r, "Category created successfully!")
	http.Redirect(w, r, "/category/"+category.Slug+"/", http.StatusSeeOther)
	return nil
}
