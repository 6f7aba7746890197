package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go-blog-app/internal/auth"
	"go-blog-app/internal/data"
	"go-blog-app/internal/logger"
	"go-blog-app/internal/middleware"
	"go-blog-app/internal/service"
	"go-blog-app/internal/session"

	"github.com/go-chi/chi/v5"
)

// multipartOverhead is the room left for the text fields of a post form on
// top of the image size limit.
const multipartOverhead = 1 << 20

// PostHandler holds the dependencies for the post handlers.
type PostHandler struct {
	renderer
	posts     service.PostServicer
	taxonomy  service.TaxonomyServicer
	maxUpload int64
}

// NewPostHandler creates a new PostHandler with the given dependencies.
func NewPostHandler(ps service.PostServicer, ts service.TaxonomyServicer, v middleware.Renderer, sm session.Manager, maxUpload int64, log logger.Logger) *PostHandler {
	return &PostHandler{
		renderer:  renderer{posts: ps, view: v, session: sm, log: log},
		posts:     ps,
		taxonomy:  ts,
		maxUpload: maxUpload,
	}
}

// postForm is what the post form template reads back.
type postForm struct {
	Title        string
	Body         string
	Excerpt      string
	Status       data.Status
	CategoryID   int64
	TagIDs       map[int64]bool
	NewTags      string
	HasImage     bool
	ImageURL     string
	Errors       map[string]string
	SubmitAction string
}

func formFromPost(p *data.Post) *postForm {
	f := &postForm{
		Title:    p.Title,
		Body:     p.Body,
		Excerpt:  p.Excerpt,
		Status:   p.Status,
		TagIDs:   make(map[int64]bool),
		HasImage: p.FeaturedImage != nil,
		ImageURL: p.FeaturedImageURL,
	}
	if p.CategoryID != nil {
		f.CategoryID = *p.CategoryID
	}
	for _, id := range p.TagIDs() {
		f.TagIDs[id] = true
	}
	return f
}

func formFromInput(in service.PostInput) *postForm {
	f := &postForm{
		Title:   in.Title,
		Body:    in.Body,
		Excerpt: in.Excerpt,
		Status:  in.Status,
		NewTags: in.NewTags,
		TagIDs:  make(map[int64]bool),
	}
	if in.CategoryID != nil {
		f.CategoryID = *in.CategoryID
	}
	for _, id := range in.TagIDs {
		f.TagIDs[id] = true
	}
	return f
}

// indexHandler lists published posts, optionally narrowed by ?category= and ?tag=.
func (h *PostHandler) indexHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	q := r.URL.Query()
	filters := map[string]string{"category": q.Get("category"), "tag": q.Get("tag")}

	page, err := h.posts.ListPosts(r.Context(), service.ListQuery{
		CategorySlug: filters["category"],
		TagSlug:      filters["tag"],
		Page:         pageNumber(r),
	})
	if err != nil {
		return serviceError(err, "Failed to retrieve posts")
	}

	data := map[string]interface{}{
		"Page":    page,
		"Filters": filters,
	}
	return h.render(w, r, http.StatusOK, "index.html", data)
}

// detailHandler shows a published post and counts the view.
func (h *PostHandler) detailHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	post, err := h.posts.ViewPost(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		return serviceError(err, "Failed to retrieve post")
	}
	related, err := h.posts.RelatedPosts(r.Context(), post)
	if err != nil {
		return serviceError(err, "Failed to retrieve related posts")
	}

	user := middleware.GetUser(r.Context())
	data := map[string]interface{}{
		"Post":    post,
		"Related": related,
		"CanEdit": auth.CanModifyPost(user, post).Allowed,
	}
	return h.render(w, r, http.StatusOK, "post_detail.html", data)
}

// newHandler shows the empty post form.
func (h *PostHandler) newHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if currentUser(w, r) == nil {
		return nil
	}
	form := &postForm{Status: data.StatusDraft, TagIDs: map[int64]bool{}}
	return h.renderForm(w, r, http.StatusOK, nil, form)
}

// createHandler handles the submission of a new post.
func (h *PostHandler) createHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	user := currentUser(w, r)
	if user == nil {
		return nil
	}
	in, appErr := h.parsePostForm(w, r)
	if appErr != nil {
		return appErr
	}

	post, err := h.posts.CreatePost(r.Context(), user, in)
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		form := formFromInput(in)
		form.Errors = verr.Fields
		return h.renderForm(w, r, http.StatusUnprocessableEntity, nil, form)
	}
	if err != nil {
		return serviceError(err, "Failed to create post")
	}

	h.flash(r, "Post created successfully!")
	http.Redirect(w, r, afterSave(post), http.StatusSeeOther)
	return nil
}

// editHandler shows the form for a post the user may modify.
func (h *PostHandler) editHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	user := currentUser(w, r)
	if user == nil {
		return nil
	}
	post, err := h.posts.GetPostForEdit(r.Context(), user, chi.URLParam(r, "slug"))
	if err != nil {
		return serviceError(err, "Failed to retrieve post")
	}
	return h.renderForm(w, r, http.StatusOK, post, formFromPost(post))
}

// updateHandler handles the submission of an edited post.
func (h *PostHandler) updateHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	user := currentUser(w, r)
	if user == nil {
		return nil
	}
	slug := chi.URLParam(r, "slug")
	existing, err := h.posts.GetPostForEdit(r.Context(), user, slug)
	if err != nil {
		return serviceError(err, "Failed to retrieve post")
	}
	in, appErr := h.parsePostForm(w, r)
	if appErr != nil {
		return appErr
	}

	post, err := h.posts.UpdatePost(r.Context(), user, slug, in)
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		form := formFromInput(in)
		form.Errors = verr.Fields
		form.HasImage = existing.FeaturedImage != nil
		form.ImageURL = existing.FeaturedImageURL
		return h.renderForm(w, r, http.StatusUnprocessableEntity, existing, form)
	}
	if err != nil {
		return serviceError(err, "Failed to update post")
	}

	h.flash(r, "Post updated successfully!")
	http.Redirect(w, r, afterSave(post), http.StatusSeeOther)
	return nil
}

// deleteConfirmHandler asks for confirmation before deleting a post.
func (h *PostHandler) deleteConfirmHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	user := currentUser(w, r)
	if user == nil {
		return nil
	}
	post, err := h.posts.GetPostForEdit(r.Context(), user, chi.URLParam(r, "slug"))
	if err != nil {
		return serviceError(err, "Failed to retrieve post")
	}
	return h.render(w, r, http.StatusOK, "post_confirm_delete.html", map[string]interface{}{"Post": post})
}

// deleteHandler deletes the post and returns to the front page.
func (h *PostHandler) deleteHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	user := currentUser(w, r)
	if user == nil {
		return nil
	}
	if err := h.posts.DeletePost(r.Context(), user, chi.URLParam(r, "slug")); err != nil {
		return serviceError(err, "Failed to delete post")
	}
	h.flash(r, "Post deleted successfully.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
	return nil
}

// searchHandler matches ?query= against published posts. An empty query
// shows the empty search page.
func (h *PostHandler) searchHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	data := map[string]interface{}{"Query": query}
	if query == "" {
		return h.render(w, r, http.StatusOK, "search_results.html", data)
	}

	posts, err := h.posts.Search(r.Context(), query)
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		data["Errors"] = verr.Fields
		return h.render(w, r, http.StatusUnprocessableEntity, "search_results.html", data)
	}
	if err != nil {
		return serviceError(err, "Failed to search posts")
	}
	data["Posts"] = posts
	data["Searched"] = true
	return h.render(w, r, http.StatusOK, "search_results.html", data)
}

func (h *PostHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, post *data.Post, form *postForm) *middleware.AppError {
	categories, err := h.taxonomy.Categories(r.Context())
	if err != nil {
		return serviceError(err, "Failed to retrieve categories")
	}
	tags, err := h.taxonomy.Tags(r.Context())
	if err != nil {
		return serviceError(err, "Failed to retrieve tags")
	}
	if form.Errors == nil {
		form.Errors = map[string]string{}
	}
	form.SubmitAction = "/post/new/"
	if post != nil {
		form.SubmitAction = postURL(post) + "edit/"
	}
	data := map[string]interface{}{
		"Post":       post,
		"Form":       form,
		"Categories": categories,
		"Tags":       tags,
		"Statuses":   []data.Status{data.StatusDraft, data.StatusPublished},
	}
	return h.render(w, r, status, "post_form.html", data)
}

// parsePostForm reads a urlencoded or multipart post form. Unparsable ids
// become 0, which never names a row and is reported by validation.
func (h *PostHandler) parsePostForm(w http.ResponseWriter, r *http.Request) (service.PostInput, *middleware.AppError) {
	var in service.PostInput
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(h.maxUpload + multipartOverhead)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return in, &middleware.AppError{Error: err, Message: "The upload is too large.", Code: http.StatusRequestEntityTooLarge}
		}
		return in, &middleware.AppError{Error: err, Message: "Malformed form submission.", Code: http.StatusBadRequest}
	}

	in.Title = r.PostFormValue("title")
	in.Body = r.PostFormValue("body")
	in.Excerpt = r.PostFormValue("excerpt")
	in.Status = data.Status(r.PostFormValue("status"))
	in.NewTags = r.PostFormValue("new_tags")
	in.RemoveImage = r.PostFormValue("remove_image") != ""

	if raw := r.PostFormValue("category"); raw != "" {
		id := parseID(raw)
		in.CategoryID = &id
	}
	for _, raw := range r.PostForm["tags"] {
		in.TagIDs = append(in.TagIDs, parseID(raw))
	}

	if r.MultipartForm != nil {
		file, header, err := r.FormFile("featured_image")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			return in, &middleware.AppError{Error: err, Message: "Failed to read the upload.", Code: http.StatusBadRequest}
		default:
			defer file.Close()
			// One byte past the limit is enough for validation to reject it.
			b, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
			if err != nil {
				return in, &middleware.AppError{Error: err, Message: "Failed to read the upload.", Code: http.StatusBadRequest}
			}
			if len(b) > 0 {
				in.Image = &service.ImageUpload{Filename: header.Filename, Data: b}
			}
		}
	}
	return in, nil
}

func parseID(raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// afterSave is where a saved post sends its author: the public page once
// published, the edit form while still a draft.
func afterSave(p *data.Post) string {
	if p.IsPublished() {
		return postURL(p)
	}
	return postURL(p) + "edit/"
}
