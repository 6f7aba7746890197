//go:build unit

package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go-blog-app/internal/data"
	"go-blog-app/internal/middleware"
	"go-blog-app/internal/service"
	"go-blog-app/internal/session"

	"github.com/go-chi/chi/v5"
)

var (
	author = &data.User{ID: 1, Subject: "alice", Username: "alice"}
	other  = &data.User{ID: 2, Subject: "bob", Username: "bob"}
)

// router mounts the handlers under test the way NewRouter does, minus
// sessions and authorization.
func (h *testHandlers) router() *chi.Mux {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/", h.errors(h.post.indexHandler))
	r.Method(http.MethodGet, "/post/{slug}/", h.errors(h.post.detailHandler))
	r.Method(http.MethodGet, "/search/", h.errors(h.post.searchHandler))
	r.Method(http.MethodGet, "/post/new/", h.errors(h.post.newHandler))
	r.Method(http.MethodPost, "/post/new/", h.errors(h.post.createHandler))
	r.Method(http.MethodGet, "/post/{slug}/edit/", h.errors(h.post.editHandler))
	r.Method(http.MethodPost, "/post/{slug}/edit/", h.errors(h.post.updateHandler))
	r.Method(http.MethodPost, "/post/{slug}/delete/", h.errors(h.post.deleteHandler))
	r.Method(http.MethodGet, "/tag/{slug}/", h.errors(h.tax.tagHandler))
	r.Method(http.MethodGet, "/category/{slug}/", h.errors(h.tax.categoryHandler))
	r.Method(http.MethodPost, "/categories/new/", h.errors(h.tax.createCategoryHandler))
	return r
}

func (h *testHandlers) do(req *http.Request, user *data.User) *httptest.ResponseRecorder {
	if user != nil {
		req = req.WithContext(middleware.SetUser(req.Context(), user))
	}
	rr := httptest.NewRecorder()
	h.router().ServeHTTP(rr, req)
	return rr
}

func formRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func location(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	loc := rr.Header().Get("Location")
	if loc == "" {
		t.Fatalf("expected a redirect, got status %d", rr.Code)
	}
	return loc
}

func TestDetailHandler(t *testing.T) {
	t.Run("unknown or draft post is 404", func(t *testing.T) {
		h := newTestHandlers()
		h.posts.errToReturn = service.ErrNotFound

		rr := h.do(httptest.NewRequest(http.MethodGet, "/post/missing/", nil), nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("want status %d; got %d", http.StatusNotFound, rr.Code)
		}
		if h.view.name != "error.html" {
			t.Errorf("want error.html; got %s", h.view.name)
		}
	})

	tests := []struct {
		name    string
		user    *data.User
		canEdit bool
	}{
		{"anonymous", nil, false},
		{"author", author, true},
		{"someone else", other, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandlers()
			h.posts.post = &data.Post{ID: 9, Slug: "hello", AuthorID: author.ID, Status: data.StatusPublished}

			rr := h.do(httptest.NewRequest(http.MethodGet, "/post/hello/", nil), tc.user)
			if rr.Code != http.StatusOK || h.view.name != "post_detail.html" {
				t.Fatalf("want post_detail.html with 200; got %s with %d", h.view.name, rr.Code)
			}
			if got := h.view.data["CanEdit"]; got != tc.canEdit {
				t.Errorf("want CanEdit %v; got %v", tc.canEdit, got)
			}
		})
	}
}

func TestIndexHandler_Query(t *testing.T) {
	tests := []struct {
		query    string
		wantPage int
	}{
		{"", 1},
		{"?page=2", 2},
		{"?page=abc", -1},
		{"?page=0", -1},
		{"?category=tech&tag=go&page=3", 3},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			h := newTestHandlers()
			h.posts.page = &service.PostPage{Number: 1, TotalPages: 1}

			rr := h.do(httptest.NewRequest(http.MethodGet, "/"+tc.query, nil), nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("want 200; got %d", rr.Code)
			}
			if h.posts.lastQuery.Page != tc.wantPage {
				t.Errorf("want page %d; got %d", tc.wantPage, h.posts.lastQuery.Page)
			}
			if strings.Contains(tc.query, "category") && (h.posts.lastQuery.CategorySlug != "tech" || h.posts.lastQuery.TagSlug != "go") {
				t.Errorf("filters not passed through: %+v", h.posts.lastQuery)
			}
		})
	}

	h := newTestHandlers()
	h.posts.errToReturn = service.ErrNotFound
	if rr := h.do(httptest.NewRequest(http.MethodGet, "/?page=99", nil), nil); rr.Code != http.StatusNotFound {
		t.Errorf("want 404 for a page past the end; got %d", rr.Code)
	}
}

func TestCreateHandler_Anonymous(t *testing.T) {
	h := newTestHandlers()
	rr := h.do(formRequest("/post/new/", url.Values{"title": {"T"}}), nil)

	if rr.Code != http.StatusFound {
		t.Fatalf("want 302; got %d", rr.Code)
	}
	if got := location(t, rr); got != "/auth/login?next=%2Fpost%2Fnew%2F" {
		t.Errorf("unexpected redirect %q", got)
	}
	if h.posts.lastInput.Title != "" {
		t.Error("service must not be called for anonymous users")
	}
}

func TestCreateHandler_Redirects(t *testing.T) {
	tests := []struct {
		status data.Status
		want   string
	}{
		{data.StatusPublished, "/post/hello/"},
		{data.StatusDraft, "/post/hello/edit/"},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			h := newTestHandlers()
			h.posts.post = &data.Post{ID: 1, Slug: "hello", Status: tc.status}

			form := url.Values{
				"title":    {"Hello"},
				"body":     {"<p>Hi</p>"},
				"status":   {string(tc.status)},
				"category": {"1"},
				"tags":     {"1", "oops"},
				"new_tags": {"Go, Rust"},
			}
			rr := h.do(formRequest("/post/new/", form), author)

			if rr.Code != http.StatusSeeOther {
				t.Fatalf("want 303; got %d", rr.Code)
			}
			if got := location(t, rr); got != tc.want {
				t.Errorf("want redirect %q; got %q", tc.want, got)
			}
			if flash := h.session.values[session.KeyFlash]; flash != "Post created successfully!" {
				t.Errorf("unexpected flash %v", flash)
			}

			in := h.posts.lastInput
			if in.CategoryID == nil || *in.CategoryID != 1 {
				t.Errorf("unexpected category %v", in.CategoryID)
			}
			if len(in.TagIDs) != 2 || in.TagIDs[0] != 1 || in.TagIDs[1] != 0 {
				t.Errorf("unexpected tag ids %v", in.TagIDs)
			}
			if in.NewTags != "Go, Rust" || in.Status != tc.status {
				t.Errorf("unexpected input %+v", in)
			}
		})
	}
}

func TestCreateHandler_ValidationError(t *testing.T) {
	h := newTestHandlers()
	verr := service.NewValidationError()
	verr.Add("title", "This field is required.")
	h.posts.errToReturn = verr

	rr := h.do(formRequest("/post/new/", url.Values{"body": {"text"}}), author)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("want 422; got %d", rr.Code)
	}
	if h.view.name != "post_form.html" {
		t.Fatalf("want post_form.html; got %s", h.view.name)
	}
	form := h.view.data["Form"].(*postForm)
	if form.Errors["title"] == "" || form.Body != "text" {
		t.Errorf("expected the form to be re-rendered with errors, got %+v", form)
	}
	if form.SubmitAction != "/post/new/" {
		t.Errorf("unexpected form action %q", form.SubmitAction)
	}
}

func TestCreateHandler_Multipart(t *testing.T) {
	h := newTestHandlers()
	h.posts.post = &data.Post{ID: 1, Slug: "pic", Status: data.StatusDraft}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("title", "Pic")
	mw.WriteField("body", "b")
	fw, err := mw.CreateFormFile("featured_image", "pic.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("not really a png"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/post/new/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := h.do(req, author)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("want 303; got %d", rr.Code)
	}
	img := h.posts.lastInput.Image
	if img == nil || img.Filename != "pic.png" || string(img.Data) != "not really a png" {
		t.Errorf("unexpected upload %+v", img)
	}
	if h.posts.lastInput.Title != "Pic" {
		t.Errorf("unexpected title %q", h.posts.lastInput.Title)
	}
}

func TestUpdateHandler(t *testing.T) {
	t.Run("forbidden", func(t *testing.T) {
		h := newTestHandlers()
		h.posts.errToReturn = service.ErrForbidden

		rr := h.do(formRequest("/post/hello/edit/", url.Values{"title": {"Hijack"}}), other)
		if rr.Code != http.StatusForbidden {
			t.Errorf("want 403; got %d", rr.Code)
		}
		if h.posts.lastInput.Title != "" {
			t.Error("a forbidden edit must not reach UpdatePost")
		}
	})

	t.Run("saved", func(t *testing.T) {
		h := newTestHandlers()
		h.posts.post = &data.Post{ID: 1, Slug: "hello", Status: data.StatusPublished}

		rr := h.do(formRequest("/post/hello/edit/", url.Values{"title": {"New"}, "body": {"b"}, "remove_image": {"on"}}), author)
		if rr.Code != http.StatusSeeOther || location(t, rr) != "/post/hello/" {
			t.Fatalf("unexpected response %d", rr.Code)
		}
		if !h.posts.lastInput.RemoveImage {
			t.Error("expected remove_image to be honoured")
		}
		if flash := h.session.values[session.KeyFlash]; flash != "Post updated successfully!" {
			t.Errorf("unexpected flash %v", flash)
		}
	})

	t.Run("edit form action", func(t *testing.T) {
		h := newTestHandlers()
		h.posts.post = &data.Post{ID: 1, Slug: "hello", Title: "Hello", CategoryID: func() *int64 { v := int64(1); return &v }()}

		rr := h.do(httptest.NewRequest(http.MethodGet, "/post/hello/edit/", nil), author)
		if rr.Code != http.StatusOK {
			t.Fatalf("want 200; got %d", rr.Code)
		}
		form := h.view.data["Form"].(*postForm)
		if form.SubmitAction != "/post/hello/edit/" || form.Title != "Hello" || form.CategoryID != 1 {
			t.Errorf("unexpected form %+v", form)
		}
	})
}

func TestDeleteHandler(t *testing.T) {
	h := newTestHandlers()
	rr := h.do(formRequest("/post/hello/delete/", nil), author)

	if rr.Code != http.StatusSeeOther || location(t, rr) != "/" {
		t.Fatalf("want redirect to /; got %d", rr.Code)
	}
	if !h.posts.deleteCalled {
		t.Error("expected DeletePost to be called")
	}
	if flash := h.session.values[session.KeyFlash]; flash != "Post deleted successfully." {
		t.Errorf("unexpected flash %v", flash)
	}
}

func TestSearchHandler(t *testing.T) {
	t.Run("blank query", func(t *testing.T) {
		h := newTestHandlers()
		rr := h.do(httptest.NewRequest(http.MethodGet, "/search/?query=+++", nil), nil)
		if rr.Code != http.StatusOK || h.posts.searchCalls != 0 {
			t.Errorf("want 200 without searching; got %d after %d searches", rr.Code, h.posts.searchCalls)
		}
	})

	t.Run("too long", func(t *testing.T) {
		h := newTestHandlers()
		verr := service.NewValidationError()
		verr.Add("query", "Ensure this value has at most 200 characters.")
		h.posts.errToReturn = verr

		rr := h.do(httptest.NewRequest(http.MethodGet, "/search/?query="+strings.Repeat("q", 201), nil), nil)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("want 422; got %d", rr.Code)
		}
	})

	t.Run("results", func(t *testing.T) {
		h := newTestHandlers()
		h.posts.results = []*data.Post{{ID: 1, Slug: "hit"}}

		rr := h.do(httptest.NewRequest(http.MethodGet, "/search/?query=golang", nil), nil)
		if rr.Code != http.StatusOK || h.view.name != "search_results.html" {
			t.Fatalf("unexpected response %d %s", rr.Code, h.view.name)
		}
		if h.posts.lastSearch != "golang" {
			t.Errorf("unexpected query %q", h.posts.lastSearch)
		}
		if posts := h.view.data["Posts"].([]*data.Post); len(posts) != 1 {
			t.Errorf("want 1 result; got %d", len(posts))
		}
	})
}

func TestTaxonomyHandlers(t *testing.T) {
	t.Run("unknown tag is 404", func(t *testing.T) {
		h := newTestHandlers()
		h.taxonomy.errToReturn = service.ErrNotFound
		if rr := h.do(httptest.NewRequest(http.MethodGet, "/tag/nope/", nil), nil); rr.Code != http.StatusNotFound {
			t.Errorf("want 404; got %d", rr.Code)
		}
	})

	t.Run("category listing", func(t *testing.T) {
		h := newTestHandlers()
		h.taxonomy.category = &data.Category{ID: 1, Name: "Tech", Slug: "tech"}
		h.posts.page = &service.PostPage{Number: 2, TotalPages: 2}

		rr := h.do(httptest.NewRequest(http.MethodGet, "/category/tech/?page=2", nil), nil)
		if rr.Code != http.StatusOK || h.view.name != "category_posts.html" {
			t.Fatalf("unexpected response %d %s", rr.Code, h.view.name)
		}
		if h.posts.lastQuery.CategorySlug != "tech" || h.posts.lastQuery.Page != 2 {
			t.Errorf("unexpected query %+v", h.posts.lastQuery)
		}
	})

	t.Run("create category forbidden", func(t *testing.T) {
		h := newTestHandlers()
		h.taxonomy.errToReturn = service.ErrForbidden
		if rr := h.do(formRequest("/categories/new/", url.Values{"name": {"News"}}), author); rr.Code != http.StatusForbidden {
			t.Errorf("want 403; got %d", rr.Code)
		}
	})

	t.Run("create category", func(t *testing.T) {
		h := newTestHandlers()
		h.taxonomy.category = &data.Category{ID: 5, Name: "News", Slug: "news"}

		rr := h.do(formRequest("/categories/new/", url.Values{"name": {"News"}, "description": {"*daily*"}}), author)
		if rr.Code != http.StatusSeeOther || location(t, rr) != "/category/news/" {
			t.Fatalf("unexpected response %d", rr.Code)
		}
		if h.taxonomy.lastInput.Description != "*daily*" {
			t.Errorf("unexpected input %+v", h.taxonomy.lastInput)
		}
	})
}

func TestErrorMiddleware_Panic(t *testing.T) {
	h := newTestHandlers()
	handler := h.errors(func(w http.ResponseWriter, r *http.Request) *middleware.AppError {
		panic("boom")
	})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError || h.view.name != "error.html" {
		t.Errorf("want error.html with 500; got %s with %d", h.view.name, rr.Code)
	}
}
