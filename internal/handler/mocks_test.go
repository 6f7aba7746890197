//go:build unit

package handler

import (
	"context"
	"net/http"

	"go-blog-app/internal/auth"
	"go-blog-app/internal/data"
	"go-blog-app/internal/logger"
	"go-blog-app/internal/middleware"
	"go-blog-app/internal/service"
	"go-blog-app/internal/session"

	"golang.org/x/oauth2"
)

// mockSessionManager is a mock implementation of the session.Manager interface.
type mockSessionManager struct {
	values        map[string]interface{}
	destroyCalled bool
	renewCalled   bool
}

// Ensure mockSessionManager implements the session.Manager interface.
var _ session.Manager = (*mockSessionManager)(nil)

func newMockSession() *mockSessionManager {
	return &mockSessionManager{values: make(map[string]interface{})}
}

func (m *mockSessionManager) LoadAndSave(next http.Handler) http.Handler { return next }
func (m *mockSessionManager) Put(ctx context.Context, key string, val interface{}) {
	m.values[key] = val
}
func (m *mockSessionManager) GetString(ctx context.Context, key string) string {
	s, _ := m.values[key].(string)
	return s
}
func (m *mockSessionManager) PopString(ctx context.Context, key string) string {
	s := m.GetString(ctx, key)
	delete(m.values, key)
	return s
}
func (m *mockSessionManager) Remove(ctx context.Context, key string) { delete(m.values, key) }
func (m *mockSessionManager) RenewToken(ctx context.Context) error {
	m.renewCalled = true
	return nil
}
func (m *mockSessionManager) Destroy(ctx context.Context) error {
	m.destroyCalled = true
	m.values = make(map[string]interface{})
	return nil
}

// mockRenderer records the last rendered page instead of executing templates.
type mockRenderer struct {
	name   string
	status int
	data   map[string]interface{}
}

func (m *mockRenderer) Render(w http.ResponseWriter, status int, name string, data map[string]interface{}) error {
	m.name, m.status, m.data = name, status, data
	w.WriteHeader(status)
	return nil
}

// mockPostService is a mock implementation of service.PostServicer.
type mockPostService struct {
	post        *data.Post
	page        *service.PostPage
	results     []*data.Post
	sitemap     *service.SitemapData
	errToReturn error

	lastQuery    service.ListQuery
	lastSearch   string
	lastInput    service.PostInput
	searchCalls  int
	deleteCalled bool
	sitemapCalls int
}

var _ service.PostServicer = (*mockPostService)(nil)

func (m *mockPostService) ViewPost(ctx context.Context, slug string) (*data.Post, error) {
	return m.post, m.errToReturn
}
func (m *mockPostService) ListPosts(ctx context.Context, q service.ListQuery) (*service.PostPage, error) {
	m.lastQuery = q
	return m.page, m.errToReturn
}
func (m *mockPostService) Search(ctx context.Context, query string) ([]*data.Post, error) {
	m.searchCalls++
	m.lastSearch = query
	return m.results, m.errToReturn
}
func (m *mockPostService) RelatedPosts(ctx context.Context, post *data.Post) ([]*data.Post, error) {
	return nil, nil
}
func (m *mockPostService) Sidebar(ctx context.Context) (*service.Sidebar, error) {
	return &service.Sidebar{}, nil
}
func (m *mockPostService) SitemapEntries(ctx context.Context) (*service.SitemapData, error) {
	m.sitemapCalls++
	return m.sitemap, m.errToReturn
}
func (m *mockPostService) GetPostForEdit(ctx context.Context, user *data.User, slug string) (*data.Post, error) {
	if m.errToReturn != nil {
		return nil, m.errToReturn
	}
	return m.post, nil
}
func (m *mockPostService) CreatePost(ctx context.Context, user *data.User, in service.PostInput) (*data.Post, error) {
	m.lastInput = in
	return m.post, m.errToReturn
}
func (m *mockPostService) UpdatePost(ctx context.Context, user *data.User, slug string, in service.PostInput) (*data.Post, error) {
	m.lastInput = in
	return m.post, m.errToReturn
}
func (m *mockPostService) DeletePost(ctx context.Context, user *data.User, slug string) error {
	m.deleteCalled = true
	return m.errToReturn
}

// mockTaxonomyService is a mock implementation of service.TaxonomyServicer.
type mockTaxonomyService struct {
	category    *data.Category
	tag         *data.Tag
	errToReturn error
	lastInput   service.CategoryInput
}

var _ service.TaxonomyServicer = (*mockTaxonomyService)(nil)

func (m *mockTaxonomyService) Categories(ctx context.Context) ([]*data.Category, error) {
	return []*data.Category{{ID: 1, Name: "Tech", Slug: "tech"}}, nil
}
func (m *mockTaxonomyService) Tags(ctx context.Context) ([]*data.Tag, error) {
	return []*data.Tag{{ID: 1, Name: "Go", Slug: "go"}}, nil
}
func (m *mockTaxonomyService) CategoryBySlug(ctx context.Context, slug string) (*data.Category, error) {
	return m.category, m.errToReturn
}
func (m *mockTaxonomyService) TagBySlug(ctx context.Context, slug string) (*data.Tag, error) {
	return m.tag, m.errToReturn
}
func (m *mockTaxonomyService) CreateCategory(ctx context.Context, user *data.User, in service.CategoryInput) (*data.Category, error) {
	m.lastInput = in
	return m.category, m.errToReturn
}

// mockAuthenticator returns fixed claims for any code.
type mockAuthenticator struct {
	claims *auth.Claims
	err    error
	code   string
}

func (m *mockAuthenticator) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return "https://idp.example.com/authorize?state=" + state
}
func (m *mockAuthenticator) Login(ctx context.Context, code string) (*auth.Claims, error) {
	m.code = code
	return m.claims, m.err
}

// mockUserStore assigns ids on upsert.
type mockUserStore struct {
	upserted []*data.User
}

func (m *mockUserStore) Upsert(ctx context.Context, user *data.User) error {
	user.ID = int64(len(m.upserted) + 1)
	m.upserted = append(m.upserted, user)
	return nil
}

// testHandlers wires handlers over the mocks.
type testHandlers struct {
	posts    *mockPostService
	taxonomy *mockTaxonomyService
	session  *mockSessionManager
	view     *mockRenderer
	post     *PostHandler
	tax      *TaxonomyHandler
	errors   func(middleware.AppHandler) http.Handler
}

func newTestHandlers() *testHandlers {
	h := &testHandlers{
		posts:    &mockPostService{},
		taxonomy: &mockTaxonomyService{},
		session:  newMockSession(),
		view:     &mockRenderer{},
	}
	log := logger.Nop()
	h.post = NewPostHandler(h.posts, h.taxonomy, h.view, h.session, 1<<20, log)
	h.tax = NewTaxonomyHandler(h.posts, h.taxonomy, h.view, h.session, log)
	h.errors = middleware.Error(log, h.view)
	return h
}
