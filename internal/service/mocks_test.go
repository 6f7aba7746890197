//go:build unit

package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"go-blog-app/internal/cache"
	"go-blog-app/internal/config"
	"go-blog-app/internal/data"
)

// newTestCache creates a new in-memory cache for testing.
func newTestCache(t *testing.T) cache.Store {
	t.Helper()
	c, err := cache.New(config.CacheConfig{Backend: "sqlite", FilePath: "file::memory:"})
	if err != nil {
		t.Fatalf("failed to create test cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// mockPostRepository is an in-memory implementation of PostRepository.
type mockPostRepository struct {
	posts  map[string]*data.Post
	nextID int64

	listFunc      func(filter data.PostFilter) ([]*data.Post, error)
	createFunc    func(post *data.Post) error
	countToReturn int
	searchResults []*data.Post
	errToReturn   error

	createCalled   int
	updateCalled   int
	deleteCalled   int
	incrementCalls int
	listFilters    []data.PostFilter
	lastTagIDs     []int64
	lastSearch     string
}

var _ PostRepository = (*mockPostRepository)(nil)

func newMockPostRepository() *mockPostRepository {
	return &mockPostRepository{posts: make(map[string]*data.Post)}
}

func (m *mockPostRepository) add(p *data.Post) *data.Post {
	m.nextID++
	if p.ID == 0 {
		p.ID = m.nextID
	}
	m.posts[p.Slug] = p
	return p
}

func (m *mockPostRepository) CreatePost(ctx context.Context, post *data.Post, tagIDs []int64) error {
	m.createCalled++
	m.lastTagIDs = tagIDs
	if m.errToReturn != nil {
		return m.errToReturn
	}
	if m.createFunc != nil {
		if err := m.createFunc(post); err != nil {
			return err
		}
	}
	m.add(post)
	return nil
}

func (m *mockPostRepository) UpdatePost(ctx context.Context, post *data.Post, tagIDs []int64) error {
	m.updateCalled++
	m.lastTagIDs = tagIDs
	if m.errToReturn != nil {
		return m.errToReturn
	}
	m.posts[post.Slug] = post
	return nil
}

func (m *mockPostRepository) DeletePost(ctx context.Context, id int64) error {
	m.deleteCalled++
	for slug, p := range m.posts {
		if p.ID == id {
			delete(m.posts, slug)
			return nil
		}
	}
	return data.ErrNotFound
}

func (m *mockPostRepository) GetPostBySlug(ctx context.Context, slug string) (*data.Post, error) {
	if p, ok := m.posts[slug]; ok {
		return p, nil
	}
	return nil, data.ErrNotFound
}

func (m *mockPostRepository) GetPostByID(ctx context.Context, id int64) (*data.Post, error) {
	for _, p := range m.posts {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, data.ErrNotFound
}

func (m *mockPostRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	p, ok := m.posts[slug]
	return ok && p.ID != excludeID, nil
}

func (m *mockPostRepository) ListPosts(ctx context.Context, filter data.PostFilter) ([]*data.Post, error) {
	m.listFilters = append(m.listFilters, filter)
	if m.listFunc != nil {
		return m.listFunc(filter)
	}
	return nil, nil
}

func (m *mockPostRepository) CountPosts(ctx context.Context, filter data.PostFilter) (int, error) {
	return m.countToReturn, nil
}

func (m *mockPostRepository) SearchPosts(ctx context.Context, query string, status data.Status) ([]*data.Post, error) {
	m.lastSearch = query
	return m.searchResults, nil
}

func (m *mockPostRepository) IncrementViews(ctx context.Context, id int64) (int64, error) {
	m.incrementCalls++
	p, err := m.GetPostByID(ctx, id)
	if err != nil {
		return 0, err
	}
	p.ViewsCount++
	return p.ViewsCount, nil
}

// mockCategoryRepository is an in-memory implementation of CategoryRepository.
type mockCategoryRepository struct {
	byID       map[int64]*data.Category
	listCalled int
	saveCalled int
}

var _ CategoryRepository = (*mockCategoryRepository)(nil)

func newMockCategoryRepository(categories ...*data.Category) *mockCategoryRepository {
	m := &mockCategoryRepository{byID: make(map[int64]*data.Category)}
	for _, c := range categories {
		m.byID[c.ID] = c
	}
	return m
}

func (m *mockCategoryRepository) GetAll(ctx context.Context) ([]*data.Category, error) {
	var out []*data.Category
	for _, c := range m.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockCategoryRepository) GetByID(ctx context.Context, id int64) (*data.Category, error) {
	if c, ok := m.byID[id]; ok {
		return c, nil
	}
	return nil, data.ErrNotFound
}

func (m *mockCategoryRepository) find(match func(*data.Category) bool) (*data.Category, error) {
	for _, c := range m.byID {
		if match(c) {
			return c, nil
		}
	}
	return nil, data.ErrNotFound
}

func (m *mockCategoryRepository) GetBySlug(ctx context.Context, slug string) (*data.Category, error) {
	return m.find(func(c *data.Category) bool { return c.Slug == slug })
}

func (m *mockCategoryRepository) GetByName(ctx context.Context, name string) (*data.Category, error) {
	return m.find(func(c *data.Category) bool { return c.Name == name })
}

func (m *mockCategoryRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	c, err := m.find(func(c *data.Category) bool { return c.Slug == slug })
	return err == nil && c.ID != excludeID, nil
}

func (m *mockCategoryRepository) Save(ctx context.Context, category *data.Category) (int64, error) {
	m.saveCalled++
	category.ID = int64(len(m.byID) + 100)
	m.byID[category.ID] = category
	return category.ID, nil
}

func (m *mockCategoryRepository) ListWithPublishedPosts(ctx context.Context) ([]*data.Category, error) {
	m.listCalled++
	return m.GetAll(ctx)
}

// mockTagRepository is an in-memory implementation of TagRepository.
type mockTagRepository struct {
	byID       map[int64]*data.Tag
	listCalled int
	saved      []*data.Tag
}

var _ TagRepository = (*mockTagRepository)(nil)

func newMockTagRepository(tags ...*data.Tag) *mockTagRepository {
	m := &mockTagRepository{byID: make(map[int64]*data.Tag)}
	for _, t := range tags {
		m.byID[t.ID] = t
	}
	return m
}

func (m *mockTagRepository) GetAll(ctx context.Context) ([]*data.Tag, error) {
	var out []*data.Tag
	for _, t := range m.byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockTagRepository) GetByIDs(ctx context.Context, ids []int64) ([]*data.Tag, error) {
	var out []*data.Tag
	for _, id := range uniqueIDs(ids) {
		if t, ok := m.byID[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTagRepository) find(match func(*data.Tag) bool) (*data.Tag, error) {
	for _, t := range m.byID {
		if match(t) {
			return t, nil
		}
	}
	return nil, data.ErrNotFound
}

func (m *mockTagRepository) GetBySlug(ctx context.Context, slug string) (*data.Tag, error) {
	return m.find(func(t *data.Tag) bool { return t.Slug == slug })
}

func (m *mockTagRepository) GetByName(ctx context.Context, name string) (*data.Tag, error) {
	return m.find(func(t *data.Tag) bool { return strings.EqualFold(t.Name, name) })
}

func (m *mockTagRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	t, err := m.find(func(t *data.Tag) bool { return t.Slug == slug })
	return err == nil && t.ID != excludeID, nil
}

func (m *mockTagRepository) Save(ctx context.Context, tag *data.Tag) (int64, error) {
	tag.ID = int64(len(m.byID) + 100)
	m.byID[tag.ID] = tag
	m.saved = append(m.saved, tag)
	return tag.ID, nil
}

func (m *mockTagRepository) ListWithPublishedPosts(ctx context.Context, limit int) ([]*data.Tag, error) {
	m.listCalled++
	return m.GetAll(ctx)
}

// mockMediaStore records stored and deleted keys.
type mockMediaStore struct {
	puts    map[string][]byte
	deleted []string
	putErr  error
}

func newMockMediaStore() *mockMediaStore {
	return &mockMediaStore{puts: make(map[string][]byte)}
}

func (m *mockMediaStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.puts[key] = data
	return nil
}

func (m *mockMediaStore) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *mockMediaStore) URL(key string) string {
	return "/media/" + key
}

// fixture bundles a PostService with its mocks.
type fixture struct {
	posts      *mockPostRepository
	categories *mockCategoryRepository
	tags       *mockTagRepository
	media      *mockMediaStore
	cache      cache.Store
	svc        *PostService
	taxonomy   *TaxonomyService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		posts:      newMockPostRepository(),
		categories: newMockCategoryRepository(&data.Category{ID: 1, Name: "Tech", Slug: "tech"}),
		tags:       newMockTagRepository(&data.Tag{ID: 1, Name: "Go", Slug: "go"}, &data.Tag{ID: 2, Name: "SQL", Slug: "sql"}),
		media:      newMockMediaStore(),
		cache:      newTestCache(t),
	}
	f.taxonomy = NewTaxonomyService(f.categories, f.tags, f.cache, nil)
	f.svc = NewPostService(f.posts, f.taxonomy, f.media, f.cache, PostServiceOptions{
		Blog:           config.BlogConfig{PostsPerPage: 6, RelatedCount: 3, RecentCount: 5, TagCloudSize: 20},
		MaxUploadBytes: 1 << 20,
	})
	return f
}

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	return verr.Fields
}
