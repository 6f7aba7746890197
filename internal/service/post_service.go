package service

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"go-blog-app/internal/auth"
	"go-blog-app/internal/cache"
	"go-blog-app/internal/config"
	"go-blog-app/internal/content"
	"go-blog-app/internal/data"
	"go-blog-app/internal/logger"
	"go-blog-app/internal/media"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxTitleLength   = 250
	maxExcerptLength = 500
)

// PostRepository defines the interface for database operations on posts.
type PostRepository interface {
	CreatePost(ctx context.Context, post *data.Post, tagIDs []int64) error
	UpdatePost(ctx context.Context, post *data.Post, tagIDs []int64) error
	DeletePost(ctx context.Context, id int64) error
	GetPostBySlug(ctx context.Context, slug string) (*data.Post, error)
	GetPostByID(ctx context.Context, id int64) (*data.Post, error)
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	ListPosts(ctx context.Context, filter data.PostFilter) ([]*data.Post, error)
	CountPosts(ctx context.Context, filter data.PostFilter) (int, error)
	SearchPosts(ctx context.Context, query string, status data.Status) ([]*data.Post, error)
	IncrementViews(ctx context.Context, id int64) (int64, error)
}

// PostServicer defines the interface the HTTP layer uses for posts.
type PostServicer interface {
	ViewPost(ctx context.Context, slug string) (*data.Post, error)
	ListPosts(ctx context.Context, q ListQuery) (*PostPage, error)
	Search(ctx context.Context, query string) ([]*data.Post, error)
	RelatedPosts(ctx context.Context, post *data.Post) ([]*data.Post, error)
	Sidebar(ctx context.Context) (*Sidebar, error)
	SitemapEntries(ctx context.Context) (*SitemapData, error)
	GetPostForEdit(ctx context.Context, user *data.User, slug string) (*data.Post, error)
	CreatePost(ctx context.Context, user *data.User, in PostInput) (*data.Post, error)
	UpdatePost(ctx context.Context, user *data.User, slug string, in PostInput) (*data.Post, error)
	DeletePost(ctx context.Context, user *data.User, slug string) error
}

// ImageUpload is a featured image submitted with a post form.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// PostInput is the author-editable part of a post.
type PostInput struct {
	Title      string
	Body       string
	Excerpt    string
	Status     data.Status
	CategoryID *int64
	TagIDs     []int64
	// NewTags is a comma-separated list of tag names, created when missing.
	NewTags     string
	Image       *ImageUpload
	RemoveImage bool
}

// PostService provides business logic for managing posts.
type PostService struct {
	posts     PostRepository
	taxonomy  *TaxonomyService
	media     media.Store
	cache     cache.Store
	sanitizer *bluemonday.Policy
	blog      config.BlogConfig
	maxUpload int64
	cacheTTL  time.Duration
	log       logger.Logger
	now       func() time.Time
}

// PostServiceOptions carries the tunables of a PostService.
type PostServiceOptions struct {
	Blog           config.BlogConfig
	MaxUploadBytes int64
	CacheTTL       time.Duration
	Logger         logger.Logger
}

// NewPostService creates a new PostService.
func NewPostService(posts PostRepository, taxonomy *TaxonomyService, store media.Store, c cache.Store, opts PostServiceOptions) *PostService {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Blog.PostsPerPage <= 0 {
		opts.Blog.PostsPerPage = 6
	}
	if opts.Blog.RelatedCount <= 0 {
		opts.Blog.RelatedCount = 3
	}
	if opts.Blog.RecentCount <= 0 {
		opts.Blog.RecentCount = 5
	}
	if opts.Blog.TagCloudSize <= 0 {
		opts.Blog.TagCloudSize = 20
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &PostService{
		posts:     posts,
		taxonomy:  taxonomy,
		media:     store,
		cache:     c,
		sanitizer: bluemonday.UGCPolicy(),
		blog:      opts.Blog,
		maxUpload: opts.MaxUploadBytes,
		cacheTTL:  opts.CacheTTL,
		log:       opts.Logger,
		now:       time.Now,
	}
}

// ViewPost returns a published post and records one view of it.
func (s *PostService) ViewPost(ctx context.Context, slug string) (*data.Post, error) {
	post, err := s.posts.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, translate(err)
	}
	if !post.IsPublished() {
		return nil, ErrNotFound
	}
	views, err := s.posts.IncrementViews(ctx, post.ID)
	if err != nil {
		return nil, translate(err)
	}
	post.ViewsCount = views
	postViewsTotal.Inc()
	s.decorate(post)
	return post, nil
}

// GetPostForEdit returns any post, draft or not, that user may modify.
func (s *PostService) GetPostForEdit(ctx context.Context, user *data.User, slug string) (*data.Post, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	post, err := s.posts.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, translate(err)
	}
	if d := auth.CanModifyPost(user, post); !d.Allowed {
		s.log.With(map[string]interface{}{"user": user.ID, "post": post.ID, "reason": d.Reason}).Warn("post modification denied")
		return nil, ErrForbidden
	}
	s.decorate(post)
	return post, nil
}

// CreatePost validates and persists a new post authored by user.
func (s *PostService) CreatePost(ctx context.Context, user *data.User, in PostInput) (*data.Post, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	upload, err := s.validate(ctx, &in)
	if err != nil {
		return nil, err
	}

	tagIDs, err := s.resolveTags(ctx, in)
	if err != nil {
		return nil, err
	}

	post := &data.Post{AuthorID: user.ID}
	s.apply(post, in)
	if err := s.normalize(ctx, post, in.Body); err != nil {
		return nil, err
	}

	key, err := s.storeImage(ctx, upload)
	if err != nil {
		return nil, err
	}
	if key != "" {
		post.FeaturedImage = &key
	}

	if err := s.insert(ctx, post, in.Body, tagIDs); err != nil {
		s.discardImage(ctx, key)
		return nil, err
	}
	s.invalidate(ctx)
	s.decorate(post)
	return post, nil
}

// UpdatePost applies in to the post identified by slug. The slug itself is
// never recomputed.
func (s *PostService) UpdatePost(ctx context.Context, user *data.User, slug string, in PostInput) (*data.Post, error) {
	post, err := s.GetPostForEdit(ctx, user, slug)
	if err != nil {
		return nil, err
	}
	upload, err := s.validate(ctx, &in)
	if err != nil {
		return nil, err
	}
	tagIDs, err := s.resolveTags(ctx, in)
	if err != nil {
		return nil, err
	}

	s.apply(post, in)
	if err := s.normalize(ctx, post, in.Body); err != nil {
		return nil, err
	}

	oldImage := ""
	if post.FeaturedImage != nil {
		oldImage = *post.FeaturedImage
	}
	key, err := s.storeImage(ctx, upload)
	if err != nil {
		return nil, err
	}
	switch {
	case key != "":
		post.FeaturedImage = &key
	case in.RemoveImage:
		post.FeaturedImage = nil
	}

	if err := s.posts.UpdatePost(ctx, post, tagIDs); err != nil {
		s.discardImage(ctx, key)
		return nil, err
	}
	if oldImage != "" && (post.FeaturedImage == nil || *post.FeaturedImage != oldImage) {
		s.discardImage(ctx, oldImage)
	}

	updated, err := s.posts.GetPostByID(ctx, post.ID)
	if err != nil {
		return nil, translate(err)
	}
	s.invalidate(ctx)
	s.decorate(updated)
	return updated, nil
}

// DeletePost removes the post identified by slug and its featured image.
func (s *PostService) DeletePost(ctx context.Context, user *data.User, slug string) error {
	post, err := s.GetPostForEdit(ctx, user, slug)
	if err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, post.ID); err != nil {
		return translate(err)
	}
	if post.FeaturedImage != nil {
		s.discardImage(ctx, *post.FeaturedImage)
	}
	s.invalidate(ctx)
	return nil
}

// validate checks the submitted fields and the image, trimming in place.
// It returns the validated upload, if any.
func (s *PostService) validate(ctx context.Context, in *PostInput) (*validatedImage, error) {
	verr := NewValidationError()

	in.Title = strings.TrimSpace(in.Title)
	in.Excerpt = strings.TrimSpace(in.Excerpt)
	switch {
	case in.Title == "":
		verr.Add("title", "This field is required.")
	case utf8.RuneCountInString(in.Title) > maxTitleLength:
		verr.Add("title", fmt.Sprintf("Ensure this value has at most %d characters.", maxTitleLength))
	}
	if strings.TrimSpace(in.Body) == "" {
		verr.Add("body", "This field is required.")
	}
	if utf8.RuneCountInString(in.Excerpt) > maxExcerptLength {
		verr.Add("excerpt", fmt.Sprintf("Ensure this value has at most %d characters.", maxExcerptLength))
	}
	if in.Status == "" {
		in.Status = data.StatusDraft
	}
	if !in.Status.Valid() {
		verr.Add("status", "Select a valid choice.")
	}

	if in.CategoryID != nil {
		if _, err := s.taxonomy.categories.GetByID(ctx, *in.CategoryID); err != nil {
			if !errors.Is(err, data.ErrNotFound) {
				return nil, err
			}
			verr.Add("category", "Select a valid choice.")
		}
	}
	if len(in.TagIDs) > 0 {
		found, err := s.taxonomy.tags.GetByIDs(ctx, in.TagIDs)
		if err != nil {
			return nil, err
		}
		if len(found) != len(uniqueIDs(in.TagIDs)) {
			verr.Add("tags", "Select a valid choice.")
		}
	}
	for _, name := range splitTagNames(in.NewTags) {
		if utf8.RuneCountInString(name) > maxTagNameLength {
			verr.Add("new_tags", fmt.Sprintf("Tag names have at most %d characters.", maxTagNameLength))
		}
	}

	var upload *validatedImage
	if in.Image != nil && len(in.Image.Data) > 0 {
		contentType, ext, err := media.Validate(in.Image.Data, s.maxUpload)
		switch {
		case errors.Is(err, media.ErrTooLarge):
			verr.Add("featured_image", fmt.Sprintf("The image may be at most %d bytes.", s.maxUpload))
		case err != nil:
			verr.Add("featured_image", "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
		default:
			upload = &validatedImage{data: in.Image.Data, contentType: contentType, ext: ext}
		}
	}

	if err := verr.orErr(); err != nil {
		return nil, err
	}
	return upload, nil
}

// resolveTags returns the selected tag ids plus those of the new tag
// names, creating tags that do not exist yet.
func (s *PostService) resolveTags(ctx context.Context, in PostInput) ([]int64, error) {
	ids := uniqueIDs(in.TagIDs)
	created, err := s.taxonomy.FindOrCreateTags(ctx, in.NewTags)
	if err != nil {
		return nil, err
	}
	for _, t := range created {
		ids = append(ids, t.ID)
	}
	return uniqueIDs(ids), nil
}

func (s *PostService) apply(post *data.Post, in PostInput) {
	post.Title = in.Title
	post.Body = s.sanitizer.Sanitize(in.Body)
	post.Excerpt = in.Excerpt
	post.Status = in.Status
	post.CategoryID = in.CategoryID
}

// insert creates post. A slug taken by a concurrent create between the
// uniqueness check and the insert is recomputed once.
func (s *PostService) insert(ctx context.Context, post *data.Post, rawBody string, tagIDs []int64) error {
	err := s.posts.CreatePost(ctx, post, tagIDs)
	if !errors.Is(err, data.ErrDuplicate) {
		return err
	}
	s.log.With(map[string]interface{}{"slug": post.Slug}).Warn("slug taken concurrently, retrying")
	post.Slug = ""
	if err := s.normalize(ctx, post, rawBody); err != nil {
		return err
	}
	return s.posts.CreatePost(ctx, post, tagIDs)
}

// normalize fills the slug and excerpt when they are empty. Once set they
// are left alone, even if the title or body later change. The excerpt is
// cut from the submitted body, not the sanitized one, so text stays
// unescaped.
func (s *PostService) normalize(ctx context.Context, post *data.Post, rawBody string) error {
	if post.Slug == "" {
		slug, err := content.UniqueSlug(ctx, post.Title, "post", func(ctx context.Context, candidate string) (bool, error) {
			return s.posts.SlugExists(ctx, candidate, post.ID)
		})
		if err != nil {
			return err
		}
		post.Slug = slug
	}
	if post.Excerpt == "" && rawBody != "" {
		post.Excerpt = content.Excerpt(rawBody)
	}
	return nil
}

type validatedImage struct {
	data        []byte
	contentType string
	ext         string
}

func (s *PostService) storeImage(ctx context.Context, img *validatedImage) (string, error) {
	if img == nil {
		return "", nil
	}
	key := media.Key(s.now(), img.ext)
	if err := s.media.Put(ctx, key, img.contentType, img.data); err != nil {
		return "", fmt.Errorf("failed to store featured image: %w", err)
	}
	return key, nil
}

func (s *PostService) discardImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.media.Delete(ctx, key); err != nil {
		s.log.Error(err, "failed to delete featured image "+key)
	}
}

// decorate fills the render-only fields of post.
func (s *PostService) decorate(post *data.Post) {
	post.BodyHTML = template.HTML(post.Body)
	post.FeaturedImageURL = ""
	if post.FeaturedImage != nil && s.media != nil {
		post.FeaturedImageURL = s.media.URL(*post.FeaturedImage)
	}
}

func (s *PostService) decorateAll(posts []*data.Post) {
	for _, p := range posts {
		s.decorate(p)
	}
}

// invalidate drops cached aggregates after a write.
func (s *PostService) invalidate(ctx context.Context) {
	invalidate(ctx, s.cache, s.log)
}

func invalidate(ctx context.Context, c cache.Store, log logger.Logger) {
	if c == nil {
		return
	}
	if err := c.Delete(ctx, cache.KeySidebar, cache.KeySitemap); err != nil {
		log.Error(err, "failed to invalidate cache")
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
