package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"unicode/utf8"

	"go-blog-app/internal/auth"
	"go-blog-app/internal/cache"
	"go-blog-app/internal/content"
	"go-blog-app/internal/data"
	"go-blog-app/internal/logger"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

const (
	maxCategoryNameLength = 100
	maxTagNameLength      = 50
)

// CategoryRepository defines the interface for database operations on categories.
type CategoryRepository interface {
	GetAll(ctx context.Context) ([]*data.Category, error)
	GetByID(ctx context.Context, id int64) (*data.Category, error)
	GetBySlug(ctx context.Context, slug string) (*data.Category, error)
	GetByName(ctx context.Context, name string) (*data.Category, error)
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	Save(ctx context.Context, category *data.Category) (int64, error)
	ListWithPublishedPosts(ctx context.Context) ([]*data.Category, error)
}

// TagRepository defines the interface for database operations on tags.
type TagRepository interface {
	GetAll(ctx context.Context) ([]*data.Tag, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*data.Tag, error)
	GetBySlug(ctx context.Context, slug string) (*data.Tag, error)
	GetByName(ctx context.Context, name string) (*data.Tag, error)
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	Save(ctx context.Context, tag *data.Tag) (int64, error)
	ListWithPublishedPosts(ctx context.Context, limit int) ([]*data.Tag, error)
}

// TaxonomyServicer defines the interface the HTTP layer uses for
// categories and tags.
type TaxonomyServicer interface {
	Categories(ctx context.Context) ([]*data.Category, error)
	Tags(ctx context.Context) ([]*data.Tag, error)
	CategoryBySlug(ctx context.Context, slug string) (*data.Category, error)
	TagBySlug(ctx context.Context, slug string) (*data.Tag, error)
	CreateCategory(ctx context.Context, user *data.User, in CategoryInput) (*data.Category, error)
}

// CategoryInput is the staff-editable part of a category.
type CategoryInput struct {
	Name        string
	Description string
}

// TaxonomyService provides business logic for categories and tags.
type TaxonomyService struct {
	categories CategoryRepository
	tags       TagRepository
	cache      cache.Store
	markdown   goldmark.Markdown
	sanitizer  *bluemonday.Policy
	log        logger.Logger
}

// NewTaxonomyService creates a new TaxonomyService.
func NewTaxonomyService(categories CategoryRepository, tags TagRepository, c cache.Store, log logger.Logger) *TaxonomyService {
	if log == nil {
		log = logger.Nop()
	}
	return &TaxonomyService{
		categories: categories,
		tags:       tags,
		cache:      c,
		markdown:   goldmark.New(),
		sanitizer:  bluemonday.UGCPolicy(),
		log:        log,
	}
}

// Categories returns every category ordered by name.
func (s *TaxonomyService) Categories(ctx context.Context) ([]*data.Category, error) {
	return s.categories.GetAll(ctx)
}

// Tags returns every tag ordered by name.
func (s *TaxonomyService) Tags(ctx context.Context) ([]*data.Tag, error) {
	return s.tags.GetAll(ctx)
}

// CategoryBySlug returns the category with its description rendered.
func (s *TaxonomyService) CategoryBySlug(ctx context.Context, slug string) (*data.Category, error) {
	category, err := s.categories.GetBySlug(ctx, slug)
	if err != nil {
		return nil, translate(err)
	}
	category.DescriptionHTML = s.renderDescription(category.Description)
	return category, nil
}

// TagBySlug returns the tag with the given slug.
func (s *TaxonomyService) TagBySlug(ctx context.Context, slug string) (*data.Tag, error) {
	tag, err := s.tags.GetBySlug(ctx, slug)
	if err != nil {
		return nil, translate(err)
	}
	return tag, nil
}

// CreateCategory validates and saves a category. Only staff may do so.
func (s *TaxonomyService) CreateCategory(ctx context.Context, user *data.User, in CategoryInput) (*data.Category, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	if d := auth.IsStaff(user); !d.Allowed {
		return nil, ErrForbidden
	}

	in.Name = strings.TrimSpace(in.Name)
	verr := NewValidationError()
	switch {
	case in.Name == "":
		verr.Add("name", "This field is required.")
	case utf8.RuneCountInString(in.Name) > maxCategoryNameLength:
		verr.Add("name", fmt.Sprintf("Ensure this value has at most %d characters.", maxCategoryNameLength))
	default:
		_, err := s.categories.GetByName(ctx, in.Name)
		switch {
		case err == nil:
			verr.Add("name", "Category with this Name already exists.")
		case !errors.Is(err, data.ErrNotFound):
			return nil, err
		}
	}
	if err := verr.orErr(); err != nil {
		return nil, err
	}

	category := &data.Category{Name: in.Name, Description: strings.TrimSpace(in.Description)}
	slug, err := content.UniqueSlug(ctx, category.Name, "category", func(ctx context.Context, candidate string) (bool, error) {
		return s.categories.SlugExists(ctx, candidate, category.ID)
	})
	if err != nil {
		return nil, err
	}
	category.Slug = slug

	if _, err := s.categories.Save(ctx, category); err != nil {
		return nil, err
	}
	invalidate(ctx, s.cache, s.log)
	category.DescriptionHTML = s.renderDescription(category.Description)
	return category, nil
}

// FindOrCreateTags resolves a comma-separated list of tag names, creating
// the tags that do not exist yet.
func (s *TaxonomyService) FindOrCreateTags(ctx context.Context, names string) ([]*data.Tag, error) {
	var result []*data.Tag
	for _, name := range splitTagNames(names) {
		tag, err := s.tags.GetByName(ctx, name)
		if err == nil {
			result = append(result, tag)
			continue
		}
		if !errors.Is(err, data.ErrNotFound) {
			return nil, err
		}

		tag = &data.Tag{Name: name}
		tag.Slug, err = content.UniqueSlug(ctx, name, "tag", func(ctx context.Context, candidate string) (bool, error) {
			return s.tags.SlugExists(ctx, candidate, 0)
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.tags.Save(ctx, tag); err != nil {
			return nil, err
		}
		s.log.With(map[string]interface{}{"tag": tag.Slug}).Info("tag created")
		result = append(result, tag)
	}
	return result, nil
}

// renderDescription turns a markdown description into sanitised HTML.
func (s *TaxonomyService) renderDescription(src string) template.HTML {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(src), &buf); err != nil {
		s.log.Error(err, "failed to render category description")
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(s.sanitizer.SanitizeBytes(buf.Bytes()))
}

// splitTagNames splits a comma-separated list, trimming blanks and
// dropping case-insensitive duplicates.
func splitTagNames(s string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, name)
	}
	return names
}
