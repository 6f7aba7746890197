package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go-blog-app/internal/cache"
	"go-blog-app/internal/data"
)

// MaxQueryLength is the longest accepted search query, in characters.
const MaxQueryLength = 200

// ListQuery selects a page of published posts.
type ListQuery struct {
	CategorySlug string
	TagSlug      string
	Page         int
}

// PostPage is one page of a listing.
type PostPage struct {
	Posts      []*data.Post
	Number     int
	TotalPages int
	Total      int
}

// HasPrevious reports whether a page precedes this one.
func (p *PostPage) HasPrevious() bool { return p.Number > 1 }

// HasNext reports whether a page follows this one.
func (p *PostPage) HasNext() bool { return p.Number < p.TotalPages }

// PreviousNumber is the number of the preceding page.
func (p *PostPage) PreviousNumber() int { return p.Number - 1 }

// NextNumber is the number of the following page.
func (p *PostPage) NextNumber() int { return p.Number + 1 }

// Sidebar is the navigation shown beside every public page.
type Sidebar struct {
	Categories  []*data.Category
	Tags        []*data.Tag
	RecentPosts []*data.Post
}

// SitemapData lists everything that belongs in the sitemap.
type SitemapData struct {
	Posts      []*data.Post
	Categories []*data.Category
	Tags       []*data.Tag
}

// ListPosts returns one page of published posts, newest first. Page 1 is
// always valid; any other page outside the result range is ErrNotFound.
func (s *PostService) ListPosts(ctx context.Context, q ListQuery) (*PostPage, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Page < 1 {
		return nil, ErrNotFound
	}
	filter := data.PostFilter{
		Status:       data.StatusPublished,
		CategorySlug: q.CategorySlug,
		TagSlug:      q.TagSlug,
	}
	total, err := s.posts.CountPosts(ctx, filter)
	if err != nil {
		return nil, err
	}
	size := s.blog.PostsPerPage
	totalPages := (total + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}
	if q.Page > totalPages {
		return nil, ErrNotFound
	}

	filter.Limit = size
	filter.Offset = (q.Page - 1) * size
	posts, err := s.posts.ListPosts(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.decorateAll(posts)
	return &PostPage{Posts: posts, Number: q.Page, TotalPages: totalPages, Total: total}, nil
}

// Search returns published posts whose title, body, excerpt, category name
// or any tag name contains query, ignoring case.
func (s *PostService) Search(ctx context.Context, query string) ([]*data.Post, error) {
	query = strings.TrimSpace(query)
	verr := NewValidationError()
	switch {
	case query == "":
		verr.Add("query", "This field is required.")
	case utf8.RuneCountInString(query) > MaxQueryLength:
		verr.Add("query", fmt.Sprintf("Ensure this value has at most %d characters.", MaxQueryLength))
	}
	if err := verr.orErr(); err != nil {
		return nil, err
	}

	posts, err := s.posts.SearchPosts(ctx, query, data.StatusPublished)
	if err != nil {
		return nil, err
	}
	s.decorateAll(posts)
	return posts, nil
}

// RelatedPosts picks up to N other published posts: N from the same
// category if it has that many, else N sharing a tag if there are that
// many, else the N newest.
func (s *PostService) RelatedPosts(ctx context.Context, post *data.Post) ([]*data.Post, error) {
	n := s.blog.RelatedCount
	base := data.PostFilter{Status: data.StatusPublished, ExcludeID: post.ID, Limit: n}

	var tiers []data.PostFilter
	if post.CategoryID != nil {
		f := base
		f.CategoryID = *post.CategoryID
		tiers = append(tiers, f)
	}
	if len(post.Tags) > 0 {
		f := base
		f.AnyTagIDs = post.TagIDs()
		tiers = append(tiers, f)
	}
	for _, f := range tiers {
		posts, err := s.posts.ListPosts(ctx, f)
		if err != nil {
			return nil, err
		}
		if len(posts) >= n {
			s.decorateAll(posts)
			return posts, nil
		}
	}

	posts, err := s.posts.ListPosts(ctx, base)
	if err != nil {
		return nil, err
	}
	s.decorateAll(posts)
	return posts, nil
}

// Sidebar returns categories and tags with published posts, most
// populated first, and the most recent published posts. The result is
// cached until the next write.
func (s *PostService) Sidebar(ctx context.Context) (*Sidebar, error) {
	if cached := s.cachedSidebar(ctx); cached != nil {
		return cached, nil
	}

	categories, err := s.taxonomy.categories.ListWithPublishedPosts(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := s.taxonomy.tags.ListWithPublishedPosts(ctx, s.blog.TagCloudSize)
	if err != nil {
		return nil, err
	}
	recent, err := s.posts.ListPosts(ctx, data.PostFilter{Status: data.StatusPublished, Limit: s.blog.RecentCount})
	if err != nil {
		return nil, err
	}
	sidebar := &Sidebar{Categories: categories, Tags: tags, RecentPosts: recent}

	if s.cache != nil {
		if b, err := json.Marshal(sidebar); err == nil {
			if err := s.cache.Set(ctx, cache.KeySidebar, b, s.cacheTTL); err != nil {
				s.log.Error(err, "failed to cache sidebar")
			}
		}
	}
	return sidebar, nil
}

func (s *PostService) cachedSidebar(ctx context.Context) *Sidebar {
	if s.cache == nil {
		return nil
	}
	b, err := s.cache.Get(ctx, cache.KeySidebar)
	if err != nil {
		s.log.Error(err, "failed to read cached sidebar")
		return nil
	}
	if b == nil {
		return nil
	}
	var sidebar Sidebar
	if err := json.Unmarshal(b, &sidebar); err != nil {
		s.log.Error(err, "failed to decode cached sidebar")
		return nil
	}
	return &sidebar
}

// SitemapEntries returns published posts and every category and tag.
func (s *PostService) SitemapEntries(ctx context.Context) (*SitemapData, error) {
	posts, err := s.posts.ListPosts(ctx, data.PostFilter{Status: data.StatusPublished})
	if err != nil {
		return nil, err
	}
	categories, err := s.taxonomy.categories.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := s.taxonomy.tags.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return &SitemapData{Posts: posts, Categories: categories, Tags: tags}, nil
}
