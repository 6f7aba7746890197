package data

import (
	"errors"
	"html/template"
	"time"
)

// ErrNotFound is returned by repositories when no row matches.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a write hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// Status is the visibility state of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// User is an author account created on first login.
type User struct {
	ID        int64     `db:"id"`
	Subject   string    `db:"subject"`
	Username  string    `db:"username"`
	Email     string    `db:"email"`
	IsStaff   bool      `db:"is_staff"`
	CreatedAt time.Time `db:"created_at"`
}

// Category groups posts. A post has at most one category.
type Category struct {
	ID              int64         `db:"id"`
	Name            string        `db:"name"`
	Slug            string        `db:"slug"`
	Description     string        `db:"description"`
	DescriptionHTML template.HTML `db:"-"`
	CreatedAt       time.Time     `db:"created_at"`
	PostCount       int           `db:"post_count"`
}

// Tag labels posts. Posts and tags are many-to-many.
type Tag struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Slug      string    `db:"slug"`
	CreatedAt time.Time `db:"created_at"`
	PostCount int       `db:"post_count"`
}

// Post represents a single blog entry in the database.
type Post struct {
	ID            int64     `db:"id"`
	Title         string    `db:"title"`
	Slug          string    `db:"slug"`
	AuthorID      int64     `db:"author_id"`
	CategoryID    *int64    `db:"category_id"`
	Body          string    `db:"body"`
	Excerpt       string    `db:"excerpt"`
	FeaturedImage *string   `db:"featured_image"`
	Status        Status    `db:"status"`
	ViewsCount    int64     `db:"views_count"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`

	// Joined columns, read-only.
	AuthorName   string `db:"author_name"`
	CategoryName string `db:"category_name"`
	CategorySlug string `db:"category_slug"`

	Tags             []*Tag        `db:"-"`
	BodyHTML         template.HTML `db:"-"`
	FeaturedImageURL string        `db:"-"`
}

// IsPublished reports whether the post is publicly visible.
func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// TagIDs returns the ids of the post's tags.
func (p *Post) TagIDs() []int64 {
	ids := make([]int64, 0, len(p.Tags))
	for _, t := range p.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

// HasTag reports whether the post carries the tag with the given id.
func (p *Post) HasTag(id int64) bool {
	for _, t := range p.Tags {
		if t.ID == id {
			return true
		}
	}
	return false
}
