// Package datatest provides an in-memory SQLite database carrying the blog
// schema, for integration tests of the data layer and the HTTP stack.
package datatest

import (
	"context"
	"testing"
	"time"

	"go-blog-app/internal/data"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Schema mirrors migrations/ in SQLite dialect, plus the scs sqlite3store table.
const Schema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	is_staff BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE TABLE categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	slug TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE TABLE tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	slug TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL
);
CREATE TABLE posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	category_id INTEGER REFERENCES categories(id) ON DELETE SET NULL,
	body TEXT NOT NULL,
	excerpt TEXT NOT NULL DEFAULT '',
	featured_image TEXT,
	status TEXT NOT NULL DEFAULT 'draft',
	views_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX idx_posts_created_at ON posts (created_at);
CREATE INDEX idx_posts_status ON posts (status);
CREATE TABLE post_tags (
	post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (post_id, tag_id)
);
CREATE TABLE sessions (
	token TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	expiry REAL NOT NULL
);
CREATE INDEX sessions_expiry_idx ON sessions (expiry);
`

// NewDB opens a private in-memory database with the schema applied and
// foreign keys enforced. It is closed when the test ends.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Connect("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to connect to sqlite test database: %v", err)
	}
	// Every new connection to :memory: is a new, empty database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.MustExec(Schema)

	t.Cleanup(func() { db.Close() })
	return db
}

// CreateUser inserts a user and fails the test on error.
func CreateUser(t testing.TB, db *sqlx.DB, subject string, staff bool) *data.User {
	t.Helper()
	u := &data.User{Subject: subject, Username: subject, Email: subject + "@example.com", IsStaff: staff}
	if err := data.NewUserRepository(db).Upsert(context.Background(), u); err != nil {
		t.Fatalf("failed to create user %s: %v", subject, err)
	}
	return u
}

// CreateCategory inserts a category and fails the test on error.
func CreateCategory(t testing.TB, db *sqlx.DB, name, slug string) *data.Category {
	t.Helper()
	c := &data.Category{Name: name, Slug: slug}
	if _, err := data.NewCategoryRepository(db).Save(context.Background(), c); err != nil {
		t.Fatalf("failed to create category %s: %v", name, err)
	}
	return c
}

// CreateTag inserts a tag and fails the test on error.
func CreateTag(t testing.TB, db *sqlx.DB, name, slug string) *data.Tag {
	t.Helper()
	tag := &data.Tag{Name: name, Slug: slug}
	if _, err := data.NewTagRepository(db).Save(context.Background(), tag); err != nil {
		t.Fatalf("failed to create tag %s: %v", name, err)
	}
	return tag
}

// CreatePost inserts a post with the given status, category and tags. A
// millisecond pause keeps creation times strictly increasing.
func CreatePost(t testing.TB, db *sqlx.DB, author *data.User, slug string, status data.Status, category *data.Category, tags ...*data.Tag) *data.Post {
	t.Helper()
	p := &data.Post{
		Title:    slug,
		Slug:     slug,
		AuthorID: author.ID,
		Body:     "<p>Body of " + slug + "</p>",
		Excerpt:  "Body of " + slug,
		Status:   status,
	}
	if category != nil {
		p.CategoryID = &category.ID
	}
	var tagIDs []int64
	for _, tag := range tags {
		tagIDs = append(tagIDs, tag.ID)
	}
	if err := data.NewSQLPostRepository(db).CreatePost(context.Background(), p, tagIDs); err != nil {
		t.Fatalf("failed to create post %s: %v", slug, err)
	}
	time.Sleep(time.Millisecond)
	return p
}
