//go:build integration

package data_test

import (
	"context"
	"errors"
	"testing"

	"go-blog-app/internal/data"
	"go-blog-app/internal/data/datatest"
)

func TestCategoryRepository_SaveAndGet(t *testing.T) {
	db := datatest.NewDB(t)
	repo := data.NewCategoryRepository(db)
	ctx := context.Background()

	category := &data.Category{Name: "Science", Slug: "science", Description: "All things *science*"}
	id, err := repo.Save(ctx, category)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	found, err := repo.GetBySlug(ctx, "science")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.Name != "Science" || found.ID != id {
		t.Errorf("expected Science/%d, got %s/%d", id, found.Name, found.ID)
	}

	byName, err := repo.GetByName(ctx, "Science")
	if err != nil || byName.ID != id {
		t.Errorf("expected to find category by name, got %v, %v", byName, err)
	}

	if _, err := repo.GetBySlug(ctx, "missing"); !errors.Is(err, data.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCategoryRepository_SlugExists(t *testing.T) {
	db := datatest.NewDB(t)
	repo := data.NewCategoryRepository(db)
	ctx := context.Background()

	c := datatest.CreateCategory(t, db, "Music", "music")

	exists, err := repo.SlugExists(ctx, "music", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected slug to exist")
	}

	exists, err = repo.SlugExists(ctx, "music", c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected the category's own slug to be excluded")
	}
}

func TestCategoryRepository_GetAllOrderedByName(t *testing.T) {
	db := datatest.NewDB(t)
	repo := data.NewCategoryRepository(db)

	datatest.CreateCategory(t, db, "Music", "music")
	datatest.CreateCategory(t, db, "Books", "books")

	categories, err := repo.GetAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(categories))
	}
	if categories[0].Name != "Books" {
		t.Errorf("expected Books first, got %s", categories[0].Name)
	}
}

func TestCategoryRepository_ListWithPublishedPosts(t *testing.T) {
	db := datatest.NewDB(t)
	repo := data.NewCategoryRepository(db)
	author := datatest.CreateUser(t, db, "alice", false)

	busy := datatest.CreateCategory(t, db, "Busy", "busy")
	quiet := datatest.CreateCategory(t, db, "Quiet", "quiet")
	drafts := datatest.CreateCategory(t, db, "Drafts", "drafts")
	datatest.CreateCategory(t, db, "Empty", "empty")

	datatest.CreatePost(t, db, author, "b1", data.StatusPublished, busy)
	datatest.CreatePost(t, db, author, "b2", data.StatusPublished, busy)
	datatest.CreatePost(t, db, author, "q1", data.StatusPublished, quiet)
	datatest.CreatePost(t, db, author, "d1", data.StatusDraft, drafts)

	categories, err := repo.ListWithPublishedPosts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("expected 2 categories with published posts, got %d", len(categories))
	}
	if categories[0].Slug != "busy" || categories[0].PostCount != 2 {
		t.Errorf("expected busy with 2 posts first, got %s with %d", categories[0].Slug, categories[0].PostCount)
	}
	if categories[1].Slug != "quiet" || categories[1].PostCount != 1 {
		t.Errorf("expected quiet with 1 post second, got %s with %d", categories[1].Slug, categories[1].PostCount)
	}
}

func TestCategoryRepository_DeleteNullsPostCategory(t *testing.T) {
	db := datatest.NewDB(t)
	ctx := context.Background()
	author := datatest.CreateUser(t, db, "alice", false)
	category := datatest.CreateCategory(t, db, "Gone", "gone")
	post := datatest.CreatePost(t, db, author, "orphan", data.StatusPublished, category)

	if err := data.NewCategoryRepository(db).Delete(ctx, category.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, err := data.NewSQLPostRepository(db).GetPostByID(ctx, post.ID)
	if err != nil {
		t.Fatalf("expected post to survive category deletion: %v", err)
	}
	if reloaded.CategoryID != nil {
		t.Errorf("expected category to be nulled, got %d", *reloaded.CategoryID)
	}
}
