package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const categoryColumns = `c.id, c.name, c.slug, c.description, c.created_at`

// CategoryRepository handles database operations for categories.
type CategoryRepository struct {
	DB *sqlx.DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{DB: db}
}

// GetAll retrieves all categories ordered by name.
func (r *CategoryRepository) GetAll(ctx context.Context) ([]*Category, error) {
	var categories []*Category
	err := r.DB.SelectContext(ctx, &categories, `SELECT `+categoryColumns+` FROM categories c ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	return categories, nil
}

// GetByID finds a category by its ID.
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*Category, error) {
	return r.getOne(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.id = ?`, id)
}

// GetBySlug finds a category by its slug.
func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	return r.getOne(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.slug = ?`, slug)
}

// GetByName finds a category by its exact name.
func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*Category, error) {
	return r.getOne(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.name = ?`, name)
}

func (r *CategoryRepository) getOne(ctx context.Context, query string, arg interface{}) (*Category, error) {
	var category Category
	if err := r.DB.GetContext(ctx, &category, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &category, nil
}

// SlugExists reports whether another category already uses slug.
func (r *CategoryRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.DB.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM categories WHERE slug = ? AND id <> ?)`, slug, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check category slug: %w", err)
	}
	return exists, nil
}

// Save creates a new category and returns its ID.
func (r *CategoryRepository) Save(ctx context.Context, category *Category) (int64, error) {
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	res, err := r.DB.NamedExecContext(ctx,
		`INSERT INTO categories (name, slug, description, created_at) VALUES (:name, :slug, :description, :created_at)`,
		category)
	if err != nil {
		return 0, fmt.Errorf("failed to insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	category.ID = id
	return id, nil
}

// Delete removes a category. Posts in it keep existing with no category.
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWithPublishedPosts returns categories having at least one published
// post, most populated first.
func (r *CategoryRepository) ListWithPublishedPosts(ctx context.Context) ([]*Category, error) {
	var categories []*Category
	query := `
		SELECT ` + categoryColumns + `, COUNT(p.id) AS post_count
		FROM categories c
		JOIN posts p ON p.category_id = c.id AND p.status = ?
		GROUP BY c.id, c.name, c.slug, c.description, c.created_at
		ORDER BY post_count DESC, c.name`
	if err := r.DB.SelectContext(ctx, &categories, query, StatusPublished); err != nil {
		return nil, fmt.Errorf("failed to count category posts: %w", err)
	}
	return categories, nil
}
