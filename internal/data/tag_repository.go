package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const tagColumns = `t.id, t.name, t.slug, t.created_at`

// TagRepository handles database operations for tags.
type TagRepository struct {
	DB *sqlx.DB
}

// NewTagRepository creates a new TagRepository.
func NewTagRepository(db *sqlx.DB) *TagRepository {
	return &TagRepository{DB: db}
}

// GetAll retrieves all tags ordered by name.
func (r *TagRepository) GetAll(ctx context.Context) ([]*Tag, error) {
	var tags []*Tag
	if err := r.DB.SelectContext(ctx, &tags, `SELECT `+tagColumns+` FROM tags t ORDER BY t.name`); err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	return tags, nil
}

// GetByIDs retrieves the tags with the given ids. Unknown ids are skipped.
func (r *TagRepository) GetByIDs(ctx context.Context, ids []int64) ([]*Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+tagColumns+` FROM tags t WHERE t.id IN (?) ORDER BY t.name`, ids)
	if err != nil {
		return nil, err
	}
	var tags []*Tag
	if err := r.DB.SelectContext(ctx, &tags, r.DB.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get tags by id: %w", err)
	}
	return tags, nil
}

// GetBySlug finds a tag by its slug.
func (r *TagRepository) GetBySlug(ctx context.Context, slug string) (*Tag, error) {
	return r.getOne(ctx, `SELECT `+tagColumns+` FROM tags t WHERE t.slug = ?`, slug)
}

// GetByName finds a tag by its exact name.
func (r *TagRepository) GetByName(ctx context.Context, name string) (*Tag, error) {
	return r.getOne(ctx, `SELECT `+tagColumns+` FROM tags t WHERE t.name = ?`, name)
}

func (r *TagRepository) getOne(ctx context.Context, query string, arg interface{}) (*Tag, error) {
	var tag Tag
	if err := r.DB.GetContext(ctx, &tag, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return &tag, nil
}

// SlugExists reports whether another tag already uses slug.
func (r *TagRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.DB.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM tags WHERE slug = ? AND id <> ?)`, slug, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check tag slug: %w", err)
	}
	return exists, nil
}

// Save creates a new tag and returns its ID.
func (r *TagRepository) Save(ctx context.Context, tag *Tag) (int64, error) {
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = time.Now().UTC()
	}
	res, err := r.DB.NamedExecContext(ctx,
		`INSERT INTO tags (name, slug, created_at) VALUES (:name, :slug, :created_at)`, tag)
	if err != nil {
		return 0, fmt.Errorf("failed to insert tag: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	tag.ID = id
	return id, nil
}

// ListWithPublishedPosts returns up to limit tags having at least one
// published post, most used first.
func (r *TagRepository) ListWithPublishedPosts(ctx context.Context, limit int) ([]*Tag, error) {
	var tags []*Tag
	query := `
		SELECT ` + tagColumns + `, COUNT(p.id) AS post_count
		FROM tags t
		JOIN post_tags pt ON pt.tag_id = t.id
		JOIN posts p ON p.id = pt.post_id AND p.status = ?
		GROUP BY t.id, t.name, t.slug, t.created_at
		ORDER BY post_count DESC, t.name
		LIMIT ?`
	if err := r.DB.SelectContext(ctx, &tags, query, StatusPublished, limit); err != nil {
		return nil, fmt.Errorf("failed to count tag posts: %w", err)
	}
	return tags, nil
}
