package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const postSelect = `
	SELECT p.id, p.title, p.slug, p.author_id, p.category_id, p.body, p.excerpt, p.featured_image,
	       p.status, p.views_count, p.created_at, p.updated_at,
	       COALESCE(u.username, '') AS author_name,
	       COALESCE(c.name, '') AS category_name,
	       COALESCE(c.slug, '') AS category_slug
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN categories c ON c.id = p.category_id`

// postOrder is the listing order everywhere: newest first, id breaking ties.
const postOrder = ` ORDER BY p.created_at DESC, p.id DESC`

// likeEscape is the LIKE escape character; '!' needs no quoting in either
// MySQL or SQLite string literals.
const likeEscape = "!"

// PostFilter narrows post listings. Zero values mean "no constraint".
type PostFilter struct {
	Status       Status
	CategorySlug string
	TagSlug      string
	CategoryID   int64
	AnyTagIDs    []int64
	ExcludeID    int64
	Limit        int
	Offset       int
}

func (f PostFilter) where() (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.Status != "" {
		conds = append(conds, "p.status = ?")
		args = append(args, f.Status)
	}
	if f.CategorySlug != "" {
		conds = append(conds, "c.slug = ?")
		args = append(args, f.CategorySlug)
	}
	if f.TagSlug != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM post_tags pt JOIN tags t ON t.id = pt.tag_id WHERE pt.post_id = p.id AND t.slug = ?)")
		args = append(args, f.TagSlug)
	}
	if f.CategoryID != 0 {
		conds = append(conds, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if len(f.AnyTagIDs) > 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM post_tags pt WHERE pt.post_id = p.id AND pt.tag_id IN (?))")
		args = append(args, f.AnyTagIDs)
	}
	if f.ExcludeID != 0 {
		conds = append(conds, "p.id <> ?")
		args = append(args, f.ExcludeID)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// SQLPostRepository is the sqlx implementation of the post repository.
type SQLPostRepository struct {
	db *sqlx.DB
}

// NewSQLPostRepository creates a new SQLPostRepository.
func NewSQLPostRepository(db *sqlx.DB) *SQLPostRepository {
	return &SQLPostRepository{db: db}
}

// CreatePost inserts the post and its tag associations in one transaction
// and sets post.ID.
func (r *SQLPostRepository) CreatePost(ctx context.Context, post *Post, tagIDs []int64) error {
	now := time.Now().UTC()
	post.CreatedAt, post.UpdatedAt = now, now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO posts (title, slug, author_id, category_id, body, excerpt, featured_image, status, views_count, created_at, updated_at)
		VALUES (:title, :slug, :author_id, :category_id, :body, :excerpt, :featured_image, :status, 0, :created_at, :updated_at)`
	res, err := tx.NamedExecContext(ctx, query, post)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("failed to create post %q: %w", post.Slug, ErrDuplicate)
		}
		return fmt.Errorf("failed to execute create post query: %w", err)
	}
	if post.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read post id: %w", err)
	}
	if err := replaceTags(ctx, tx, post.ID, tagIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdatePost writes the editable columns and replaces the tag set.
// Views and creation time are never touched here.
func (r *SQLPostRepository) UpdatePost(ctx context.Context, post *Post, tagIDs []int64) error {
	post.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE posts SET title = :title, slug = :slug, category_id = :category_id, body = :body,
		excerpt = :excerpt, featured_image = :featured_image, status = :status, updated_at = :updated_at
		WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, post); err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	if err := replaceTags(ctx, tx, post.ID, tagIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceTags(ctx context.Context, tx *sqlx.Tx, postID int64, tagIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("failed to clear post tags: %w", err)
	}
	seen := make(map[int64]bool, len(tagIDs))
	for _, id := range tagIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := tx.ExecContext(ctx, `INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?)`, postID, id); err != nil {
			return fmt.Errorf("failed to attach tag %d: %w", id, err)
		}
	}
	return nil
}

// DeletePost removes a post by its ID. Tag links go with it.
func (r *SQLPostRepository) DeletePost(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPostBySlug retrieves a single post, whatever its status, with its tags.
func (r *SQLPostRepository) GetPostBySlug(ctx context.Context, slug string) (*Post, error) {
	return r.getOne(ctx, postSelect+` WHERE p.slug = ?`, slug)
}

// GetPostByID retrieves a single post by its ID, with its tags.
func (r *SQLPostRepository) GetPostByID(ctx context.Context, id int64) (*Post, error) {
	return r.getOne(ctx, postSelect+` WHERE p.id = ?`, id)
}

func (r *SQLPostRepository) getOne(ctx context.Context, query string, arg interface{}) (*Post, error) {
	var post Post
	if err := r.db.GetContext(ctx, &post, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	posts := []*Post{&post}
	if err := r.loadTags(ctx, posts); err != nil {
		return nil, err
	}
	return &post, nil
}

// SlugExists reports whether a post other than excludeID uses slug.
func (r *SQLPostRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM posts WHERE slug = ? AND id <> ?)`, slug, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check post slug: %w", err)
	}
	return exists, nil
}

// ListPosts returns posts matching filter, newest first, with tags loaded.
func (r *SQLPostRepository) ListPosts(ctx context.Context, filter PostFilter) ([]*Post, error) {
	where, args := filter.where()
	query := postSelect + where + postOrder
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}
	return r.selectPosts(ctx, query, args)
}

// CountPosts counts posts matching filter, ignoring Limit and Offset.
func (r *SQLPostRepository) CountPosts(ctx context.Context, filter PostFilter) (int, error) {
	where, args := filter.where()
	query := `SELECT COUNT(*) FROM posts p LEFT JOIN categories c ON c.id = p.category_id` + where
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

// SearchPosts returns posts with the given status whose title, body,
// excerpt, category name or any tag name contains query, case-insensitively.
// LIKE wildcards in query match literally.
func (r *SQLPostRepository) SearchPosts(ctx context.Context, query string, status Status) ([]*Post, error) {
	// Both sides are lowered. SQLite's LOWER folds ASCII only, so non-ASCII
	// case-insensitivity relies on MySQL's utf8mb4 collation in production.
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	like := func(col string) string {
		return "LOWER(" + col + ") LIKE ? ESCAPE '" + likeEscape + "'"
	}
	sqlQuery := postSelect + `
		WHERE p.status = ? AND (` +
		like("p.title") + ` OR ` +
		like("p.body") + ` OR ` +
		like("p.excerpt") + ` OR ` +
		like("COALESCE(c.name, '')") + ` OR
			EXISTS (SELECT 1 FROM post_tags pt JOIN tags t ON t.id = pt.tag_id
			        WHERE pt.post_id = p.id AND ` + like("t.name") + `))` + postOrder
	args := []interface{}{status, pattern, pattern, pattern, pattern, pattern}
	return r.selectPosts(ctx, sqlQuery, args)
}

func escapeLike(s string) string {
	return strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_").Replace(s)
}

// IncrementViews atomically adds one view and returns the stored count.
func (r *SQLPostRepository) IncrementViews(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET views_count = views_count + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to increment views: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, ErrNotFound
	}
	var views int64
	if err := r.db.GetContext(ctx, &views, `SELECT views_count FROM posts WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to reload views: %w", err)
	}
	return views, nil
}

func (r *SQLPostRepository) selectPosts(ctx context.Context, query string, args []interface{}) ([]*Post, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	var posts []*Post
	if err := r.db.SelectContext(ctx, &posts, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	if err := r.loadTags(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// loadTags fills Tags on each post with a single query.
func (r *SQLPostRepository) loadTags(ctx context.Context, posts []*Post) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[int64]*Post, len(posts))
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	query, args, err := sqlx.In(`
		SELECT pt.post_id, `+tagColumns+`
		FROM post_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id IN (?)
		ORDER BY t.name`, ids)
	if err != nil {
		return err
	}
	var rows []struct {
		PostID int64 `db:"post_id"`
		Tag
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load post tags: %w", err)
	}
	for i := range rows {
		tag := rows[i].Tag
		byID[rows[i].PostID].Tags = append(byID[rows[i].PostID].Tags, &tag)
	}
	return nil
}
