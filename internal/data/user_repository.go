package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const userColumns = `id, subject, username, email, is_staff, created_at`

// UserRepository handles database operations for authors.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetBySubject finds a user by the identity provider subject.
func (r *UserRepository) GetBySubject(ctx context.Context, subject string) (*User, error) {
	var user User
	if err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE subject = ?`, subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by subject: %w", err)
	}
	return &user, nil
}

// GetByID finds a user by its ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	var user User
	if err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// Upsert inserts the user or refreshes the profile of the existing row with
// the same subject. The stored row is written back into user.
func (r *UserRepository) Upsert(ctx context.Context, user *User) error {
	existing, err := r.GetBySubject(ctx, user.Subject)
	switch {
	case errors.Is(err, ErrNotFound):
		user.CreatedAt = time.Now().UTC()
		res, err := r.db.NamedExecContext(ctx,
			`INSERT INTO users (subject, username, email, is_staff, created_at) VALUES (:subject, :username, :email, :is_staff, :created_at)`,
			user)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		user.ID, err = res.LastInsertId()
		return err
	case err != nil:
		return err
	}

	// Staff status is only ever granted here, never revoked by a login.
	user.ID = existing.ID
	user.CreatedAt = existing.CreatedAt
	user.IsStaff = user.IsStaff || existing.IsStaff
	_, err = r.db.NamedExecContext(ctx,
		`UPDATE users SET username = :username, email = :email, is_staff = :is_staff WHERE id = :id`, user)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// Delete removes a user and, through the foreign key, all their posts.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
