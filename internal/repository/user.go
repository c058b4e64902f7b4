package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sharevest/backend/internal/model"
)

var ErrUserNotFound = errors.New("user not found")

func (r *Repository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByHandle resolves a handle case-insensitively.
func (r *Repository) GetUserByHandle(ctx context.Context, handle string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, "SELECT * FROM users WHERE LOWER(handle) = LOWER($1)", handle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListUsersWithHandle returns every user that can appear in the
// referral graph, i.e. has a non-empty handle.
func (r *Repository) ListUsersWithHandle(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.SelectContext(ctx, &users,
		"SELECT * FROM users WHERE handle <> '' ORDER BY id")
	return users, err
}
