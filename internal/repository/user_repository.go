package repository

import (
	"context"
	"database/sql"
	"fmt"
)

type UserRepositoryInterface interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type UserRepository struct {
	DB *sql.DB
}

func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

var _ UserRepositoryInterface = (*UserRepository)(nil)
