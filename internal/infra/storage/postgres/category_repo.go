package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coumap/crawler/internal/core/domain"
)

// CategoryRepo implements storage.CategoryRepository using PostgreSQL.
type CategoryRepo struct {
	db *DB
}

// NewCategoryRepo creates a new PostgreSQL category repository.
func NewCategoryRepo(db *DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

// GetOrCreate returns the category with the given name, inserting it when
// absent.
func (r *CategoryRepo) GetOrCreate(ctx context.Context, code, name string) (*domain.Category, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	lookup := `SELECT id, code, name FROM categories WHERE name = $1`

	category := &domain.Category{}
	err = tx.GetContext(ctx, category, lookup, name)
	if err == nil {
		return category, tx.Commit()
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	insert := `INSERT INTO categories (code, name) VALUES ($1, $2) RETURNING id`

	category.Code = code
	category.Name = name
	if err := tx.GetContext(ctx, &category.ID, insert, code, name); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return category, tx.Commit()
}
