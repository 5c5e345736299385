package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coumap/crawler/internal/core/domain"
	"github.com/coumap/crawler/internal/infra/storage"
)

// StoreRepo implements storage.StoreRepository using PostgreSQL.
type StoreRepo struct {
	db *DB
}

// NewStoreRepo creates a new PostgreSQL store repository.
func NewStoreRepo(db *DB) *StoreRepo {
	return &StoreRepo{db: db}
}

// Exists reports whether a store with the exact (name, address, region) triple
// is already present.
func (r *StoreRepo) Exists(ctx context.Context, name, address string, regionID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM stores
			WHERE name = $1 AND address = $2 AND region_id = $3
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, address, regionID); err != nil {
		return false, fmt.Errorf("failed to check store existence: %w", err)
	}
	return exists, nil
}

// Create inserts a store and fills in its generated ID.
func (r *StoreRepo) Create(ctx context.Context, store *domain.Store) error {
	query := `
		INSERT INTO stores (
			name, address, latitude, longitude,
			category_id, region_id, category_name,
			is_franchise, business_days, opening_hours, annual_sales
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.db.GetContext(ctx, &store.ID, query,
		store.Name,
		store.Address,
		store.Latitude,
		store.Longitude,
		store.CategoryID,
		store.RegionID,
		store.CategoryName,
		store.IsFranchise,
		nullIfEmpty(store.BusinessDays),
		nullIfEmpty(store.OpeningHours),
		store.AnnualSales,
	)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	return nil
}

// Statistics summarizes the stored data set: totals, coordinate coverage and
// the per-category breakdown.
func (r *StoreRepo) Statistics(ctx context.Context) (*storage.Statistics, error) {
	totals := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE latitude IS NOT NULL AND longitude IS NOT NULL) AS with_coords
		FROM stores
	`

	var row struct {
		Total      int `db:"total"`
		WithCoords int `db:"with_coords"`
	}
	if err := r.db.GetContext(ctx, &row, totals); err != nil {
		return nil, fmt.Errorf("failed to get store totals: %w", err)
	}

	stats := &storage.Statistics{
		TotalStores:     row.Total,
		WithCoordinates: row.WithCoords,
		ByCategory:      make(map[string]int),
	}
	if row.Total > 0 {
		stats.SuccessRate = float64(row.WithCoords) / float64(row.Total) * 100
	}

	byCategory := `
		SELECT c.name AS name, COUNT(*) AS count
		FROM stores s
		JOIN categories c ON c.id = s.category_id
		GROUP BY c.name
		ORDER BY count DESC
	`

	rows, err := r.db.QueryxContext(ctx, byCategory)
	if err != nil {
		return nil, fmt.Errorf("failed to get category breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry struct {
			Name  string `db:"name"`
			Count int    `db:"count"`
		}
		if err := rows.StructScan(&entry); err != nil {
			return nil, err
		}
		stats.ByCategory[entry.Name] = entry.Count
	}
	return stats, rows.Err()
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
