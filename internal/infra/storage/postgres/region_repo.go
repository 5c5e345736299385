package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/coumap/crawler/internal/core/domain"
)

// RegionRepo implements storage.RegionRepository using PostgreSQL.
type RegionRepo struct {
	db *DB
}

// NewRegionRepo creates a new PostgreSQL region repository.
func NewRegionRepo(db *DB) *RegionRepo {
	return &RegionRepo{db: db}
}

type regionRow struct {
	ID       int64          `db:"id"`
	Province string         `db:"province"`
	City     string         `db:"city"`
	Town     sql.NullString `db:"town"`
	Code     string         `db:"code"`
}

func (r *regionRow) toDomain() *domain.Region {
	return &domain.Region{
		ID:       r.ID,
		Province: r.Province,
		City:     r.City,
		Town:     r.Town.String,
		Code:     r.Code,
	}
}

// GetOrCreate returns the region matching the exact triple, inserting it with
// a generated code when absent. Lookup and insert run in one transaction so a
// concurrent writer cannot slip a duplicate in between.
func (r *RegionRepo) GetOrCreate(ctx context.Context, province, city, town string) (*domain.Region, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	lookup := `
		SELECT id, province, city, town, code
		FROM regions
		WHERE province = $1 AND city = $2 AND COALESCE(town, '') = $3
	`

	var row regionRow
	err = tx.GetContext(ctx, &row, lookup, province, city, town)
	if err == nil {
		return row.toDomain(), tx.Commit()
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get region: %w", err)
	}

	insert := `
		INSERT INTO regions (province, city, town, code)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	region := &domain.Region{
		Province: province,
		City:     city,
		Town:     town,
		Code:     newRegionCode(),
	}
	var townVal sql.NullString
	if town != "" {
		townVal = sql.NullString{String: town, Valid: true}
	}
	err = tx.GetContext(ctx, &region.ID, insert, province, city, townVal, region.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to create region: %w", err)
	}

	return region, tx.Commit()
}

// GetAll retrieves every known region ordered by the hierarchy.
func (r *RegionRepo) GetAll(ctx context.Context) ([]*domain.Region, error) {
	query := `
		SELECT id, province, city, town, code
		FROM regions
		ORDER BY province, city, town
	`

	var rows []regionRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}

	regions := make([]*domain.Region, 0, len(rows))
	for i := range rows {
		regions = append(regions, rows[i].toDomain())
	}
	return regions, nil
}

// newRegionCode generates a short unique code for a region. The code has no
// meaning; it only satisfies the unique column.
func newRegionCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}
