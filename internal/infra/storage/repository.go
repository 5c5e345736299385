package storage

import (
	"context"
	"errors"

	"github.com/coumap/crawler/internal/core/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// RegionRepository owns the Region lifecycle. Regions are created lazily on
// first encounter and never mutated or deleted.
type RegionRepository interface {
	// GetOrCreate returns the region matching (province, city, town)
	// exactly, creating it with a generated unique code when absent.
	GetOrCreate(ctx context.Context, province, city, town string) (*domain.Region, error)

	// GetAll retrieves every known region.
	GetAll(ctx context.Context) ([]*domain.Region, error)
}

// CategoryRepository owns the Category lifecycle. Name is the unique key.
type CategoryRepository interface {
	// GetOrCreate returns the category with the given name, creating it
	// when absent.
	GetOrCreate(ctx context.Context, code, name string) (*domain.Category, error)
}

// StoreRepository owns the Store lifecycle. The (name, address, regionID)
// triple is the deduplication key; it is enforced by Exists-then-Create, not
// by a storage constraint, so callers must serialize that sequence per key.
type StoreRepository interface {
	// Exists reports whether a store with the exact triple is present.
	Exists(ctx context.Context, name, address string, regionID int64) (bool, error)

	// Create unconditionally inserts a store. Callers must have checked
	// Exists first.
	Create(ctx context.Context, store *domain.Store) error

	// Statistics summarizes the stored data set.
	Statistics(ctx context.Context) (*Statistics, error)
}

// Statistics is the end-of-run relational summary.
type Statistics struct {
	TotalStores     int
	WithCoordinates int
	SuccessRate     float64
	ByCategory      map[string]int
}
