// Package memory provides in-memory repository implementations used by tests
// and the smoke-test mode, mirroring the PostgreSQL semantics.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/coumap/crawler/internal/core/domain"
	"github.com/coumap/crawler/internal/infra/storage"
)

// RegionRepo is an in-memory storage.RegionRepository.
type RegionRepo struct {
	mu      sync.Mutex
	nextID  int64
	regions map[string]*domain.Region // keyed by province|city|town
}

// NewRegionRepo creates an empty in-memory region repository.
func NewRegionRepo() *RegionRepo {
	return &RegionRepo{nextID: 1, regions: make(map[string]*domain.Region)}
}

func regionKey(province, city, town string) string {
	return province + "|" + city + "|" + town
}

// GetOrCreate returns the region for the exact triple, creating it on first
// encounter. Repeated calls with the same triple return the same region.
func (r *RegionRepo) GetOrCreate(ctx context.Context, province, city, town string) (*domain.Region, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := regionKey(province, city, town)
	if region, ok := r.regions[key]; ok {
		return region, nil
	}

	region := &domain.Region{
		ID:       r.nextID,
		Province: province,
		City:     city,
		Town:     town,
		Code:     strings.ToUpper(uuid.NewString()[:8]),
	}
	r.nextID++
	r.regions[key] = region
	return region, nil
}

// GetAll retrieves every known region.
func (r *RegionRepo) GetAll(ctx context.Context) ([]*domain.Region, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	regions := make([]*domain.Region, 0, len(r.regions))
	for _, region := range r.regions {
		regions = append(regions, region)
	}
	return regions, nil
}

// CategoryRepo is an in-memory storage.CategoryRepository.
type CategoryRepo struct {
	mu         sync.Mutex
	nextID     int64
	categories map[string]*domain.Category // keyed by name
}

// NewCategoryRepo creates an empty in-memory category repository.
func NewCategoryRepo() *CategoryRepo {
	return &CategoryRepo{nextID: 1, categories: make(map[string]*domain.Category)}
}

// GetOrCreate returns the category with the given name, creating it when
// absent.
func (r *CategoryRepo) GetOrCreate(ctx context.Context, code, name string) (*domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if category, ok := r.categories[name]; ok {
		return category, nil
	}

	category := &domain.Category{ID: r.nextID, Code: code, Name: name}
	r.nextID++
	r.categories[name] = category
	return category, nil
}

// StoreRepo is an in-memory storage.StoreRepository.
type StoreRepo struct {
	mu     sync.Mutex
	nextID int64
	stores []*domain.Store
	byKey  map[string]struct{}

	// CreateErr, when set, makes Create fail. Used to exercise error paths.
	CreateErr error
}

// NewStoreRepo creates an empty in-memory store repository.
func NewStoreRepo() *StoreRepo {
	return &StoreRepo{nextID: 1, byKey: make(map[string]struct{})}
}

func storeKey(name, address string, regionID int64) string {
	return fmt.Sprintf("%s|%s|%d", name, address, regionID)
}

// Exists reports whether a store with the exact triple is present.
func (r *StoreRepo) Exists(ctx context.Context, name, address string, regionID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.byKey[storeKey(name, address, regionID)]
	return ok, nil
}

// Create inserts a store and assigns its ID.
func (r *StoreRepo) Create(ctx context.Context, store *domain.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CreateErr != nil {
		return r.CreateErr
	}

	store.ID = r.nextID
	r.nextID++
	r.stores = append(r.stores, store)
	r.byKey[storeKey(store.Name, store.Address, store.RegionID)] = struct{}{}
	return nil
}

// All returns the stores created so far, in insertion order.
func (r *StoreRepo) All() []*domain.Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.Store, len(r.stores))
	copy(out, r.stores)
	return out
}

// Statistics summarizes the stored data set.
func (r *StoreRepo) Statistics(ctx context.Context) (*storage.Statistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &storage.Statistics{
		TotalStores: len(r.stores),
		ByCategory:  make(map[string]int),
	}
	for _, store := range r.stores {
		if store.HasCoordinates() {
			stats.WithCoordinates++
		}
		stats.ByCategory[store.CategoryName]++
	}
	if stats.TotalStores > 0 {
		stats.SuccessRate = float64(stats.WithCoordinates) / float64(stats.TotalStores) * 100
	}
	return stats, nil
}
