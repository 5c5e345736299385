package memory

import (
	"context"
	"testing"

	"github.com/coumap/crawler/internal/core/domain"
)

func TestRegionGetOrCreateIsIdempotent(t *testing.T) {
	repo := NewRegionRepo()
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, "서울특별시", "강남구", "개포동")
	if err != nil {
		t.Fatal(err)
	}
	second, err := repo.GetOrCreate(ctx, "서울특별시", "강남구", "개포동")
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID {
		t.Errorf("same triple produced two regions: %d and %d", first.ID, second.ID)
	}
	if first.Code != second.Code {
		t.Errorf("code changed between calls: %q vs %q", first.Code, second.Code)
	}

	other, err := repo.GetOrCreate(ctx, "서울특별시", "강남구", "역삼동")
	if err != nil {
		t.Fatal(err)
	}
	if other.ID == first.ID {
		t.Error("different triple reused an existing region")
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("GetAll returned %d regions, want 2", len(all))
	}
}

func TestRegionTownIsPartOfIdentity(t *testing.T) {
	repo := NewRegionRepo()
	ctx := context.Background()

	cityLevel, _ := repo.GetOrCreate(ctx, "서울특별시", "강남구", "")
	townLevel, _ := repo.GetOrCreate(ctx, "서울특별시", "강남구", "개포동")

	if cityLevel.ID == townLevel.ID {
		t.Error("city-level and town-level regions collapsed into one")
	}
}

func TestCategoryGetOrCreate(t *testing.T) {
	repo := NewCategoryRepo()
	ctx := context.Background()

	first, _ := repo.GetOrCreate(ctx, "CAFE", "카페")
	second, _ := repo.GetOrCreate(ctx, "CAFE", "카페")
	if first.ID != second.ID {
		t.Errorf("same name produced two categories: %d and %d", first.ID, second.ID)
	}

	other, _ := repo.GetOrCreate(ctx, "FOOD", "음식점")
	if other.ID == first.ID {
		t.Error("different name reused an existing category")
	}
}

func TestStoreExistsThenCreate(t *testing.T) {
	repo := NewStoreRepo()
	ctx := context.Background()

	store := &domain.Store{Name: "스타벅스 역삼점", Address: "서울 강남구 역삼동 812-1", RegionID: 1}

	exists, err := repo.Exists(ctx, store.Name, store.Address, store.RegionID)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("empty repository reported an existing store")
	}

	if err := repo.Create(ctx, store); err != nil {
		t.Fatal(err)
	}
	if store.ID == 0 {
		t.Error("Create did not assign an ID")
	}

	exists, _ = repo.Exists(ctx, store.Name, store.Address, store.RegionID)
	if !exists {
		t.Error("created store not found by its triple")
	}

	// Same name and address in a different region is a distinct store.
	exists, _ = repo.Exists(ctx, store.Name, store.Address, 2)
	if exists {
		t.Error("triple with different region reported as existing")
	}
}

func TestStoreStatistics(t *testing.T) {
	repo := NewStoreRepo()
	ctx := context.Background()

	lat, lon := 37.5, 127.0
	stores := []*domain.Store{
		{Name: "a", Address: "x", RegionID: 1, CategoryName: "카페", Latitude: &lat, Longitude: &lon},
		{Name: "b", Address: "y", RegionID: 1, CategoryName: "카페"},
		{Name: "c", Address: "z", RegionID: 1, CategoryName: "음식점", Latitude: &lat, Longitude: &lon},
		{Name: "d", Address: "w", RegionID: 2, CategoryName: "음식점", Latitude: &lat, Longitude: &lon},
	}
	for _, s := range stores {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := repo.Statistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalStores != 4 {
		t.Errorf("TotalStores = %d, want 4", stats.TotalStores)
	}
	if stats.WithCoordinates != 3 {
		t.Errorf("WithCoordinates = %d, want 3", stats.WithCoordinates)
	}
	if stats.SuccessRate != 75 {
		t.Errorf("SuccessRate = %v, want 75", stats.SuccessRate)
	}
	if stats.ByCategory["카페"] != 2 || stats.ByCategory["음식점"] != 2 {
		t.Errorf("ByCategory = %v", stats.ByCategory)
	}
}
