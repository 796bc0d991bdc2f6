package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"scenic-route-planner/internal/models"
)

func newTestCache(t *testing.T) (*FileDistanceCache, string) {
	t.Helper()
	cachePath := filepath.Join(t.TempDir(), "cache", "distances.json")
	cache, err := NewFileDistanceCache(cachePath)
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	return cache, cachePath
}

func TestCache_CoordinateMatching(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	entry := models.DistanceCacheEntry{
		Origin:         models.Coordinates{Lat: 1.234567, Lng: 2.345678},
		Destination:    models.Coordinates{Lat: 3.456789, Lng: 4.567890},
		DistanceMeters: 1000,
		DurationSecs:   60,
	}
	if err := cache.SetBatch(ctx, []models.DistanceCacheEntry{entry}); err != nil {
		t.Fatalf("failed to set cache entry: %v", err)
	}

	result, err := cache.Get(ctx, entry.Origin, entry.Destination)
	if err != nil {
		t.Fatalf("failed to get cache entry: %v", err)
	}
	if result == nil || result.DistanceMeters != 1000 {
		t.Fatalf("expected cached distance 1000, got %+v", result)
	}

	// Rounds to the same 5 decimal places
	slightlyDifferent := models.Coordinates{Lat: 1.2345674, Lng: 2.3456784}
	result, err = cache.Get(ctx, slightlyDifferent, entry.Destination)
	if err != nil {
		t.Fatalf("failed to get cache entry: %v", err)
	}
	if result == nil {
		t.Fatal("expected to find cache entry with coordinates that round to same value")
	}

	// Direction matters
	result, _ = cache.Get(ctx, entry.Destination, entry.Origin)
	if result != nil {
		t.Error("reverse direction should be a miss")
	}

	different := models.Coordinates{Lat: 9.0, Lng: 9.0}
	result, _ = cache.Get(ctx, different, entry.Destination)
	if result != nil {
		t.Error("should not find cache entry with different coordinates")
	}
}

func TestCache_BatchSetAndCount(t *testing.T) {
	cache, cachePath := newTestCache(t)
	ctx := context.Background()

	entries := []models.DistanceCacheEntry{
		{Origin: models.Coordinates{Lat: 0, Lng: 0}, Destination: models.Coordinates{Lat: 1, Lng: 1}, DistanceMeters: 100, DurationSecs: 10},
		{Origin: models.Coordinates{Lat: 1, Lng: 1}, Destination: models.Coordinates{Lat: 2, Lng: 2}, DistanceMeters: 200, DurationSecs: 20},
		{Origin: models.Coordinates{Lat: 2, Lng: 2}, Destination: models.Coordinates{Lat: 3, Lng: 3}, DistanceMeters: 300, DurationSecs: 30},
	}
	if err := cache.SetBatch(ctx, entries); err != nil {
		t.Fatalf("failed to batch set: %v", err)
	}

	for _, entry := range entries {
		result, err := cache.Get(ctx, entry.Origin, entry.Destination)
		if err != nil {
			t.Fatalf("failed to get entry: %v", err)
		}
		if result == nil {
			t.Fatalf("entry not found: origin=%v dest=%v", entry.Origin, entry.Destination)
		}
		if result.DistanceMeters != entry.DistanceMeters {
			t.Errorf("distance mismatch: expected %f, got %f", entry.DistanceMeters, result.DistanceMeters)
		}
	}

	count, err := cache.Count(ctx)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 entries, got %d", count)
	}

	data, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatalf("failed to read cache file: %v", err)
	}
	if len(data) == 0 {
		t.Error("cache file should not be empty")
	}
}

func TestCache_Persistence(t *testing.T) {
	cache1, cachePath := newTestCache(t)
	ctx := context.Background()

	entry := models.DistanceCacheEntry{
		Origin:         models.Coordinates{Lat: 10, Lng: 20},
		Destination:    models.Coordinates{Lat: 30, Lng: 40},
		DistanceMeters: 5000,
		DurationSecs:   300,
	}
	if err := cache1.SetBatch(ctx, []models.DistanceCacheEntry{entry}); err != nil {
		t.Fatalf("failed to set entry: %v", err)
	}

	cache2, err := NewFileDistanceCache(cachePath)
	if err != nil {
		t.Fatalf("failed to reopen cache: %v", err)
	}

	result, err := cache2.Get(ctx, entry.Origin, entry.Destination)
	if err != nil {
		t.Fatalf("failed to get entry: %v", err)
	}
	if result == nil {
		t.Fatal("entry should be persisted and loadable")
	}
	if result.DistanceMeters != 5000 {
		t.Errorf("expected distance 5000, got %f", result.DistanceMeters)
	}
}

func TestCache_Clear(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	entries := []models.DistanceCacheEntry{
		{Origin: models.Coordinates{Lat: 0, Lng: 0}, Destination: models.Coordinates{Lat: 1, Lng: 1}, DistanceMeters: 100},
		{Origin: models.Coordinates{Lat: 1, Lng: 1}, Destination: models.Coordinates{Lat: 2, Lng: 2}, DistanceMeters: 200},
	}
	cache.SetBatch(ctx, entries)

	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("failed to clear cache: %v", err)
	}

	result, _ := cache.Get(ctx, entries[0].Origin, entries[0].Destination)
	if result != nil {
		t.Error("entry should not exist after clear")
	}
	if count, _ := cache.Count(ctx); count != 0 {
		t.Errorf("expected empty cache, got %d entries", count)
	}
}

func TestCache_UpdateExisting(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	origin := models.Coordinates{Lat: 1, Lng: 2}
	dest := models.Coordinates{Lat: 3, Lng: 4}

	cache.SetBatch(ctx, []models.DistanceCacheEntry{{Origin: origin, Destination: dest, DistanceMeters: 1000, DurationSecs: 60}})
	cache.SetBatch(ctx, []models.DistanceCacheEntry{{Origin: origin, Destination: dest, DistanceMeters: 2000, DurationSecs: 120}})

	result, _ := cache.Get(ctx, origin, dest)
	if result == nil {
		t.Fatal("entry should exist")
	}
	if result.DistanceMeters != 2000 || result.DurationSecs != 120 {
		t.Errorf("expected updated entry 2000/120, got %f/%f", result.DistanceMeters, result.DurationSecs)
	}
	if count, _ := cache.Count(ctx); count != 1 {
		t.Errorf("expected 1 entry, got %d (duplicate created)", count)
	}
}

func TestCache_CorruptFile(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "distances.json")
	if err := os.WriteFile(cachePath, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileDistanceCache(cachePath); err == nil {
		t.Fatal("expected an error for a corrupt cache file")
	}
}
