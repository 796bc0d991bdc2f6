package testutil

import (
	"context"
	"fmt"
	"sync"

	"scenic-route-planner/internal/models"
)

// MockDistanceCache is an in-memory DistanceCacheRepository for testing
type MockDistanceCache struct {
	mu      sync.Mutex
	entries map[string]models.DistanceCacheEntry

	GetCalls int
}

func NewMockDistanceCache() *MockDistanceCache {
	return &MockDistanceCache{
		entries: make(map[string]models.DistanceCacheEntry),
	}
}

func (c *MockDistanceCache) cacheKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f",
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng))
}

func (c *MockDistanceCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.GetCalls++
	if entry, ok := c.entries[c.cacheKey(origin, dest)]; ok {
		return &entry, nil
	}
	return nil, nil
}

func (c *MockDistanceCache) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range entries {
		c.entries[c.cacheKey(e.Origin, e.Destination)] = e
	}
	return nil
}

func (c *MockDistanceCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]models.DistanceCacheEntry)
	return nil
}

func (c *MockDistanceCache) Count(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), nil
}

// Put stores a single entry
func (c *MockDistanceCache) Put(origin, dest models.Coordinates, meters, secs float64) {
	c.SetBatch(context.Background(), []models.DistanceCacheEntry{{
		Origin:         origin,
		Destination:    dest,
		DistanceMeters: meters,
		DurationSecs:   secs,
	}})
}
