package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"scenic-route-planner/internal/models"
)

// FileDistanceCacheData is the on-disk layout of the cache file
type FileDistanceCacheData struct {
	Entries []models.DistanceCacheEntry `json:"entries"`
}

// FileDistanceCache is a JSON file implementation of DistanceCacheRepository.
// Every write rewrites the file atomically.
type FileDistanceCache struct {
	filePath string
	entries  []models.DistanceCacheEntry
	index    map[string]int // cache key -> position in entries
	mu       sync.RWMutex
}

// NewFileDistanceCache opens the cache at filePath, creating it if missing.
// An empty path selects ~/.scenic-route-planner/cache/distances.json.
func NewFileDistanceCache(filePath string) (*FileDistanceCache, error) {
	if filePath == "" {
		var err error
		filePath, err = GetDistanceCachePath()
		if err != nil {
			return nil, fmt.Errorf("failed to get cache file path: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	log.Printf("Using distance cache file: %s", filePath)

	cache := &FileDistanceCache{
		filePath: filePath,
		index:    make(map[string]int),
	}
	if err := cache.load(); err != nil {
		return nil, err
	}
	return cache, nil
}

func (c *FileDistanceCache) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		c.entries = []models.DistanceCacheEntry{}
		return c.saveUnlocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	var stored FileDistanceCacheData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse cache file: %w", err)
	}

	c.entries = stored.Entries
	if c.entries == nil {
		c.entries = []models.DistanceCacheEntry{}
	}
	c.rebuildIndex()

	log.Printf("Loaded distance cache: %d entries", len(c.entries))
	return nil
}

func (c *FileDistanceCache) saveUnlocked() error {
	data, err := json.Marshal(FileDistanceCacheData{Entries: c.entries})
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	tmpFile := c.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := os.Rename(tmpFile, c.filePath); err != nil {
		return fmt.Errorf("failed to rename temp cache file: %w", err)
	}
	return nil
}

func (c *FileDistanceCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if idx, ok := c.index[makeCacheKey(origin, dest)]; ok {
		// Copy so callers never alias cache memory
		entry := c.entries[idx]
		return &entry, nil
	}
	return nil, nil
}

func (c *FileDistanceCache) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range entries {
		key := makeCacheKey(entry.Origin, entry.Destination)
		if idx, ok := c.index[key]; ok {
			c.entries[idx] = entry
			continue
		}
		c.entries = append(c.entries, entry)
		c.index[key] = len(c.entries) - 1
	}

	return c.saveUnlocked()
}

func (c *FileDistanceCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = []models.DistanceCacheEntry{}
	c.index = make(map[string]int)
	log.Printf("Distance cache cleared: %s", c.filePath)
	return c.saveUnlocked()
}

func (c *FileDistanceCache) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// makeCacheKey creates a unique key for a coordinate pair
func makeCacheKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f",
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng))
}

// rebuildIndex must be called with the mutex held
func (c *FileDistanceCache) rebuildIndex() {
	c.index = make(map[string]int, len(c.entries))
	for i := range c.entries {
		c.index[makeCacheKey(c.entries[i].Origin, c.entries[i].Destination)] = i
	}
}
