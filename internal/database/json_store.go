package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"scenic-route-planner/internal/models"
)

// JSONData represents the structure of the JSON file
type JSONData struct {
	Plans  []models.PlanRecord `json:"plans"`
	NextID int64               `json:"next_id"`
}

// JSONStore is a JSON file-based data store. It is meant for single-user
// setups where pulling in SQLite is not wanted.
type JSONStore struct {
	filePath string
	data     *JSONData
	mu       sync.RWMutex

	planRepository          PlanRepository
	distanceCacheRepository DistanceCacheRepository
}

func (s *JSONStore) Plans() PlanRepository                  { return s.planRepository }
func (s *JSONStore) DistanceCache() DistanceCacheRepository { return s.distanceCacheRepository }

// NewJSONStore opens the plan file at filePath (default ~/.scenic-route-planner/plans.json)
// and pairs it with the given distance cache.
func NewJSONStore(filePath string, distanceCache DistanceCacheRepository) (*JSONStore, error) {
	if filePath == "" {
		var err error
		filePath, err = GetDataFilePath()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	log.Printf("Using JSON data file: %s", filePath)

	store := &JSONStore{
		filePath: filePath,
		data:     &JSONData{},
	}
	if err := store.load(); err != nil {
		return nil, err
	}

	store.planRepository = &jsonPlanRepository{store: store}
	store.distanceCacheRepository = distanceCache
	return store, nil
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		s.data = &JSONData{Plans: []models.PlanRecord{}, NextID: 1}
		return s.saveUnlocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read data file: %w", err)
	}

	if err := json.Unmarshal(data, s.data); err != nil {
		return fmt.Errorf("failed to parse data file: %w", err)
	}
	if s.data.Plans == nil {
		s.data.Plans = []models.PlanRecord{}
	}
	// Repair a hand-edited file
	for _, p := range s.data.Plans {
		if p.ID >= s.data.NextID {
			s.data.NextID = p.ID + 1
		}
	}
	if s.data.NextID < 1 {
		s.data.NextID = 1
	}

	log.Printf("Loaded JSON data: plans=%d", len(s.data.Plans))
	return nil
}

func (s *JSONStore) saveUnlocked() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Close is a no-op; every write is already on disk
func (s *JSONStore) Close() error {
	return nil
}

// HealthCheck verifies the data file is still readable
func (s *JSONStore) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := os.Stat(s.filePath); err != nil {
		return fmt.Errorf("data file unavailable: %w", err)
	}
	return nil
}

type jsonPlanRepository struct {
	store *JSONStore
}

func (r *jsonPlanRepository) List(ctx context.Context, limit, offset int) ([]models.PlanRecord, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	plans := make([]models.PlanRecord, len(r.store.data.Plans))
	copy(plans, r.store.data.Plans)
	sort.SliceStable(plans, func(i, j int) bool {
		if !plans[i].CreatedAt.Equal(plans[j].CreatedAt) {
			return plans[i].CreatedAt.After(plans[j].CreatedAt)
		}
		return plans[i].ID > plans[j].ID
	})

	total := len(plans)
	if offset >= total {
		return []models.PlanRecord{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	page := plans[offset:end]
	for i := range page {
		page[i].Result = nil
	}
	return page, total, nil
}

func (r *jsonPlanRepository) GetByID(ctx context.Context, id int64) (*models.PlanRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, p := range r.store.data.Plans {
		if p.ID == id {
			plan := p
			return &plan, nil
		}
	}
	return nil, nil
}

func (r *jsonPlanRepository) Create(ctx context.Context, plan *models.PlanRecord) (*models.PlanRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	plan.ID = r.store.data.NextID
	r.store.data.NextID++
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	if plan.Result != nil {
		plan.Result.ID = plan.ID
	}

	r.store.data.Plans = append(r.store.data.Plans, *plan)
	if err := r.store.saveUnlocked(); err != nil {
		r.store.data.Plans = r.store.data.Plans[:len(r.store.data.Plans)-1]
		return nil, err
	}

	log.Printf("[JSON] Created plan: id=%d", plan.ID)
	return plan, nil
}

func (r *jsonPlanRepository) Delete(ctx context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for i, p := range r.store.data.Plans {
		if p.ID == id {
			r.store.data.Plans = append(r.store.data.Plans[:i], r.store.data.Plans[i+1:]...)
			if err := r.store.saveUnlocked(); err != nil {
				return err
			}
			log.Printf("[JSON] Deleted plan: id=%d", id)
			return nil
		}
	}
	return ErrNotFound
}
