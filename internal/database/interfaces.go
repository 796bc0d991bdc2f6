package database

import (
	"context"

	"scenic-route-planner/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Plans() PlanRepository
	DistanceCache() DistanceCacheRepository
}

// PlanRepository handles plan history persistence
type PlanRepository interface {
	// List returns plans newest first, without their full results
	List(ctx context.Context, limit, offset int) ([]models.PlanRecord, int, error)
	GetByID(ctx context.Context, id int64) (*models.PlanRecord, error)
	Create(ctx context.Context, plan *models.PlanRecord) (*models.PlanRecord, error)
	Delete(ctx context.Context, id int64) error
}

// DistanceCacheRepository handles distance cache persistence.
// Get returns nil, nil on a miss.
type DistanceCacheRepository interface {
	Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error)
	SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}
