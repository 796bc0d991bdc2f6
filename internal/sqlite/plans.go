package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"scenic-route-planner/internal/database"
	"scenic-route-planner/internal/models"
)

type planRepository struct {
	store *Store
}

func (r *planRepository) List(ctx context.Context, limit, offset int) ([]models.PlanRecord, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var total int
	if err := r.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count plans: %w", err)
	}

	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}

	query := `SELECT id, origin_lat, origin_lng, dest_lat, dest_lng, budget_meters,
	                 best_score, best_length_meters, created_at
	          FROM plans
	          ORDER BY created_at DESC, id DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.store.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	plans := []models.PlanRecord{}
	for rows.Next() {
		var p models.PlanRecord
		if err := rows.Scan(
			&p.ID, &p.Origin.Lat, &p.Origin.Lng, &p.Destination.Lat, &p.Destination.Lng,
			&p.BudgetMeters, &p.BestScore, &p.BestLength, &p.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating plans: %w", err)
	}

	return plans, total, nil
}

func (r *planRepository) GetByID(ctx context.Context, id int64) (*models.PlanRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT id, origin_lat, origin_lng, dest_lat, dest_lng, budget_meters,
	                 best_score, best_length_meters, result_json, created_at
	          FROM plans WHERE id = ?`

	var p models.PlanRecord
	var resultJSON string
	err := r.store.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Origin.Lat, &p.Origin.Lng, &p.Destination.Lat, &p.Destination.Lng,
		&p.BudgetMeters, &p.BestScore, &p.BestLength, &resultJSON, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	var result models.PlanResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to decode plan %d result: %w", id, err)
	}
	result.ID = p.ID
	p.Result = &result

	return &p, nil
}

func (r *planRepository) Create(ctx context.Context, plan *models.PlanRecord) (*models.PlanRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}

	result := plan.Result
	if result == nil {
		result = &models.PlanResult{Routes: []models.PlannedRoute{}, Warnings: []string{}}
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan result: %w", err)
	}

	query := `INSERT INTO plans (origin_lat, origin_lng, dest_lat, dest_lng, budget_meters,
	                             best_score, best_length_meters, result_json, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := r.store.db.ExecContext(ctx, query,
		plan.Origin.Lat, plan.Origin.Lng, plan.Destination.Lat, plan.Destination.Lng,
		plan.BudgetMeters, plan.BestScore, plan.BestLength, string(resultJSON), plan.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert plan: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get plan id: %w", err)
	}
	plan.ID = id
	if plan.Result != nil {
		plan.Result.ID = id
	}

	log.Printf("[SQLITE] Created plan: id=%d best_score=%.2f", id, plan.BestScore)
	return plan, nil
}

func (r *planRepository) Delete(ctx context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	res, err := r.store.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}

	log.Printf("[SQLITE] Deleted plan: id=%d", id)
	return nil
}
