package distance

import (
	"context"
	"fmt"
	"log"

	"scenic-route-planner/internal/models"
)

// Provider resolves travel distances between graph nodes
type Provider interface {
	PairwiseDistances(ctx context.Context, nodes []models.Node) (models.DistanceTable, error)
}

type matrixProvider struct {
	calc DistanceCalculator
}

// NewMatrixProvider adapts a DistanceCalculator to node IDs
func NewMatrixProvider(calc DistanceCalculator) Provider {
	return &matrixProvider{calc: calc}
}

// PairwiseDistances fetches one matrix over all nodes. Unreachable pairs are
// left out of the table; a node's distance to itself is 0.
func (p *matrixProvider) PairwiseDistances(ctx context.Context, nodes []models.Node) (models.DistanceTable, error) {
	table := make(models.DistanceTable, len(nodes)*len(nodes))
	if len(nodes) == 0 {
		return table, nil
	}

	seen := make(map[models.NodeID]bool, len(nodes))
	points := make([]models.Coordinates, len(nodes))
	for i, n := range nodes {
		if seen[n.ID] {
			return nil, fmt.Errorf("duplicate node id %d", n.ID)
		}
		seen[n.ID] = true
		points[i] = n.Coords
	}

	matrix, err := p.calc.GetDistanceMatrix(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("failed to get distance matrix: %w", err)
	}

	unreachable := 0
	for i, from := range nodes {
		for j, to := range nodes {
			if i == j {
				table.Set(from.ID, to.ID, 0)
				continue
			}
			cell := matrix[i][j]
			if !cell.Reachable {
				unreachable++
				continue
			}
			table.Set(from.ID, to.ID, cell.DistanceMeters)
		}
	}

	log.Printf("[OSRM] Pairwise distances: nodes=%d entries=%d unreachable=%d", len(nodes), len(table), unreachable)
	return table, nil
}
