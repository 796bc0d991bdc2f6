package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenic-route-planner/internal/models"
)

func result(score, length float64, path ...models.NodeID) models.PathResult {
	return models.PathResult{Path: path, Score: score, Length: length}
}

func TestBetter(t *testing.T) {
	tests := []struct {
		name string
		a, b models.PathResult
		want bool
	}{
		{"higher score wins", result(5, 900), result(4, 100), true},
		{"lower score loses", result(4, 100), result(5, 900), false},
		{"equal score shorter wins", result(5, 100), result(5, 200), true},
		{"equal score longer loses", result(5, 200), result(5, 100), false},
		{"identical is not better", result(5, 100), result(5, 100), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Better(tt.a, tt.b))
		})
	}
}

func TestSelectBestOrdersByScoreThenLength(t *testing.T) {
	results := []models.PathResult{
		result(3, 500, 1, 2),
		result(7, 900, 1, 3),
		result(7, 800, 1, 4),
		result(1, 100, 1, 5),
	}

	best := SelectBest(results, 3)

	require.Len(t, best, 3)
	assert.Equal(t, []models.NodeID{1, 4}, best[0].Path)
	assert.Equal(t, []models.NodeID{1, 3}, best[1].Path)
	assert.Equal(t, []models.NodeID{1, 2}, best[2].Path)
}

func TestSelectBestTiesKeepFirstSeen(t *testing.T) {
	results := []models.PathResult{
		result(2, 100, 1, 10),
		result(2, 100, 1, 11),
		result(2, 100, 1, 12),
	}

	best := SelectBest(results, 2)

	require.Len(t, best, 2)
	assert.Equal(t, []models.NodeID{1, 10}, best[0].Path)
	assert.Equal(t, []models.NodeID{1, 11}, best[1].Path)
}

func TestSelectBestFewerThanN(t *testing.T) {
	results := []models.PathResult{result(1, 10, 1, 2), result(4, 10, 1, 3)}

	best := SelectBest(results, 10)

	require.Len(t, best, 2)
	assert.Equal(t, 4.0, best[0].Score)
}

func TestSelectBestNonPositiveN(t *testing.T) {
	results := []models.PathResult{result(1, 10, 1, 2)}

	assert.Empty(t, SelectBest(results, 0))
	assert.Empty(t, SelectBest(results, -3))
	assert.NotNil(t, SelectBest(nil, 2))
}

func TestSelectBestIsIdempotent(t *testing.T) {
	results := []models.PathResult{
		result(3, 300, 1, 2),
		result(9, 300, 1, 3),
		result(3, 200, 1, 4),
		result(5, 700, 1, 5),
		result(0, 50, 1, 6),
	}

	once := SelectBest(results, 3)
	twice := SelectBest(once, 3)

	assert.Equal(t, once, twice)
}

func TestSelectBestMatchesFullSort(t *testing.T) {
	results := make([]models.PathResult, 0, 50)
	for i := 0; i < 50; i++ {
		results = append(results, result(float64((i*7)%11), float64((i*13)%17)*100, 1, models.NodeID(i+10)))
	}

	best := SelectBest(results, 8)

	require.Len(t, best, 8)
	for i := 1; i < len(best); i++ {
		assert.False(t, Better(best[i], best[i-1]), "position %d outranks %d", i, i-1)
	}
	// Nothing left out beats the last kept result
	kept := map[string]bool{}
	for _, r := range best {
		kept[r.Key()] = true
	}
	for _, r := range results {
		if !kept[r.Key()] {
			assert.False(t, Better(r, best[len(best)-1]), "dropped %v beats kept tail", r.Path)
		}
	}
}
