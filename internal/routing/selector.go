package routing

import (
	"container/heap"

	"scenic-route-planner/internal/models"
)

// Better reports whether a beats b: higher score, or equal score and strictly
// shorter length.
func Better(a, b models.PathResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Length < b.Length
}

type rankedResult struct {
	result models.PathResult
	seq    int
}

// worse orders by score asc, then length desc, then later-seen first
func worse(a, b rankedResult) bool {
	if a.result.Score != b.result.Score {
		return a.result.Score < b.result.Score
	}
	if a.result.Length != b.result.Length {
		return a.result.Length > b.result.Length
	}
	return a.seq > b.seq
}

// resultHeap keeps the worst retained result at the root
type resultHeap []rankedResult

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) { *h = append(*h, x.(rankedResult)) }

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// SelectBest returns up to n results ordered by score descending, then length
// ascending, then first-seen order. It keeps a heap of at most n entries.
func SelectBest(results []models.PathResult, n int) []models.PathResult {
	if n <= 0 || len(results) == 0 {
		return []models.PathResult{}
	}

	h := make(resultHeap, 0, min(n, len(results)))
	for i, r := range results {
		item := rankedResult{result: r, seq: i}
		if h.Len() < n {
			heap.Push(&h, item)
			continue
		}
		if worse(h[0], item) {
			h[0] = item
			heap.Fix(&h, 0)
		}
	}

	out := make([]models.PathResult, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(rankedResult).result
	}
	return out
}
