package routing

import (
	"math"
	"math/rand/v2"
	"sort"

	"scenic-route-planner/internal/models"
)

// candidate is a feasible next hop with its log desirability
type candidate struct {
	node      models.NodeID
	logWeight float64
}

// pathBuilder holds the immutable inputs shared by all trials of one pair
type pathBuilder struct {
	origin      models.NodeID
	dest        models.NodeID
	budget      float64
	scores      models.ScoreMap
	distances   models.DistanceTable
	pois        []models.NodeID
	powerParam  float64
	lengthParam int
}

func newPathBuilder(origin, dest models.NodeID, budget float64, scores models.ScoreMap, distances models.DistanceTable, powerParam float64, lengthParam int) *pathBuilder {
	pois := make([]models.NodeID, 0, len(scores))
	for id := range scores {
		pois = append(pois, id)
	}
	sort.Slice(pois, func(i, j int) bool { return pois[i] < pois[j] })

	return &pathBuilder{
		origin:      origin,
		dest:        dest,
		budget:      budget,
		scores:      scores,
		distances:   distances,
		pois:        pois,
		powerParam:  powerParam,
		lengthParam: lengthParam,
	}
}

// BuildPath constructs one candidate path from origin to dest by repeatedly
// drawing a feasible unvisited POI, weighted by desirability, among the top
// lengthParam candidates. It returns ErrUnreachable when the origin has no
// feasible hop and no direct distance to dest.
func BuildPath(rng *rand.Rand, origin, dest models.NodeID, budget float64, scores models.ScoreMap, distances models.DistanceTable, powerParam float64, lengthParam int) (models.PathResult, error) {
	return newPathBuilder(origin, dest, budget, scores, distances, powerParam, lengthParam).build(rng)
}

func (b *pathBuilder) build(rng *rand.Rand) (models.PathResult, error) {
	path := []models.NodeID{b.origin}
	visited := make(map[models.NodeID]bool)
	cur := b.origin
	dist := 0.0
	score := 0.0

	// Reused across steps
	feasible := make([]candidate, 0, len(b.pois))

	for {
		feasible = b.feasibleFrom(cur, visited, dist, feasible[:0])

		if len(feasible) == 0 {
			last, ok := b.distances.TryGet(cur, b.dest)
			if !ok {
				if cur == b.origin {
					return models.PathResult{}, ErrUnreachable
				}
				return models.PathResult{}, &ErrInvariantViolation{Node: cur, Dest: b.dest}
			}
			path = append(path, b.dest)
			return models.PathResult{
				Path:   path,
				Score:  score,
				Length: dist + last,
			}, nil
		}

		next := pickWeighted(rng, rankTop(feasible, b.lengthParam))
		hop, _ := b.distances.TryGet(cur, next)

		path = append(path, next)
		visited[next] = true
		dist += hop
		score += b.scores[next]
		cur = next
	}
}

// feasibleFrom appends every unvisited POI that can be visited from cur and
// still reach the destination strictly within budget.
func (b *pathBuilder) feasibleFrom(cur models.NodeID, visited map[models.NodeID]bool, distSoFar float64, out []candidate) []candidate {
	for _, v := range b.pois {
		if visited[v] || v == cur {
			continue
		}
		toV, ok := b.distances.TryGet(cur, v)
		if !ok {
			continue
		}
		toDest, ok := b.distances.TryGet(v, b.dest)
		if !ok {
			continue
		}
		if !(distSoFar+toV+toDest < b.budget) {
			continue
		}
		// Co-located snaps have no usable desirability
		lw, err := LogDesirability(b.scores[v], toV, b.powerParam)
		if err != nil {
			continue
		}
		out = append(out, candidate{node: v, logWeight: lw})
	}
	return out
}

// rankTop sorts candidates by desirability descending (node id breaks ties)
// and keeps the first k.
func rankTop(cands []candidate, k int) []candidate {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].logWeight != cands[j].logWeight {
			return cands[i].logWeight > cands[j].logWeight
		}
		return cands[i].node < cands[j].node
	})
	if len(cands) > k {
		cands = cands[:k]
	}
	return cands
}

// pickWeighted draws one candidate with probability proportional to its
// desirability. Weights are exp(logWeight - max), so the most desirable
// candidate weighs 1 and nothing underflows as a whole. All-zero
// desirabilities fall back to a uniform draw, infinite ones are drawn
// uniformly among themselves.
func pickWeighted(rng *rand.Rand, cands []candidate) models.NodeID {
	top := math.Inf(-1)
	for _, c := range cands {
		top = math.Max(top, c.logWeight)
	}

	if math.IsInf(top, -1) {
		return cands[rng.IntN(len(cands))].node
	}
	if math.IsInf(top, 1) {
		var infinite []models.NodeID
		for _, c := range cands {
			if math.IsInf(c.logWeight, 1) {
				infinite = append(infinite, c.node)
			}
		}
		return infinite[rng.IntN(len(infinite))]
	}

	weights := make([]float64, len(cands))
	total := 0.0
	for i, c := range cands {
		weights[i] = math.Exp(c.logWeight - top)
		total += weights[i]
	}

	r := rng.Float64() * total
	for i, c := range cands {
		r -= weights[i]
		if r < 0 {
			return c.node
		}
	}
	// Rounding left r at or just above zero
	for i := len(cands) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return cands[i].node
		}
	}
	return cands[0].node
}
