package planner

import (
	"scenic-route-planner/internal/models"
)

// defaultImportance stands in for places the search service did not rank
const defaultImportance = 0.25

// PlaceNode is a candidate POI after merging, with its graph node ID
type PlaceNode struct {
	ID    models.NodeID
	Place models.Place
	// Categories lists every searched category that returned this place
	Categories []string
}

// ScoreSource assigns a non-negative score to each candidate POI
type ScoreSource interface {
	ScoresFor(places []PlaceNode) models.ScoreMap
}

// PreferenceScorer scores a place by its best matching category weight
// multiplied by its importance.
type PreferenceScorer struct {
	Weights map[string]float64
}

func (s PreferenceScorer) ScoresFor(places []PlaceNode) models.ScoreMap {
	scores := make(models.ScoreMap, len(places))
	for _, p := range places {
		weight := 0.0
		for _, c := range p.Categories {
			if w := s.Weights[c]; w > weight {
				weight = w
			}
		}

		importance := p.Place.Importance
		if importance <= 0 {
			importance = defaultImportance
		}
		scores[p.ID] = weight * importance
	}
	return scores
}
