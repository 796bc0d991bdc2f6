package routing

import (
	"math"

	"scenic-route-planner/internal/models"
)

// Validate checks solver options before any trial runs
func (o Options) Validate() error {
	if !(o.PowerParam > 0) || math.IsInf(o.PowerParam, 0) {
		return &ErrInvalidInput{Field: "power_param", Reason: "must be a positive number"}
	}
	if o.LengthParam <= 0 {
		return &ErrInvalidInput{Field: "length_param", Reason: "must be positive"}
	}
	if o.Trials <= 0 {
		return &ErrInvalidInput{Field: "trials", Reason: "must be positive"}
	}
	if o.Workers < 0 {
		return &ErrInvalidInput{Field: "workers", Reason: "must not be negative"}
	}
	return nil
}

func validateBudget(budget float64) error {
	if !(budget > 0) || math.IsInf(budget, 0) {
		return &ErrInvalidInput{Field: "budget", Reason: "must be a positive number of meters"}
	}
	return nil
}

func validateScores(scores models.ScoreMap, endpoints ...[]models.NodeID) error {
	for id, s := range scores {
		if math.IsNaN(s) || s < 0 {
			return &ErrInvalidInput{Field: "scores", Reason: "scores must be non-negative"}
		}
		for _, ids := range endpoints {
			for _, e := range ids {
				if e == id {
					return &ErrInvalidInput{Field: "scores", Reason: "origin and destination nodes must not be scored"}
				}
			}
		}
	}
	return nil
}

func validateDistances(distances models.DistanceTable) error {
	for _, d := range distances {
		if math.IsNaN(d) || d < 0 {
			return &ErrInvalidInput{Field: "distances", Reason: "distances must be non-negative"}
		}
	}
	return nil
}

// Validate checks a solve request and the requested number of options
func (r *Request) Validate(nOptions int) error {
	if len(r.Origins) == 0 {
		return &ErrInvalidInput{Field: "origins", Reason: "at least one origin is required"}
	}
	if len(r.Destinations) == 0 {
		return &ErrInvalidInput{Field: "destinations", Reason: "at least one destination is required"}
	}
	if nOptions <= 0 {
		return &ErrInvalidInput{Field: "noptions", Reason: "must be positive"}
	}
	if err := validateBudget(r.BudgetMeters); err != nil {
		return err
	}
	if err := r.Options.Validate(); err != nil {
		return err
	}
	if err := validateScores(r.Scores, r.Origins, r.Destinations); err != nil {
		return err
	}
	return validateDistances(r.Distances)
}
