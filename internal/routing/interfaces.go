package routing

import (
	"errors"
	"fmt"
	"runtime"

	"scenic-route-planner/internal/models"
)

// Default solver parameters
const (
	DefaultPowerParam  = 4.0
	DefaultLengthParam = 4
	DefaultTrials      = 1000
)

// Options tunes the orienteering heuristic
type Options struct {
	// PowerParam sharpens the preference for close, high-scoring hops
	PowerParam float64 `json:"power_param"`
	// LengthParam is the number of top-ranked candidates kept before sampling
	LengthParam int `json:"length_param"`
	// Trials is the total number of random walks across all origin/destination pairs
	Trials int `json:"trials"`
	// Workers bounds trial goroutines per pair. 0 means runtime.NumCPU().
	Workers int `json:"workers,omitempty"`
	// Seed selects the random stream. 0 means a fixed default seed, which is
	// the same stream as passing that seed explicitly.
	Seed int64 `json:"seed,omitempty"`
	// Strict panics on distance table inconsistencies instead of skipping the trial
	Strict bool `json:"-"`
}

// DefaultOptions returns the solver defaults
func DefaultOptions() Options {
	return Options{
		PowerParam:  DefaultPowerParam,
		LengthParam: DefaultLengthParam,
		Trials:      DefaultTrials,
	}
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// Request contains the input for a solve
type Request struct {
	Origins      []models.NodeID
	Destinations []models.NodeID
	BudgetMeters float64
	Scores       models.ScoreMap
	Distances    models.DistanceTable
	Options      Options
}

// ErrUnreachable is returned when an origin cannot reach its destination at all
var ErrUnreachable = errors.New("destination unreachable from origin")

// ErrNonPositiveDistance is returned by Desirability for self-loops
var ErrNonPositiveDistance = errors.New("desirability requires a positive distance")

// ErrNoRoute is returned when no origin/destination pair is connected
type ErrNoRoute struct {
	Pairs int
}

func (e *ErrNoRoute) Error() string {
	return fmt.Sprintf("no route found: all %d origin/destination pairs are unreachable", e.Pairs)
}

// Is lets errors.Is match ErrUnreachable
func (e *ErrNoRoute) Is(target error) bool {
	return target == ErrUnreachable
}

// ErrInvalidInput is returned before any trial runs when the request is malformed
type ErrInvalidInput struct {
	Field  string
	Reason string
}

func (e *ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrInvariantViolation reports an intermediate node that cannot reach the
// destination although it was feasible when chosen. It points at an
// inconsistent distance table.
type ErrInvariantViolation struct {
	Node models.NodeID
	Dest models.NodeID
}

func (e *ErrInvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: node %d was chosen but has no distance to destination %d", e.Node, e.Dest)
}
