package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RoundCoordinate rounds a coordinate to 5 decimal places (~1m)
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// NodeID identifies a graph vertex: an origin, a destination or a snapped POI
type NodeID int64

// NodeKind tells what a node stands for in a planning request
type NodeKind string

const (
	NodeKindOrigin      NodeKind = "origin"
	NodeKindDestination NodeKind = "destination"
	NodeKindPOI         NodeKind = "poi"
)

// Node is a vertex handed to the distance provider
type Node struct {
	ID     NodeID      `json:"id"`
	Kind   NodeKind    `json:"kind"`
	Name   string      `json:"name,omitempty"`
	Coords Coordinates `json:"coords"`
}

// NodePair is an ordered pair of nodes
type NodePair struct {
	From NodeID
	To   NodeID
}

// ScoreMap holds the desirability weight of each POI node
type ScoreMap map[NodeID]float64

// DistanceTable is a sparse table of travel distances in meters.
// A missing entry means the pair is unknown or unreachable, never zero.
type DistanceTable map[NodePair]float64

// TryGet returns the distance from one node to another and whether it is known
func (t DistanceTable) TryGet(from, to NodeID) (float64, bool) {
	d, ok := t[NodePair{From: from, To: to}]
	return d, ok
}

// Set stores the distance from one node to another
func (t DistanceTable) Set(from, to NodeID, meters float64) {
	t[NodePair{From: from, To: to}] = meters
}

// PathResult is a solved path with its accumulated score and length
type PathResult struct {
	Path   []NodeID `json:"path"`
	Score  float64  `json:"score"`
	Length float64  `json:"length_meters"`
}

// Origin returns the first node of the path
func (r *PathResult) Origin() NodeID {
	return r.Path[0]
}

// Destination returns the last node of the path
func (r *PathResult) Destination() NodeID {
	return r.Path[len(r.Path)-1]
}

// Key identifies the exact node sequence of the path
func (r *PathResult) Key() string {
	var b strings.Builder
	for i, id := range r.Path {
		if i > 0 {
			b.WriteByte('>')
		}
		b.WriteString(strconv.FormatInt(int64(id), 10))
	}
	return b.String()
}

// Place is a point of interest returned by a place search
type Place struct {
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	Coords     Coordinates `json:"coords"`
	Importance float64     `json:"importance"`
}

// Waypoint is a resolved stop of a planned route
type Waypoint struct {
	NodeID NodeID      `json:"node_id"`
	Kind   NodeKind    `json:"kind"`
	Name   string      `json:"name,omitempty"`
	Coords Coordinates `json:"coords"`
	Score  float64     `json:"score"`
}

// PlannedRoute is one route option returned to the caller
type PlannedRoute struct {
	Rank             int           `json:"rank"`
	Score            float64       `json:"score"`
	LengthMeters     float64       `json:"length_meters"`
	RoadLengthMeters float64       `json:"road_length_meters,omitempty"`
	DurationSecs     float64       `json:"duration_secs,omitempty"`
	Waypoints        []Waypoint    `json:"waypoints"`
	Polyline         string        `json:"polyline,omitempty"`
	Geometry         []Coordinates `json:"geometry,omitempty"`
	IsDirectFallback bool          `json:"is_direct_fallback"`
}

// PlanResult contains the full result of a planning request
type PlanResult struct {
	ID           int64          `json:"id,omitempty"`
	Origins      []Coordinates  `json:"origins"`
	Destinations []Coordinates  `json:"destinations"`
	BudgetMeters float64        `json:"budget_meters"`
	Routes       []PlannedRoute `json:"routes"`
	POICount     int            `json:"poi_count"`
	Warnings     []string       `json:"warnings"`
}

// PlanRecord is a stored plan. Origin and Destination are the first resolved
// pair of the request; every endpoint of a multi-pair plan is kept in
// Result.Origins and Result.Destinations.
type PlanRecord struct {
	ID           int64       `json:"id"`
	Origin       Coordinates `json:"origin"`
	Destination  Coordinates `json:"destination"`
	BudgetMeters float64     `json:"budget_meters"`
	BestScore    float64     `json:"best_score"`
	BestLength   float64     `json:"best_length_meters"`
	Result       *PlanResult `json:"result,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// DistanceCacheEntry represents a cached distance lookup
type DistanceCacheEntry struct {
	Origin         Coordinates `json:"origin"`
	Destination    Coordinates `json:"destination"`
	DistanceMeters float64     `json:"distance_meters"`
	DurationSecs   float64     `json:"duration_secs"`
}
