package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/twpayne/go-polyline"

	"scenic-route-planner/internal/database"
	"scenic-route-planner/internal/distance"
	"scenic-route-planner/internal/geocoding"
	"scenic-route-planner/internal/models"
	"scenic-route-planner/internal/routing"
)

// Planning defaults
const (
	DefaultNOptions = 3
	DefaultPOILimit = 50
	geocodeRetries  = 3
)

// Location is either an address to geocode or explicit coordinates
type Location struct {
	Address string
	Coords  *models.Coordinates
}

// PlanRequest contains the input for a scenic route plan
type PlanRequest struct {
	Origins      []Location
	Destinations []Location
	BudgetMeters float64
	// Preferences maps a place category to its weight
	Preferences map[string]float64
	NOptions    int
	POILimit    int
	// Options overrides the planner's solver options when set
	Options *routing.Options
}

// RouteSource fetches road geometry through ordered waypoints
type RouteSource interface {
	GetRoute(ctx context.Context, waypoints []models.Coordinates) (*distance.RouteGeometry, error)
}

// Config holds the planner dependencies. Plans and Scorer are optional.
type Config struct {
	Geocoder  geocoding.Geocoder
	Distances distance.Provider
	Routes    RouteSource
	Plans     database.PlanRepository
	Scorer    ScoreSource
	Options   routing.Options
}

// Planner turns origins, destinations and place preferences into ranked routes
type Planner struct {
	geocoder  geocoding.Geocoder
	distances distance.Provider
	routes    RouteSource
	plans     database.PlanRepository
	scorer    ScoreSource
	options   routing.Options
}

func New(cfg Config) *Planner {
	return &Planner{
		geocoder:  cfg.Geocoder,
		distances: cfg.Distances,
		routes:    cfg.Routes,
		plans:     cfg.Plans,
		scorer:    cfg.Scorer,
		options:   cfg.Options,
	}
}

// Options returns the solver options used when a request sets none
func (p *Planner) Options() routing.Options {
	return p.options
}

func (req *PlanRequest) validate() error {
	if len(req.Origins) == 0 {
		return &routing.ErrInvalidInput{Field: "origins", Reason: "at least one origin is required"}
	}
	if len(req.Destinations) == 0 {
		return &routing.ErrInvalidInput{Field: "destinations", Reason: "at least one destination is required"}
	}
	for _, loc := range append(append([]Location{}, req.Origins...), req.Destinations...) {
		if loc.Coords == nil && loc.Address == "" {
			return &routing.ErrInvalidInput{Field: "location", Reason: "either an address or coordinates is required"}
		}
	}
	if !(req.BudgetMeters > 0) || math.IsInf(req.BudgetMeters, 0) {
		return &routing.ErrInvalidInput{Field: "budget", Reason: "must be a positive number of meters"}
	}
	if req.NOptions < 0 {
		return &routing.ErrInvalidInput{Field: "noptions", Reason: "must not be negative"}
	}
	for category, w := range req.Preferences {
		if math.IsNaN(w) || w < 0 {
			return &routing.ErrInvalidInput{Field: "preferences", Reason: fmt.Sprintf("weight for %q must be non-negative", category)}
		}
	}
	return nil
}

// Plan resolves the endpoints, gathers candidate POIs around them, solves the
// orienteering problem and attaches road geometry to each option.
func (p *Planner) Plan(ctx context.Context, req *PlanRequest) (*models.PlanResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	nOptions := req.NOptions
	if nOptions == 0 {
		nOptions = DefaultNOptions
	}
	opts := p.options
	if req.Options != nil {
		opts = *req.Options
	}

	log.Printf("[PLANNER] Plan request: origins=%d destinations=%d budget=%.0f categories=%d noptions=%d",
		len(req.Origins), len(req.Destinations), req.BudgetMeters, len(req.Preferences), nOptions)

	origins, err := p.resolveAll(ctx, req.Origins)
	if err != nil {
		return nil, err
	}
	destinations, err := p.resolveAll(ctx, req.Destinations)
	if err != nil {
		return nil, err
	}

	result := &models.PlanResult{
		Origins:      origins,
		Destinations: destinations,
		BudgetMeters: req.BudgetMeters,
		Routes:       []models.PlannedRoute{},
		Warnings:     []string{},
	}

	var pairs []endpointPair
	for _, o := range origins {
		for _, d := range destinations {
			pairs = append(pairs, endpointPair{origin: o, dest: d})
		}
	}

	places, warnings, err := p.searchPlaces(ctx, pairs, req)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, warnings...)

	// Node layout: origins, then destinations, then POIs
	nodes := make([]models.Node, 0, len(origins)+len(destinations)+len(places))
	originIDs := make([]models.NodeID, len(origins))
	destIDs := make([]models.NodeID, len(destinations))
	nextID := models.NodeID(1)
	for i, c := range origins {
		originIDs[i] = nextID
		nodes = append(nodes, models.Node{ID: nextID, Kind: models.NodeKindOrigin, Coords: c})
		nextID++
	}
	for i, c := range destinations {
		destIDs[i] = nextID
		nodes = append(nodes, models.Node{ID: nextID, Kind: models.NodeKindDestination, Coords: c})
		nextID++
	}
	for i := range places {
		places[i].ID = nextID
		nodes = append(nodes, models.Node{ID: nextID, Kind: models.NodeKindPOI, Name: places[i].Place.Name, Coords: places[i].Place.Coords})
		nextID++
	}
	result.POICount = len(places)

	scores := p.scoreSource(req).ScoresFor(places)

	table, err := p.distances.PairwiseDistances(ctx, nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to get distances: %w", err)
	}

	paths, err := routing.Solve(ctx, &routing.Request{
		Origins:      originIDs,
		Destinations: destIDs,
		BudgetMeters: req.BudgetMeters,
		Scores:       scores,
		Distances:    table,
		Options:      opts,
	}, nOptions)
	if err != nil {
		return nil, err
	}

	byID := make(map[models.NodeID]models.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	for rank, path := range paths {
		route, warning := p.buildRoute(ctx, rank+1, path, byID, scores)
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
		result.Routes = append(result.Routes, route)
	}

	p.persist(ctx, result)

	log.Printf("[PLANNER] Plan complete: routes=%d pois=%d best_score=%.2f warnings=%d",
		len(result.Routes), result.POICount, result.Routes[0].Score, len(result.Warnings))
	return result, nil
}

func (p *Planner) scoreSource(req *PlanRequest) ScoreSource {
	if p.scorer != nil {
		return p.scorer
	}
	return PreferenceScorer{Weights: req.Preferences}
}

func (p *Planner) resolveAll(ctx context.Context, locs []Location) ([]models.Coordinates, error) {
	out := make([]models.Coordinates, len(locs))
	for i, loc := range locs {
		if loc.Coords != nil {
			out[i] = *loc.Coords
			continue
		}
		res, err := p.geocoder.GeocodeWithRetry(ctx, loc.Address, geocodeRetries)
		if err != nil {
			return nil, err
		}
		out[i] = res.Coords
	}
	return out, nil
}

// searchPlaces queries every weighted category around the endpoints, drops
// places outside every pair's detour ellipse and merges places that share a
// rounded coordinate. Failed category searches become warnings.
func (p *Planner) searchPlaces(ctx context.Context, pairs []endpointPair, req *PlanRequest) ([]PlaceNode, []string, error) {
	limit := req.POILimit
	if limit <= 0 {
		limit = DefaultPOILimit
	}
	center, radius := searchArea(pairs, req.BudgetMeters)

	categories := make([]string, 0, len(req.Preferences))
	for c, w := range req.Preferences {
		if w > 0 {
			categories = append(categories, c)
		}
	}
	sort.Strings(categories)

	endpoints := make(map[string]bool, 2*len(pairs))
	for _, pair := range pairs {
		endpoints[coordKey(pair.origin)] = true
		endpoints[coordKey(pair.dest)] = true
	}

	var warnings []string
	var places []PlaceNode
	index := make(map[string]int)
	found, outside := 0, 0
	for _, category := range categories {
		results, err := p.geocoder.SearchPOIs(ctx, center, radius, category, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			warnings = append(warnings, fmt.Sprintf("place search failed for category %q", category))
			continue
		}
		found += len(results)

		for _, place := range results {
			if !withinDetour(place.Coords, pairs, req.BudgetMeters) {
				outside++
				continue
			}
			key := coordKey(place.Coords)
			if endpoints[key] {
				continue
			}
			if i, ok := index[key]; ok {
				places[i].Categories = appendUnique(places[i].Categories, category)
				if place.Importance > places[i].Place.Importance {
					places[i].Place.Importance = place.Importance
				}
				continue
			}
			index[key] = len(places)
			places = append(places, PlaceNode{Place: place, Categories: []string{category}})
		}
	}

	log.Printf("[PLANNER] Places gathered: categories=%d found=%d outside_budget=%d kept=%d radius=%.0f",
		len(categories), found, outside, len(places), radius)
	return places, warnings, nil
}

func (p *Planner) buildRoute(ctx context.Context, rank int, path models.PathResult, byID map[models.NodeID]models.Node, scores models.ScoreMap) (models.PlannedRoute, string) {
	route := models.PlannedRoute{
		Rank:             rank,
		Score:            path.Score,
		LengthMeters:     path.Length,
		Waypoints:        make([]models.Waypoint, len(path.Path)),
		IsDirectFallback: len(path.Path) == 2,
	}

	coords := make([]models.Coordinates, len(path.Path))
	for i, id := range path.Path {
		n := byID[id]
		coords[i] = n.Coords
		route.Waypoints[i] = models.Waypoint{
			NodeID: id,
			Kind:   n.Kind,
			Name:   n.Name,
			Coords: n.Coords,
			Score:  scores[id],
		}
	}

	if p.routes != nil {
		geom, err := p.routes.GetRoute(ctx, coords)
		if err == nil {
			route.RoadLengthMeters = geom.DistanceMeters
			route.DurationSecs = geom.DurationSecs
			route.Polyline = geom.Polyline
			route.Geometry = geom.Points
			return route, ""
		}
		log.Printf("[ERROR] Route geometry unavailable: rank=%d err=%v", rank, err)
	}

	// Straight segments between the waypoints
	route.Polyline = encodeWaypoints(coords)
	route.Geometry = coords
	return route, fmt.Sprintf("road geometry unavailable for route %d, showing straight segments", rank)
}

// persist saves the plan. The record's endpoint columns hold the first pair;
// the stored result lists all of them.
func (p *Planner) persist(ctx context.Context, result *models.PlanResult) {
	if p.plans == nil || len(result.Routes) == 0 {
		return
	}

	best := result.Routes[0]
	record, err := p.plans.Create(ctx, &models.PlanRecord{
		Origin:       result.Origins[0],
		Destination:  result.Destinations[0],
		BudgetMeters: result.BudgetMeters,
		BestScore:    best.Score,
		BestLength:   best.LengthMeters,
		Result:       result,
	})
	if err != nil {
		log.Printf("[ERROR] Failed to save plan: err=%v", err)
		result.Warnings = append(result.Warnings, "plan could not be saved to history")
		return
	}
	result.ID = record.ID
}

// IsUserError reports whether err was caused by the request rather than by
// the planner or its services.
func IsUserError(err error) bool {
	var invalid *routing.ErrInvalidInput
	var geo *geocoding.ErrGeocodingFailed
	return errors.As(err, &invalid) || errors.As(err, &geo) || errors.Is(err, routing.ErrUnreachable)
}

func encodeWaypoints(coords []models.Coordinates) string {
	pts := make([][]float64, len(coords))
	for i, c := range coords {
		pts[i] = []float64{c.Lat, c.Lng}
	}
	return string(polyline.EncodeCoords(pts))
}

func coordKey(c models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f", models.RoundCoordinate(c.Lat), models.RoundCoordinate(c.Lng))
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
