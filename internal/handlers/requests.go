package handlers

import (
	"errors"
	"net/http"
	"strings"

	"scenic-route-planner/internal/models"
	"scenic-route-planner/internal/planner"
	"scenic-route-planner/internal/routing"
)

// CoordinatesRequest is a point given by the caller
type CoordinatesRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// LocationRequest is an address or a point
type LocationRequest struct {
	Address string              `json:"address,omitempty" validate:"required_without=Coords,max=256"`
	Coords  *CoordinatesRequest `json:"coords,omitempty" validate:"required_without=Address"`
}

func (l LocationRequest) toLocation() planner.Location {
	loc := planner.Location{Address: l.Address}
	if l.Coords != nil {
		loc.Coords = &models.Coordinates{Lat: l.Coords.Lat, Lng: l.Coords.Lng}
	}
	return loc
}

// SolverOptionsRequest overrides individual solver options
type SolverOptionsRequest struct {
	PowerParam  *float64 `json:"power_param,omitempty" validate:"omitempty,gt=0,lte=64"`
	LengthParam *int     `json:"length_param,omitempty" validate:"omitempty,min=1,max=1000"`
	Trials      *int     `json:"trials,omitempty" validate:"omitempty,min=1,max=100000"`
	Seed        *int64   `json:"seed,omitempty"`
}

func (o *SolverOptionsRequest) apply(base routing.Options) routing.Options {
	if o == nil {
		return base
	}
	if o.PowerParam != nil {
		base.PowerParam = *o.PowerParam
	}
	if o.LengthParam != nil {
		base.LengthParam = *o.LengthParam
	}
	if o.Trials != nil {
		base.Trials = *o.Trials
	}
	if o.Seed != nil {
		base.Seed = *o.Seed
	}
	return base
}

// CreatePlanRequest is the body of POST /api/v1/plans
type CreatePlanRequest struct {
	Origins      []LocationRequest     `json:"origins" validate:"required,min=1,max=10,dive"`
	Destinations []LocationRequest     `json:"destinations" validate:"required,min=1,max=10,dive"`
	BudgetMeters float64               `json:"budget_meters" validate:"required,gt=0,lte=200000"`
	Preferences  map[string]float64    `json:"preferences" validate:"required,min=1,max=20,dive,keys,required,max=64,endkeys,gte=0"`
	NOptions     int                   `json:"noptions,omitempty" validate:"omitempty,min=1,max=20"`
	POILimit     int                   `json:"poi_limit,omitempty" validate:"omitempty,min=1,max=50"`
	Options      *SolverOptionsRequest `json:"options,omitempty"`
}

func (p *CreatePlanRequest) Bind(r *http.Request) error {
	for i := range p.Origins {
		p.Origins[i].Address = strings.TrimSpace(p.Origins[i].Address)
	}
	for i := range p.Destinations {
		p.Destinations[i].Address = strings.TrimSpace(p.Destinations[i].Address)
	}

	prefs := make(map[string]float64, len(p.Preferences))
	for category, w := range p.Preferences {
		category = strings.ToLower(strings.TrimSpace(category))
		if category == "" {
			return errors.New("preference categories must not be empty")
		}
		prefs[category] = max(prefs[category], w)
	}
	p.Preferences = prefs
	return nil
}

func (p *CreatePlanRequest) toPlanRequest(defaults routing.Options) *planner.PlanRequest {
	req := &planner.PlanRequest{
		BudgetMeters: p.BudgetMeters,
		Preferences:  p.Preferences,
		NOptions:     p.NOptions,
		POILimit:     p.POILimit,
	}
	for _, o := range p.Origins {
		req.Origins = append(req.Origins, o.toLocation())
	}
	for _, d := range p.Destinations {
		req.Destinations = append(req.Destinations, d.toLocation())
	}
	if p.Options != nil {
		opts := p.Options.apply(defaults)
		req.Options = &opts
	}
	return req
}

// DistanceEntry is one directed edge of a caller-supplied distance table
type DistanceEntry struct {
	From   models.NodeID `json:"from"`
	To     models.NodeID `json:"to"`
	Meters float64       `json:"meters" validate:"gte=0"`
}

// SolveRequest is the body of POST /api/v1/solve
type SolveRequest struct {
	Origins      []models.NodeID           `json:"origins" validate:"required,min=1,max=100"`
	Destinations []models.NodeID           `json:"destinations" validate:"required,min=1,max=100"`
	BudgetMeters float64                   `json:"budget_meters" validate:"required,gt=0"`
	Scores       map[models.NodeID]float64 `json:"scores" validate:"dive,gte=0"`
	Distances    []DistanceEntry           `json:"distances" validate:"required,min=1,max=250000,dive"`
	NOptions     int                       `json:"noptions,omitempty" validate:"omitempty,min=1,max=50"`
	Options      *SolverOptionsRequest     `json:"options,omitempty"`
}

func (s *SolveRequest) Bind(r *http.Request) error {
	if s.Scores == nil {
		s.Scores = map[models.NodeID]float64{}
	}
	return nil
}

func (s *SolveRequest) toRoutingRequest(defaults routing.Options) (*routing.Request, int) {
	table := make(models.DistanceTable, len(s.Distances))
	for _, e := range s.Distances {
		table.Set(e.From, e.To, e.Meters)
	}

	n := s.NOptions
	if n == 0 {
		n = planner.DefaultNOptions
	}
	return &routing.Request{
		Origins:      s.Origins,
		Destinations: s.Destinations,
		BudgetMeters: s.BudgetMeters,
		Scores:       models.ScoreMap(s.Scores),
		Distances:    table,
		Options:      s.Options.apply(defaults),
	}, n
}

// SolveResponse is the body returned by POST /api/v1/solve
type SolveResponse struct {
	Paths []models.PathResult `json:"paths"`
}

// PlanListResponse is a page of stored plans
type PlanListResponse struct {
	Plans  []models.PlanRecord `json:"plans"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// DistanceCacheResponse reports the size of the distance cache
type DistanceCacheResponse struct {
	Entries int `json:"entries"`
}
