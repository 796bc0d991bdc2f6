package planner

import (
	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"

	"scenic-route-planner/internal/models"
)

// earthRadiusMeters is the mean Earth radius
const earthRadiusMeters = 6371010.0

func toPoint(c models.Coordinates) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lng))
}

// GeodesicMeters is the great-circle distance between two coordinates
func GeodesicMeters(a, b models.Coordinates) float64 {
	return float64(toPoint(a).Distance(toPoint(b))) * earthRadiusMeters
}

// Centroid returns the spherical centroid of the points. For two points this
// is the geodesic midpoint.
func Centroid(points []models.Coordinates) models.Coordinates {
	if len(points) == 0 {
		return models.Coordinates{}
	}

	var sum r3.Vector
	for _, c := range points {
		sum = sum.Add(toPoint(c).Vector)
	}
	// Antipodal inputs have no defined centre
	if sum.Norm() < 1e-12 {
		return points[0]
	}

	ll := s2.LatLngFromPoint(s2.Point{Vector: sum.Normalize()})
	return models.Coordinates{Lat: ll.Lat.Degrees(), Lng: ll.Lng.Degrees()}
}

// endpointPair is a resolved origin/destination pair
type endpointPair struct {
	origin, dest models.Coordinates
}

// searchArea returns a circle that contains every point whose straight-line
// detour fits the budget for at least one pair.
func searchArea(pairs []endpointPair, budget float64) (models.Coordinates, float64) {
	var endpoints []models.Coordinates
	for _, p := range pairs {
		endpoints = append(endpoints, p.origin, p.dest)
	}
	center := Centroid(endpoints)

	// Each pair's detour ellipse lies within budget/2 of the pair midpoint
	offset := 0.0
	for _, p := range pairs {
		mid := Centroid([]models.Coordinates{p.origin, p.dest})
		offset = max(offset, GeodesicMeters(center, mid))
	}
	return center, budget/2 + offset
}

// withinDetour reports whether p can be visited on the way from some origin to
// its destination without the straight-line detour exceeding the budget.
func withinDetour(p models.Coordinates, pairs []endpointPair, budget float64) bool {
	for _, pair := range pairs {
		if GeodesicMeters(pair.origin, p)+GeodesicMeters(p, pair.dest) <= budget {
			return true
		}
	}
	return false
}
