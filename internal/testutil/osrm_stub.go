package testutil

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/twpayne/go-polyline"

	"scenic-route-planner/internal/models"
)

// OSRMStub is a fake OSRM server. Distances are straight lines scaled by
// ScaleFactor meters per degree; durations assume 5 km/h.
type OSRMStub struct {
	Server      *httptest.Server
	ScaleFactor float64

	mu         sync.Mutex
	blocked    map[string]bool
	tableCalls int
	routeCalls int
	failRoutes bool
}

func NewOSRMStub() *OSRMStub {
	s := &OSRMStub{
		ScaleFactor: 111000,
		blocked:     make(map[string]bool),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *OSRMStub) Close() {
	s.Server.Close()
}

func (s *OSRMStub) URL() string {
	return s.Server.URL
}

func pointKey(p models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f", models.RoundCoordinate(p.Lat), models.RoundCoordinate(p.Lng))
}

// Block makes every cell to or from p unroutable
func (s *OSRMStub) Block(p models.Coordinates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[pointKey(p)] = true
}

// FailRoutes makes the route service answer with an error
func (s *OSRMStub) FailRoutes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRoutes = true
}

func (s *OSRMStub) TableCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tableCalls
}

func (s *OSRMStub) RouteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.routeCalls
}

// Distance is the stub's distance between two points in meters
func (s *OSRMStub) Distance(a, b models.Coordinates) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lng-b.Lng) * s.ScaleFactor
}

func (s *OSRMStub) handle(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) != 4 {
		http.Error(w, "bad path", http.StatusNotFound)
		return
	}
	points, err := parseCoords(parts[3])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch parts[0] {
	case "table":
		s.table(w, r, points)
	case "route":
		s.route(w, points)
	default:
		http.Error(w, "unknown service", http.StatusNotFound)
	}
}

func (s *OSRMStub) table(w http.ResponseWriter, r *http.Request, points []models.Coordinates) {
	s.mu.Lock()
	s.tableCalls++
	s.mu.Unlock()

	sources, err := parseIndices(r.URL.Query().Get("sources"), len(points))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	destinations, err := parseIndices(r.URL.Query().Get("destinations"), len(points))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	distances := make([][]*float64, len(sources))
	durations := make([][]*float64, len(sources))
	for i, si := range sources {
		distances[i] = make([]*float64, len(destinations))
		durations[i] = make([]*float64, len(destinations))
		for j, dj := range destinations {
			if s.isBlocked(points[si]) || s.isBlocked(points[dj]) {
				continue
			}
			d := s.Distance(points[si], points[dj])
			t := d / (5000.0 / 3600)
			distances[i][j] = &d
			durations[i][j] = &t
		}
	}

	writeJSON(w, map[string]any{
		"code":      "Ok",
		"distances": distances,
		"durations": durations,
	})
}

func (s *OSRMStub) route(w http.ResponseWriter, points []models.Coordinates) {
	s.mu.Lock()
	s.routeCalls++
	fail := s.failRoutes
	s.mu.Unlock()

	if fail {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"code": "NoRoute", "message": "Impossible route between points"})
		return
	}

	total := 0.0
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lng}
		if i > 0 {
			total += s.Distance(points[i-1], p)
		}
	}

	writeJSON(w, map[string]any{
		"code": "Ok",
		"routes": []map[string]any{{
			"distance": total,
			"duration": total / (5000.0 / 3600),
			"geometry": string(polyline.EncodeCoords(coords)),
		}},
	})
}

func (s *OSRMStub) isBlocked(p models.Coordinates) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked[pointKey(p)]
}

func parseCoords(raw string) ([]models.Coordinates, error) {
	var points []models.Coordinates
	for _, pair := range strings.Split(raw, ";") {
		lngLat := strings.Split(pair, ",")
		if len(lngLat) != 2 {
			return nil, fmt.Errorf("bad coordinate %q", pair)
		}
		lng, err := strconv.ParseFloat(lngLat[0], 64)
		if err != nil {
			return nil, err
		}
		lat, err := strconv.ParseFloat(lngLat[1], 64)
		if err != nil {
			return nil, err
		}
		points = append(points, models.Coordinates{Lat: lat, Lng: lng})
	}
	return points, nil
}

// parseIndices reads an OSRM sources/destinations list; empty means all
func parseIndices(raw string, n int) ([]int, error) {
	if raw == "" {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	var out []int
	for _, part := range strings.Split(raw, ";") {
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 || idx >= n {
			return nil, fmt.Errorf("bad index %q", part)
		}
		out = append(out, idx)
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
