package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/twpayne/go-polyline"

	"scenic-route-planner/internal/database"
	"scenic-route-planner/internal/models"
)

const (
	DefaultOSRMURL     = "https://router.project-osrm.org"
	DefaultOSRMProfile = "foot"
)

// DistanceResult contains the result of a distance calculation.
// Reachable is false when the router found no route between the points.
type DistanceResult struct {
	DistanceMeters float64
	DurationSecs   float64
	Reachable      bool
}

// RouteGeometry is the road geometry of a route through ordered waypoints
type RouteGeometry struct {
	DistanceMeters float64
	DurationSecs   float64
	Polyline       string
	Points         []models.Coordinates
}

// DistanceCalculator provides distance calculations between coordinates
type DistanceCalculator interface {
	GetDistanceMatrix(ctx context.Context, points []models.Coordinates) ([][]DistanceResult, error)
	GetRoute(ctx context.Context, waypoints []models.Coordinates) (*RouteGeometry, error)
}

// ErrDistanceCalculationFailed is returned when OSRM API fails
type ErrDistanceCalculationFailed struct {
	Reason string
}

func (e *ErrDistanceCalculationFailed) Error() string {
	return fmt.Sprintf("distance calculation failed: %s", e.Reason)
}

type osrmCalculator struct {
	baseURL    string
	profile    string
	httpClient *http.Client
	cache      database.DistanceCacheRepository
	batchDelay time.Duration
}

// OSRM returns null for unroutable cells
type osrmTableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

type osrmRouteResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry string  `json:"geometry"`
	} `json:"routes"`
}

// NewOSRMCalculator creates a new OSRM distance calculator with caching.
// Empty baseURL and profile select the public demo server and the foot profile.
func NewOSRMCalculator(baseURL, profile string, cache database.DistanceCacheRepository) DistanceCalculator {
	if baseURL == "" {
		baseURL = DefaultOSRMURL
	}
	if profile == "" {
		profile = DefaultOSRMProfile
	}
	return &osrmCalculator{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:      cache,
		batchDelay: 100 * time.Millisecond,
	}
}

func samePoint(a, b models.Coordinates) bool {
	return models.RoundCoordinate(a.Lat) == models.RoundCoordinate(b.Lat) &&
		models.RoundCoordinate(a.Lng) == models.RoundCoordinate(b.Lng)
}

// maxOSRMCoordinates is the maximum number of coordinates OSRM public API accepts
const maxOSRMCoordinates = 80

func (c *osrmCalculator) GetDistanceMatrix(ctx context.Context, points []models.Coordinates) ([][]DistanceResult, error) {
	n := len(points)
	if n == 0 {
		return [][]DistanceResult{}, nil
	}

	matrix := make([][]DistanceResult, n)
	for i := range matrix {
		matrix[i] = make([]DistanceResult, n)
	}

	missing := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || samePoint(points[i], points[j]) {
				matrix[i][j] = DistanceResult{Reachable: true}
				continue
			}

			cached, err := c.cache.Get(ctx, points[i], points[j])
			if err != nil {
				return nil, err
			}
			if cached != nil {
				matrix[i][j] = DistanceResult{
					DistanceMeters: cached.DistanceMeters,
					DurationSecs:   cached.DurationSecs,
					Reachable:      true,
				}
			} else {
				missing++
			}
		}
	}

	if missing == 0 {
		log.Printf("[OSRM] Distance matrix all cached: points=%d", n)
		return matrix, nil
	}

	log.Printf("[OSRM] Distance matrix request: points=%d cached=%d missing=%d", n, n*n-missing, missing)

	if n <= maxOSRMCoordinates {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		entries, err := c.fetchBlock(ctx, points, all, all, matrix)
		if err != nil {
			return nil, err
		}
		return matrix, c.store(ctx, entries)
	}

	log.Printf("[OSRM] Using batched requests: points=%d batches=%d", n, (n+maxOSRMCoordinates-1)/maxOSRMCoordinates)
	return c.fetchDistanceMatrixBatched(ctx, points, matrix)
}

// fetchBlock requests the sources x destinations block of the matrix in one
// table call and fills it in. Reachable cells are returned for caching.
func (c *osrmCalculator) fetchBlock(ctx context.Context, points []models.Coordinates, sources, destinations []int, matrix [][]DistanceResult) ([]models.DistanceCacheEntry, error) {
	// Unique points of this block in first-seen order
	local := make(map[int]int)
	var blockPoints []models.Coordinates
	for _, idx := range append(append([]int{}, sources...), destinations...) {
		if _, ok := local[idx]; ok {
			continue
		}
		local[idx] = len(blockPoints)
		blockPoints = append(blockPoints, points[idx])
	}

	queryURL := fmt.Sprintf("%s/table/v1/%s/%s?annotations=distance,duration", c.baseURL, c.profile, formatCoords(blockPoints))
	if len(blockPoints) != len(sources) || len(blockPoints) != len(destinations) {
		queryURL += "&sources=" + joinIndices(sources, local) + "&destinations=" + joinIndices(destinations, local)
	}

	var osrmResp osrmTableResponse
	if err := c.getJSON(ctx, queryURL, &osrmResp); err != nil {
		log.Printf("[ERROR] OSRM table request failed: points=%d err=%v", len(blockPoints), err)
		return nil, err
	}
	if osrmResp.Code != "Ok" {
		log.Printf("[ERROR] OSRM returned error code: points=%d code=%s", len(blockPoints), osrmResp.Code)
		return nil, &ErrDistanceCalculationFailed{Reason: fmt.Sprintf("OSRM error: %s %s", osrmResp.Code, osrmResp.Message)}
	}
	if len(osrmResp.Distances) != len(sources) {
		return nil, &ErrDistanceCalculationFailed{Reason: fmt.Sprintf("OSRM returned %d rows, want %d", len(osrmResp.Distances), len(sources))}
	}

	var entries []models.DistanceCacheEntry
	unreachable := 0
	for si, src := range sources {
		row := osrmResp.Distances[si]
		if len(row) != len(destinations) {
			return nil, &ErrDistanceCalculationFailed{Reason: fmt.Sprintf("OSRM returned %d columns, want %d", len(row), len(destinations))}
		}
		for di, dst := range destinations {
			if src == dst || samePoint(points[src], points[dst]) {
				continue
			}
			if row[di] == nil {
				matrix[src][dst] = DistanceResult{}
				unreachable++
				continue
			}
			dur := 0.0
			if si < len(osrmResp.Durations) && di < len(osrmResp.Durations[si]) && osrmResp.Durations[si][di] != nil {
				dur = *osrmResp.Durations[si][di]
			}
			matrix[src][dst] = DistanceResult{DistanceMeters: *row[di], DurationSecs: dur, Reachable: true}
			entries = append(entries, models.DistanceCacheEntry{
				Origin:         points[src],
				Destination:    points[dst],
				DistanceMeters: *row[di],
				DurationSecs:   dur,
			})
		}
	}

	log.Printf("[OSRM] Distance matrix response: points=%d reachable=%d unreachable=%d", len(blockPoints), len(entries), unreachable)
	return entries, nil
}

// fetchDistanceMatrixBatched fetches the matrix block by block so that no
// request carries more than 2*maxOSRMCoordinates points.
func (c *osrmCalculator) fetchDistanceMatrixBatched(ctx context.Context, points []models.Coordinates, matrix [][]DistanceResult) ([][]DistanceResult, error) {
	n := len(points)

	var batches [][]int
	for i := 0; i < n; i += maxOSRMCoordinates {
		end := min(i+maxOSRMCoordinates, n)
		batch := make([]int, end-i)
		for j := i; j < end; j++ {
			batch[j-i] = j
		}
		batches = append(batches, batch)
	}

	var allEntries []models.DistanceCacheEntry
	requestCount := 0
	for bi, batchI := range batches {
		for bj, batchJ := range batches {
			entries, err := c.fetchBlock(ctx, points, batchI, batchJ, matrix)
			if err != nil {
				return nil, err
			}
			allEntries = append(allEntries, entries...)
			requestCount++

			// Rate limit between batch requests
			if bi < len(batches)-1 || bj < len(batches)-1 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(c.batchDelay):
				}
			}
		}
	}

	log.Printf("[OSRM] Batched requests complete: requests=%d entries=%d", requestCount, len(allEntries))
	return matrix, c.store(ctx, allEntries)
}

func (c *osrmCalculator) store(ctx context.Context, entries []models.DistanceCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return c.cache.SetBatch(ctx, entries)
}

// GetRoute fetches the road geometry through the waypoints in order
func (c *osrmCalculator) GetRoute(ctx context.Context, waypoints []models.Coordinates) (*RouteGeometry, error) {
	if len(waypoints) < 2 {
		return nil, &ErrDistanceCalculationFailed{Reason: "a route needs at least two waypoints"}
	}

	queryURL := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=polyline", c.baseURL, c.profile, formatCoords(waypoints))

	var osrmResp osrmRouteResponse
	if err := c.getJSON(ctx, queryURL, &osrmResp); err != nil {
		log.Printf("[ERROR] OSRM route request failed: waypoints=%d err=%v", len(waypoints), err)
		return nil, err
	}
	if osrmResp.Code != "Ok" || len(osrmResp.Routes) == 0 {
		log.Printf("[ERROR] OSRM route returned no route: waypoints=%d code=%s", len(waypoints), osrmResp.Code)
		return nil, &ErrDistanceCalculationFailed{Reason: fmt.Sprintf("OSRM error: %s %s", osrmResp.Code, osrmResp.Message)}
	}

	route := osrmResp.Routes[0]
	coords, _, err := polyline.DecodeCoords([]byte(route.Geometry))
	if err != nil {
		return nil, &ErrDistanceCalculationFailed{Reason: fmt.Sprintf("invalid route geometry: %v", err)}
	}

	points := make([]models.Coordinates, len(coords))
	for i, ll := range coords {
		points[i] = models.Coordinates{Lat: ll[0], Lng: ll[1]}
	}

	log.Printf("[OSRM] Route fetched: waypoints=%d distance=%.0f points=%d", len(waypoints), route.Distance, len(points))
	return &RouteGeometry{
		DistanceMeters: route.Distance,
		DurationSecs:   route.Duration,
		Polyline:       route.Geometry,
		Points:         points,
	}, nil
}

func (c *osrmCalculator) getJSON(ctx context.Context, queryURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return &ErrDistanceCalculationFailed{Reason: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ErrDistanceCalculationFailed{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		// OSRM reports NoRoute and friends with a 400 and a JSON body
		if resp.StatusCode == http.StatusBadRequest && json.Unmarshal(body, out) == nil {
			return nil
		}
		return &ErrDistanceCalculationFailed{
			Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ErrDistanceCalculationFailed{Reason: err.Error()}
	}
	return nil
}

func formatCoords(points []models.Coordinates) string {
	coords := make([]string, len(points))
	for i, p := range points {
		coords[i] = fmt.Sprintf("%.6f,%.6f", p.Lng, p.Lat)
	}
	return strings.Join(coords, ";")
}

func joinIndices(indices []int, local map[int]int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(local[idx])
	}
	return strings.Join(parts, ";")
}
