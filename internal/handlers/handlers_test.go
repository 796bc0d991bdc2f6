package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenic-route-planner/internal/database"
	"scenic-route-planner/internal/distance"
	"scenic-route-planner/internal/geocoding"
	"scenic-route-planner/internal/models"
	"scenic-route-planner/internal/planner"
	"scenic-route-planner/internal/routing"
	"scenic-route-planner/internal/testutil"
)

// Mock implementations for testing

type mockGeocoder struct{}

func (m *mockGeocoder) Geocode(ctx context.Context, address string) (*geocoding.GeocodingResult, error) {
	if address == "Atlantis" {
		return nil, &geocoding.ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}
	return &geocoding.GeocodingResult{
		Coords:      models.Coordinates{Lat: 40.70, Lng: -74.00},
		DisplayName: address,
	}, nil
}

func (m *mockGeocoder) GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*geocoding.GeocodingResult, error) {
	return m.Geocode(ctx, address)
}

func (m *mockGeocoder) SearchPOIs(ctx context.Context, center models.Coordinates, radiusMeters float64, category string, limit int) ([]models.Place, error) {
	if category != "park" {
		return nil, nil
	}
	return []models.Place{{
		Name:       "Community Garden",
		Category:   "park",
		Coords:     models.Coordinates{Lat: 40.703, Lng: -73.99},
		Importance: 0.5,
	}}, nil
}

type testServer struct {
	handler *Handler
	router  *chi.Mux
	metrics *Metrics
	stub    *testutil.OSRMStub
}

func setupTestHandler(t *testing.T) *testServer {
	t.Helper()
	stub := testutil.NewOSRMStub()
	t.Cleanup(stub.Close)

	db, err := database.NewJSONStore(filepath.Join(t.TempDir(), "plans.json"), testutil.NewMockDistanceCache())
	require.NoError(t, err)

	calc := distance.NewOSRMCalculator(stub.URL(), "", db.DistanceCache())
	opts := routing.DefaultOptions()
	opts.Trials = 100
	opts.Workers = 2

	p := planner.New(planner.Config{
		Geocoder:  &mockGeocoder{},
		Distances: distance.NewMatrixProvider(calc),
		Routes:    calc,
		Plans:     db.Plans(),
		Options:   opts,
	})

	m := NewMetrics(prometheus.NewRegistry())
	h := New(db, p, m)
	r := chi.NewRouter()
	r.Use(PrometheusMiddleware(m))
	h.Routes(r)

	return &testServer{handler: h, router: r, metrics: m, stub: stub}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrResponse {
	t.Helper()
	var resp ErrResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func validPlanBody() map[string]any {
	return map[string]any{
		"origins":       []map[string]any{{"coords": map[string]float64{"lat": 40.70, "lng": -74.00}}},
		"destinations":  []map[string]any{{"coords": map[string]float64{"lat": 40.70, "lng": -73.98}}},
		"budget_meters": 3000,
		"preferences":   map[string]float64{"Park ": 2},
	}
}

func TestHandleHealthCheck(t *testing.T) {
	s := setupTestHandler(t)

	w := s.do(t, http.MethodGet, "/api/v1/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestPlanLifecycle(t *testing.T) {
	s := setupTestHandler(t)

	w := s.do(t, http.MethodPost, "/api/v1/plans", validPlanBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result models.PlanResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	require.Positive(t, result.ID)
	require.NotEmpty(t, result.Routes)
	assert.Equal(t, 1, result.POICount)
	assert.Equal(t, "Community Garden", result.Routes[0].Waypoints[1].Name)
	assert.InDelta(t, 2*0.5, result.Routes[0].Score, 1e-9, "category names are normalised")
	assert.Equal(t, 1.0, promtest.ToFloat64(s.metrics.PlanCount.WithLabelValues("ok")))

	w = s.do(t, http.MethodGet, "/api/v1/plans", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list PlanListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, defaultPageSize, list.Limit)
	require.Len(t, list.Plans, 1)
	assert.Nil(t, list.Plans[0].Result)

	path := fmt.Sprintf("/api/v1/plans/%d", result.ID)
	w = s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var record models.PlanRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&record))
	require.NotNil(t, record.Result)
	assert.Len(t, record.Result.Routes, len(result.Routes))

	w = s.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).AppCode)

	w = s.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleCreatePlanValidation(t *testing.T) {
	s := setupTestHandler(t)

	tests := []struct {
		name   string
		mutate func(body map[string]any)
	}{
		{"no origins", func(b map[string]any) { delete(b, "origins") }},
		{"zero budget", func(b map[string]any) { b["budget_meters"] = 0 }},
		{"negative weight", func(b map[string]any) { b["preferences"] = map[string]float64{"park": -1} }},
		{"no preferences", func(b map[string]any) { b["preferences"] = map[string]float64{} }},
		{"empty location", func(b map[string]any) { b["destinations"] = []map[string]any{{}} }},
		{"latitude out of range", func(b map[string]any) {
			b["origins"] = []map[string]any{{"coords": map[string]float64{"lat": 91, "lng": 0}}}
		}},
		{"bad trials", func(b map[string]any) { b["options"] = map[string]any{"trials": 0} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validPlanBody()
			tt.mutate(body)

			w := s.do(t, http.MethodPost, "/api/v1/plans", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, "VALIDATION_ERROR", resp.AppCode)
			assert.NotEmpty(t, resp.ErrValidation)
		})
	}
	assert.Equal(t, 0, s.stub.TableCalls())
}

func TestHandleCreatePlanBadJSON(t *testing.T) {
	s := setupTestHandler(t)

	w := s.do(t, http.MethodPost, "/api/v1/plans", `{"origins": [`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).AppCode)
}

func TestHandleCreatePlanGeocodingFailure(t *testing.T) {
	s := setupTestHandler(t)
	body := validPlanBody()
	body["origins"] = []map[string]any{{"address": "Atlantis"}}

	w := s.do(t, http.MethodPost, "/api/v1/plans", body)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "GEOCODING_FAILED", decodeError(t, w).AppCode)
}

func TestHandleCreatePlanNoRoute(t *testing.T) {
	s := setupTestHandler(t)
	s.stub.Block(models.Coordinates{Lat: 40.70, Lng: -73.98})

	w := s.do(t, http.MethodPost, "/api/v1/plans", validPlanBody())

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "NO_ROUTE", decodeError(t, w).AppCode)
	assert.Equal(t, 1.0, promtest.ToFloat64(s.metrics.PlanCount.WithLabelValues("no_route")))
}

func TestHandleListPlansBadQuery(t *testing.T) {
	s := setupTestHandler(t)

	for _, q := range []string{"limit=0", "limit=500", "limit=abc", "offset=-1"} {
		w := s.do(t, http.MethodGet, "/api/v1/plans?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestHandleGetPlanBadID(t *testing.T) {
	s := setupTestHandler(t)

	w := s.do(t, http.MethodGet, "/api/v1/plans/abc", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func scenarioABody() map[string]any {
	return map[string]any{
		"origins":       []int{1},
		"destinations":  []int{2},
		"budget_meters": 1200,
		"scores":        map[string]float64{"10": 10},
		"distances": []map[string]any{
			{"from": 1, "to": 2, "meters": 1000},
			{"from": 2, "to": 1, "meters": 1000},
			{"from": 1, "to": 10, "meters": 500},
			{"from": 10, "to": 1, "meters": 500},
			{"from": 10, "to": 2, "meters": 500},
			{"from": 2, "to": 10, "meters": 500},
		},
		"options": map[string]any{"seed": 7},
	}
}

func TestHandleSolve(t *testing.T) {
	s := setupTestHandler(t)

	w := s.do(t, http.MethodPost, "/api/v1/solve", scenarioABody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SolveResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Paths, 2)
	assert.Equal(t, []models.NodeID{1, 10, 2}, resp.Paths[0].Path)
	assert.Equal(t, 10.0, resp.Paths[0].Score)
	assert.Equal(t, 1000.0, resp.Paths[0].Length)
	assert.Equal(t, []models.NodeID{1, 2}, resp.Paths[1].Path)
	assert.Equal(t, 0, s.stub.TableCalls())
	assert.Equal(t, 1.0, promtest.ToFloat64(s.metrics.SolveCount.WithLabelValues("ok")))
}

func TestHandleSolveNoRoute(t *testing.T) {
	s := setupTestHandler(t)
	body := scenarioABody()
	body["distances"] = []map[string]any{{"from": 1, "to": 10, "meters": 500}}

	w := s.do(t, http.MethodPost, "/api/v1/solve", body)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "NO_ROUTE", decodeError(t, w).AppCode)
}

func TestHandleSolveScoredEndpoint(t *testing.T) {
	s := setupTestHandler(t)
	body := scenarioABody()
	body["scores"] = map[string]float64{"1": 3}

	w := s.do(t, http.MethodPost, "/api/v1/solve", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "INVALID_REQUEST", resp.AppCode)
	assert.Contains(t, resp.ErrorText, "scores")
}

func TestHandleSolveTooManyEndpoints(t *testing.T) {
	s := setupTestHandler(t)
	origins := make([]int, 101)
	for i := range origins {
		origins[i] = 1000 + i
	}

	for _, field := range []string{"origins", "destinations"} {
		body := scenarioABody()
		body[field] = origins

		w := s.do(t, http.MethodPost, "/api/v1/solve", body)

		assert.Equal(t, http.StatusBadRequest, w.Code, field)
		assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).AppCode, field)
	}
	assert.Equal(t, 2.0, promtest.ToFloat64(s.metrics.SolveCount.WithLabelValues("invalid")))
}

func TestHandleSolveNegativeDistance(t *testing.T) {
	s := setupTestHandler(t)
	body := scenarioABody()
	body["distances"] = []map[string]any{{"from": 1, "to": 2, "meters": -5}}

	w := s.do(t, http.MethodPost, "/api/v1/solve", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).AppCode)
}

func TestDistanceCacheEndpoints(t *testing.T) {
	s := setupTestHandler(t)

	w := s.do(t, http.MethodPost, "/api/v1/plans", validPlanBody())
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/distance-cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var before DistanceCacheResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&before))
	assert.Equal(t, 6, before.Entries)

	w = s.do(t, http.MethodDelete, "/api/v1/distance-cache", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/distance-cache", nil)
	assert.JSONEq(t, `{"entries":0}`, w.Body.String())
}

func TestPrometheusMiddlewareUsesRoutePattern(t *testing.T) {
	s := setupTestHandler(t)

	s.do(t, http.MethodGet, "/api/v1/plans/41", nil)
	s.do(t, http.MethodGet, "/api/v1/plans/42", nil)

	count := promtest.ToFloat64(s.metrics.totalRequests.WithLabelValues("/api/v1/plans/{id}", http.MethodGet, "404"))
	assert.Equal(t, 2.0, count)
}

func TestTranslateErrorPassesThroughOtherErrors(t *testing.T) {
	errs := translateError(fmt.Errorf("boom"), nil)

	require.Len(t, errs, 1)
	assert.True(t, strings.Contains(errs[0].Error(), "boom"))
}
