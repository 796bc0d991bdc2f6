package distance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenic-route-planner/internal/models"
	"scenic-route-planner/internal/testutil"
)

func newTestCalculator(t *testing.T, baseURL string, cache *testutil.MockDistanceCache) *osrmCalculator {
	t.Helper()
	calc := NewOSRMCalculator(baseURL, "", cache).(*osrmCalculator)
	calc.batchDelay = 0
	return calc
}

func linePoints(n int) []models.Coordinates {
	points := make([]models.Coordinates, n)
	for i := range points {
		points[i] = models.Coordinates{Lat: 40.0 + float64(i)*0.001, Lng: -74.0}
	}
	return points
}

func TestGetDistanceMatrixFetchesAndCaches(t *testing.T) {
	stub := testutil.NewOSRMStub()
	defer stub.Close()
	cache := testutil.NewMockDistanceCache()
	calc := newTestCalculator(t, stub.URL(), cache)

	points := linePoints(3)
	matrix, err := calc.GetDistanceMatrix(context.Background(), points)

	require.NoError(t, err)
	require.Len(t, matrix, 3)
	assert.Equal(t, 1, stub.TableCalls())
	for i := range points {
		require.Len(t, matrix[i], 3)
		assert.True(t, matrix[i][i].Reachable)
		assert.Zero(t, matrix[i][i].DistanceMeters)
		for j := range points {
			if i == j {
				continue
			}
			assert.True(t, matrix[i][j].Reachable)
			assert.InDelta(t, stub.Distance(points[i], points[j]), matrix[i][j].DistanceMeters, 0.01)
			assert.InDelta(t, matrix[i][j].DistanceMeters/(5000.0/3600), matrix[i][j].DurationSecs, 0.01)
		}
	}

	count, _ := cache.Count(context.Background())
	assert.Equal(t, 6, count)

	// Second call is served from the cache
	again, err := calc.GetDistanceMatrix(context.Background(), points)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.TableCalls())
	assert.Equal(t, matrix[0][2].DistanceMeters, again[0][2].DistanceMeters)
}

func TestGetDistanceMatrixPartialCache(t *testing.T) {
	stub := testutil.NewOSRMStub()
	defer stub.Close()
	cache := testutil.NewMockDistanceCache()
	calc := newTestCalculator(t, stub.URL(), cache)

	points := linePoints(2)
	cache.Put(points[0], points[1], 42, 30)

	matrix, err := calc.GetDistanceMatrix(context.Background(), points)

	require.NoError(t, err)
	assert.Equal(t, 1, stub.TableCalls())
	assert.True(t, matrix[1][0].Reachable)
	assert.InDelta(t, stub.Distance(points[1], points[0]), matrix[1][0].DistanceMeters, 0.01)
}

func TestGetDistanceMatrixUnreachableCells(t *testing.T) {
	stub := testutil.NewOSRMStub()
	defer stub.Close()
	cache := testutil.NewMockDistanceCache()
	calc := newTestCalculator(t, stub.URL(), cache)

	points := linePoints(3)
	stub.Block(points[2])

	matrix, err := calc.GetDistanceMatrix(context.Background(), points)

	require.NoError(t, err)
	assert.True(t, matrix[0][1].Reachable)
	assert.False(t, matrix[0][2].Reachable)
	assert.False(t, matrix[2][1].Reachable)
	assert.True(t, matrix[2][2].Reachable, "a point always reaches itself")

	// Unreachable cells are not cached
	count, _ := cache.Count(context.Background())
	assert.Equal(t, 2, count)
}

func TestGetDistanceMatrixBatched(t *testing.T) {
	stub := testutil.NewOSRMStub()
	defer stub.Close()
	cache := testutil.NewMockDistanceCache()
	calc := newTestCalculator(t, stub.URL(), cache)

	points := linePoints(maxOSRMCoordinates + 5)
	matrix, err := calc.GetDistanceMatrix(context.Background(), points)

	require.NoError(t, err)
	assert.Equal(t, 4, stub.TableCalls())

	// Cells from every block
	for _, ij := range [][2]int{{0, 1}, {3, maxOSRMCoordinates + 2}, {maxOSRMCoordinates + 4, 7}, {maxOSRMCoordinates, maxOSRMCoordinates + 4}} {
		i, j := ij[0], ij[1]
		assert.True(t, matrix[i][j].Reachable, "cell %d,%d", i, j)
		assert.InDelta(t, stub.Distance(points[i], points[j]), matrix[i][j].DistanceMeters, 0.01, "cell %d,%d", i, j)
	}

	n := len(points)
	count, _ := cache.Count(context.Background())
	assert.Equal(t, n*(n-1), count)
}

func TestGetDistanceMatrixEmptyAndSingle(t *testing.T) {
	stub := testutil.NewOSRMStub()
	defer stub.Close()
	calc := newTestCalculator(t, stub.URL(), testutil.NewMockDistanceCache())

	empty, err := calc.GetDistanceMatrix(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	single, err := calc.GetDistanceMatrix(context.Background(), linePoints(1))
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.True(t, single[0][0].Reachable)
	assert.Equal(t, 0, stub.TableCalls())
}

func TestGetDistanceMatrixColocatedPoints(t *testing.T) {
	stub := testutil.NewOSRMStub()
	defer stub.Close()
	calc := newTestCalculator(t, stub.URL(), testutil.NewMockDistanceCache())

	points := []models.Coordinates{
		{Lat: 40.7128001, Lng: -74.0060001},
		{Lat: 40.7128002, Lng: -74.0060002},
	}
	matrix, err := calc.GetDistanceMatrix(context.Background(), points)

	require.NoError(t, err)
	assert.True(t, matrix[0][1].Reachable)
	assert.Zero(t, matrix[0][1].DistanceMeters)
	assert.Equal(t, 0, stub.TableCalls())
}

func TestGetDistanceMatrixHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("overloaded"))
	}))
	defer server.Close()
	calc := newTestCalculator(t, server.URL, testutil.NewMockDistanceCache())

	_, err := calc.GetDistanceMatrix(context.Background(), linePoints(2))

	var calcErr *ErrDistanceCalculationFailed
	require.ErrorAs(t, err, &calcErr)
	assert.Contains(t, calcErr.Reason, "HTTP 503")
}

func TestGetDistanceMatrixOSRMErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"InvalidQuery","message":"Query string malformed"}`))
	}))
	defer server.Close()
	calc := newTestCalculator(t, server.URL, testutil.NewMockDistanceCache())

	_, err := calc.GetDistanceMatrix(context.Background(), linePoints(2))

	var calcErr *ErrDistanceCalculationFailed
	require.ErrorAs(t, err, &calcErr)
	assert.Contains(t, calcErr.Reason, "InvalidQuery")
}

func TestGetDistanceMatrixUsesProfile(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":"Ok","distances":[[0,10],[12,0]],"durations":[[0,7],[9,0]]}`))
	}))
	defer server.Close()
	calc := newTestCalculator(t, server.URL, testutil.NewMockDistanceCache())

	matrix, err := calc.GetDistanceMatrix(context.Background(), []models.Coordinates{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}})

	require.NoError(t, err)
	assert.Equal(t, "/table/v1/foot/2.000000,1.000000;4.000000,3.000000", path)
	assert.Equal(t, 10.0, matrix[0][1].DistanceMeters)
	assert.Equal(t, 9.0, matrix[1][0].DurationSecs)
}

func TestGetRoute(t *testing.T) {
	stub := testutil.NewOSRMStub()
	defer stub.Close()
	calc := newTestCalculator(t, stub.URL(), testutil.NewMockDistanceCache())

	waypoints := []models.Coordinates{
		{Lat: 40.71, Lng: -74.0},
		{Lat: 40.72, Lng: -74.01},
		{Lat: 40.73, Lng: -74.0},
	}
	route, err := calc.GetRoute(context.Background(), waypoints)

	require.NoError(t, err)
	assert.Equal(t, 1, stub.RouteCalls())
	assert.InDelta(t, stub.Distance(waypoints[0], waypoints[1])+stub.Distance(waypoints[1], waypoints[2]), route.DistanceMeters, 0.01)
	assert.NotEmpty(t, route.Polyline)
	require.Len(t, route.Points, 3)
	for i, p := range route.Points {
		assert.InDelta(t, waypoints[i].Lat, p.Lat, 1e-5)
		assert.InDelta(t, waypoints[i].Lng, p.Lng, 1e-5)
	}
}

func TestGetRouteNoRoute(t *testing.T) {
	stub := testutil.NewOSRMStub()
	defer stub.Close()
	stub.FailRoutes()
	calc := newTestCalculator(t, stub.URL(), testutil.NewMockDistanceCache())

	_, err := calc.GetRoute(context.Background(), linePoints(2))

	var calcErr *ErrDistanceCalculationFailed
	require.ErrorAs(t, err, &calcErr)
	assert.Contains(t, calcErr.Reason, "NoRoute")
}

func TestGetRouteNeedsTwoWaypoints(t *testing.T) {
	stub := testutil.NewOSRMStub()
	defer stub.Close()
	calc := newTestCalculator(t, stub.URL(), testutil.NewMockDistanceCache())

	_, err := calc.GetRoute(context.Background(), linePoints(1))

	assert.Error(t, err)
	assert.Equal(t, 0, stub.RouteCalls())
}

func TestGetDistanceMatrixContextCancelled(t *testing.T) {
	stub := testutil.NewOSRMStub()
	defer stub.Close()
	calc := newTestCalculator(t, stub.URL(), testutil.NewMockDistanceCache())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := calc.GetDistanceMatrix(ctx, linePoints(3))
	assert.Error(t, err)
}
