package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"scenic-route-planner/internal/models"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	userAgent           = "ScenicRoutePlanner/1.0"

	// earthRadiusMeters is the mean radius used to turn meters into angles
	earthRadiusMeters = 6371010.0
)

// GeocodingResult contains the result of a geocoding operation
type GeocodingResult struct {
	Coords      models.Coordinates
	DisplayName string
}

// Geocoder resolves addresses and searches places around a point
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodingResult, error)
	GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*GeocodingResult, error)
	SearchPOIs(ctx context.Context, center models.Coordinates, radiusMeters float64, category string, limit int) ([]models.Place, error)
}

// ErrGeocodingFailed is returned when an address cannot be geocoded
type ErrGeocodingFailed struct {
	Address string
	Reason  string
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for address: %s - %s", e.Address, e.Reason)
}

type nominatimGeocoder struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *time.Ticker
}

type nominatimResponse struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Category    string  `json:"category"`
	Type        string  `json:"type"`
	Importance  float64 `json:"importance"`
}

// NewNominatimGeocoder creates a Nominatim client limited to one request per
// second, as the public usage policy asks. An empty baseURL selects the public server.
func NewNominatimGeocoder(baseURL string) Geocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return &nominatimGeocoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		rateLimiter: time.NewTicker(1 * time.Second),
	}
}

func (g *nominatimGeocoder) wait(ctx context.Context) error {
	select {
	case <-g.rateLimiter.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *nominatimGeocoder) search(ctx context.Context, params url.Values) ([]nominatimResponse, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	params.Set("format", "jsonv2")
	queryURL := fmt.Sprintf("%s/search?%s", g.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}
	return results, nil
}

func (g *nominatimGeocoder) Geocode(ctx context.Context, address string) (*GeocodingResult, error) {
	log.Printf("[NOMINATIM] Geocode request: address=%s", address)

	results, err := g.search(ctx, url.Values{"q": {address}, "limit": {"1"}})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[ERROR] Geocoding request failed: address=%s err=%v", address, err)
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error()}
	}

	if len(results) == 0 {
		log.Printf("[ERROR] No geocoding results found: address=%s", address)
		return nil, &ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}

	coords, err := parseLatLon(results[0])
	if err != nil {
		log.Printf("[ERROR] Invalid coordinates in geocoding response: address=%s err=%v", address, err)
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error()}
	}

	log.Printf("[NOMINATIM] Geocode response: address=%s lat=%.6f lng=%.6f display_name=%s", address, coords.Lat, coords.Lng, results[0].DisplayName)
	return &GeocodingResult{Coords: coords, DisplayName: results[0].DisplayName}, nil
}

func (g *nominatimGeocoder) GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*GeocodingResult, error) {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		result, err := g.Geocode(ctx, address)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		if i < maxRetries-1 {
			backoff := time.Duration(1<<uint(i)) * time.Second
			log.Printf("[NOMINATIM] Retry %d/%d: address=%s backoff=%v err=%v", i+1, maxRetries, address, backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	log.Printf("[ERROR] Geocoding failed after %d retries: address=%s err=%v", maxRetries, address, lastErr)
	return nil, lastErr
}

// SearchPOIs finds places of one category inside the bounding box of a circle
func (g *nominatimGeocoder) SearchPOIs(ctx context.Context, center models.Coordinates, radiusMeters float64, category string, limit int) ([]models.Place, error) {
	params := url.Values{
		"q":       {category},
		"viewbox": {Viewbox(center, radiusMeters)},
		"bounded": {"1"},
		"limit":   {strconv.Itoa(limit)},
	}
	log.Printf("[NOMINATIM] POI search: category=%s center=(%.6f,%.6f) radius=%.0f limit=%d", category, center.Lat, center.Lng, radiusMeters, limit)

	results, err := g.search(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[ERROR] POI search failed: category=%s err=%v", category, err)
		return nil, &ErrGeocodingFailed{Address: category, Reason: err.Error()}
	}

	places := make([]models.Place, 0, len(results))
	for _, r := range results {
		coords, err := parseLatLon(r)
		if err != nil {
			log.Printf("[ERROR] Skipping POI with invalid coordinates: category=%s name=%s err=%v", category, r.Name, err)
			continue
		}
		places = append(places, models.Place{
			Name:       placeName(r),
			Category:   category,
			Coords:     coords,
			Importance: r.Importance,
		})
	}

	log.Printf("[NOMINATIM] POI search response: category=%s results=%d", category, len(places))
	return places, nil
}

// Viewbox returns the Nominatim viewbox "left,top,right,bottom" that bounds a
// circle of radiusMeters around center.
func Viewbox(center models.Coordinates, radiusMeters float64) string {
	circle := s2.CapFromCenterAngle(
		s2.PointFromLatLng(s2.LatLngFromDegrees(center.Lat, center.Lng)),
		s1.Angle(radiusMeters/earthRadiusMeters),
	)
	rect := circle.RectBound()
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
		rect.Lo().Lng.Degrees(), rect.Hi().Lat.Degrees(),
		rect.Hi().Lng.Degrees(), rect.Lo().Lat.Degrees())
}

func parseLatLon(r nominatimResponse) (models.Coordinates, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("invalid latitude %q", r.Lat)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("invalid longitude %q", r.Lon)
	}
	return models.Coordinates{Lat: lat, Lng: lng}, nil
}

// placeName prefers the short name and falls back to the first part of the display name
func placeName(r nominatimResponse) string {
	if r.Name != "" {
		return r.Name
	}
	name, _, _ := strings.Cut(r.DisplayName, ",")
	return strings.TrimSpace(name)
}
