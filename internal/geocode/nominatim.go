// Package geocode turns GPS coordinates into short place names
// ("City, State") using OpenStreetMap Nominatim.
//
// Nominatim's usage policy allows one request per second and requires an
// identifying User-Agent; both are enforced here. Results are memoised in
// memory by rounded coordinate so a burst of photos from the same spot costs
// one request.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/fpang/autopost/internal/metrics"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "autoinstapost/1.0"
	defaultTimeout   = 8 * time.Second

	memoSize = 1024
	memoTTL  = 24 * time.Hour
)

// reverseResponse is the subset of the /reverse JSON used.
type reverseResponse struct {
	Address map[string]string `json:"address"`
	Error   string            `json:"error,omitempty"`
}

// Nominatim is a rate-limited reverse geocoder.
type Nominatim struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	memo       *expirable.LRU[string, string]
}

// NewNominatim creates a client against the public Nominatim service.
func NewNominatim() *Nominatim {
	return &Nominatim{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		memo:       expirable.NewLRU[string, string](memoSize, nil, memoTTL),
	}
}

// ReverseGeocode returns a place name for the coordinates, or "" when
// Nominatim knows no city/region there. Transport failures and non-2xx
// statuses are errors; callers treat them as "no name".
func (n *Nominatim) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	key := memoKey(lat, lng)
	if name, ok := n.memo.Get(key); ok {
		metrics.GeocodeCacheHits.Inc()
		return name, nil
	}
	metrics.GeocodeCacheMisses.Inc()

	if err := n.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":    {strconv.FormatFloat(lng, 'f', 6, 64)},
		"format": {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)

	start := time.Now()
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("reverse geocode: status %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	name := PlaceName(body.Address)
	n.memo.Add(key, name)
	log.Debug().
		Float64("lat", lat).
		Float64("lng", lng).
		Str("place", name).
		Dur("duration", time.Since(start)).
		Msg("Reverse geocode complete")
	return name, nil
}

// PlaceName builds "City, Region" from a Nominatim address block, using the
// first present of city/town/village/county and of state/country.
func PlaceName(addr map[string]string) string {
	city := firstNonEmpty(addr, "city", "town", "village", "county")
	region := firstNonEmpty(addr, "state", "country")

	var parts []string
	for _, p := range []string{city, region} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

// memoKey rounds to four decimals (about 11 m).
func memoKey(lat, lng float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lng)
}
