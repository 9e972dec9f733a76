package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/convoy/internal/models"
	"golang.org/x/time/rate"
)

// Nominatim endpoints of the public OpenStreetMap instance.
const (
	NominatimSearchURL  = "https://nominatim.openstreetmap.org/search"
	NominatimReverseURL = "https://nominatim.openstreetmap.org/reverse"
)

// nominatimUserAgent must identify the application per the Nominatim usage policy:
// https://operations.osmfoundation.org/policies/nominatim/
const nominatimUserAgent = "Convoy-Grouping-Service/1.0 (https://github.com/UnknownOlympus/convoy)"

// NominatimProvider implements Provider using OpenStreetMap's Nominatim API.
type NominatimProvider struct {
	client     HTTPClient
	searchURL  string
	reverseURL string
	limiter    *rate.Limiter
	log        *slog.Logger
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type nominatimResponse struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

type nominatimReverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Common errors for Nominatim provider.
var (
	ErrNominatimEmptyResponse = errors.New("nominatim API returned empty response")
	ErrNominatimInvalidCoords = errors.New("nominatim API returned invalid coordinates")
)

// NewNominatimProvider creates a provider for the public Nominatim instance
// limited to rateLimit requests per second.
func NewNominatimProvider(rateLimit int, log *slog.Logger) *NominatimProvider {
	const timeout = 10
	return NewNominatimProviderWithClient(
		&http.Client{Timeout: timeout * time.Second},
		rate.NewLimiter(rate.Limit(rateLimit), 1),
		log,
	)
}

// NewNominatimProviderWithClient creates a Nominatim provider with a custom HTTP client and limiter.
func NewNominatimProviderWithClient(client HTTPClient, limiter *rate.Limiter, log *slog.Logger) *NominatimProvider {
	return &NominatimProvider{
		client:     client,
		searchURL:  NominatimSearchURL,
		reverseURL: NominatimReverseURL,
		limiter:    limiter,
		log:        log,
	}
}

// Geocode converts an address to coordinates.
//
// Uses a progressive fallback strategy for addresses the index does not know
// in full, trying in order:
// 1. the full address
// 2. the address without its last component
// 3. the address without its last two components
// 4. the first component only
func (np *NominatimProvider) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	np.log.DebugContext(ctx, "Geocoding using Nominatim", "address", address)

	variations := addressFallbacks(address)
	for idx, variation := range variations {
		coords, err := np.search(ctx, variation)
		if err == nil {
			if idx > 0 {
				np.log.InfoContext(ctx, "Geocoded using fallback address",
					"original", address,
					"fallback", variation,
					"fallback_level", idx)
			}
			return coords, nil
		}

		if !errors.Is(err, ErrNominatimEmptyResponse) {
			return nil, err
		}

		np.log.DebugContext(ctx, "Address variation returned no results, trying fallback",
			"variation", variation,
			"fallback_level", idx)
	}

	np.log.WarnContext(ctx, "All address fallbacks exhausted",
		"address", address,
		"variations_tried", len(variations))

	return nil, ErrNominatimEmptyResponse
}

// Reverse returns the display name Nominatim holds for coords.
func (np *NominatimProvider) Reverse(ctx context.Context, coords models.Coordinates) (string, error) {
	np.log.DebugContext(ctx, "Reverse geocoding using Nominatim",
		"lat", coords.Latitude, "lon", coords.Longitude)

	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	query.Set("format", "json")

	body, err := np.get(ctx, np.reverseURL, query)
	if err != nil {
		return "", err
	}

	var result nominatimReverseResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	if result.Error != "" || result.DisplayName == "" {
		return "", ErrNoAddress
	}

	return result.DisplayName, nil
}

// addressFallbacks creates a list of progressively simpler, unique address variations.
func addressFallbacks(address string) []string {
	if address == "" {
		return []string{""}
	}

	seen := make(map[string]bool)
	variations := []string{}
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			variations = append(variations, v)
		}
	}

	add(address)

	parts := strings.Split(address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) > 1 {
		add(strings.Join(parts[:len(parts)-1], ", "))

		const lenComponents = 2
		if len(parts) > lenComponents {
			add(strings.Join(parts[:len(parts)-2], ", "))
		}

		add(parts[0])
	}

	return variations
}

// search performs a single search request without fallback logic.
func (np *NominatimProvider) search(ctx context.Context, address string) (*models.Coordinates, error) {
	query := url.Values{}
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1")

	body, err := np.get(ctx, np.searchURL, query)
	if err != nil {
		return nil, err
	}

	var results []nominatimResponse
	if err = json.Unmarshal(body, &results); err != nil {
		np.log.ErrorContext(ctx, "Failed to parse Nominatim response", "error", err, "body", string(body))
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrNominatimEmptyResponse
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid latitude: %s", ErrNominatimInvalidCoords, results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid longitude: %s", ErrNominatimInvalidCoords, results[0].Lon)
	}

	return &models.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// get waits for the limiter, issues a GET to base with query and returns the body of a 200 response.
func (np *NominatimProvider) get(ctx context.Context, base string, query url.Values) ([]byte, error) {
	if err := np.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	reqURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", nominatimUserAgent)

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("nominatim API returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
