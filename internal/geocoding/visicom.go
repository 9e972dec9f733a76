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

// VisicomBaseURL -- Visicom API base URL.
const VisicomBaseURL = "https://api.visicom.ua/data-api/5.0/uk/geocode.json"

// VisicomProvider implements geocoding using Visicom API.
type VisicomProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the Visicom API
	apiKey  string        // API key with geocoding access
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Rate limiter
}

// Common errors for Visicom provider.
var (
	ErrVisicomEmptyResponse = errors.New("visicom API returned empty response")
	ErrVisicomEmptyAddress  = errors.New("visicom provider got empty address")
	ErrVisicomInvalidCoords = errors.New("visicom API returned invalid coordinates")
	ErrVisicomUnauthorized  = errors.New("visicom API unauthorized (invalid API key)")
)

// visicomFeature is the single feature returned with limit=1.
type visicomFeature struct {
	Properties struct {
		Name       string `json:"name"`
		Settlement string `json:"settlement"`
		Street     string `json:"street"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat]
	} `json:"geo_centroid"`
}

// NewVisicomProvider creates a new Visicom geocoding provider.
func NewVisicomProvider(apiKey string, rateLimit int, log *slog.Logger) *VisicomProvider {
	const timeout = 10

	return NewVisicomProviderWithClient(
		&http.Client{Timeout: timeout * time.Second},
		apiKey,
		rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		log,
	)
}

// NewVisicomProviderWithClient allows injecting custom HTTP client.
func NewVisicomProviderWithClient(
	client HTTPClient,
	apiKey string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *VisicomProvider {
	return &VisicomProvider{
		client:  client,
		baseURL: VisicomBaseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: limiter,
	}
}

// Geocode converts address into geographic coordinates using Visicom API.
func (vp *VisicomProvider) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	const coordsListLength = 2

	if address == "" {
		return nil, ErrVisicomEmptyAddress
	}

	vp.log.DebugContext(ctx, "Geocoding using Visicom", "address", address)

	query := url.Values{}
	query.Set("text", address)

	feature, err := vp.lookup(ctx, query)
	if err != nil {
		return nil, err
	}

	coords := feature.Geometry.Coordinates
	if len(coords) == 0 {
		return nil, ErrVisicomEmptyResponse
	}
	if len(coords) != coordsListLength {
		return nil, ErrVisicomInvalidCoords
	}

	return &models.Coordinates{Latitude: coords[1], Longitude: coords[0]}, nil
}

// Reverse returns the nearest named object to coords, qualified by its settlement.
func (vp *VisicomProvider) Reverse(ctx context.Context, coords models.Coordinates) (string, error) {
	vp.log.DebugContext(ctx, "Reverse geocoding using Visicom", "lat", coords.Latitude, "lon", coords.Longitude)

	query := url.Values{}
	query.Set("near", strconv.FormatFloat(coords.Longitude, 'f', -1, 64)+","+
		strconv.FormatFloat(coords.Latitude, 'f', -1, 64))

	feature, err := vp.lookup(ctx, query)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{feature.Properties.Street, feature.Properties.Name, feature.Properties.Settlement} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoAddress
	}

	return strings.Join(parts, ", "), nil
}

// lookup issues a rate limited request with limit=1 and decodes the returned feature.
func (vp *VisicomProvider) lookup(ctx context.Context, query url.Values) (*visicomFeature, error) {
	if err := vp.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	reqURL, err := url.Parse(vp.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query.Set("limit", "1")
	query.Set("key", vp.apiKey)
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := vp.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrVisicomUnauthorized
	default:
		body, _ := io.ReadAll(resp.Body)
		vp.log.ErrorContext(ctx, "Visicom API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("visicom API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var feature visicomFeature
	if err = json.Unmarshal(body, &feature); err != nil {
		return nil, fmt.Errorf("failed to decode visicom response: %w", err)
	}

	return &feature, nil
}
