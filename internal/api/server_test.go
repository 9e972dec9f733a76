package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/UnknownOlympus/convoy/internal/api"
	"github.com/UnknownOlympus/convoy/internal/grouping"
	"github.com/UnknownOlympus/convoy/internal/metrics"
	"github.com/UnknownOlympus/convoy/internal/models"
	"github.com/UnknownOlympus/convoy/internal/service"
	"github.com/UnknownOlympus/convoy/test/mocks"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const twoNeighbourhoods = `[
	{"name": "a1", "lat": 50.4501, "lng": 30.5234},
	{"name": "a2", "lat": 50.4502, "lng": 30.5235},
	{"name": "a3", "lat": 50.4503, "lng": 30.5236},
	{"name": "b1", "lat": 49.8397, "lng": 24.0297},
	{"name": "b2", "lat": 49.8398, "lng": 24.0298},
	{"name": "b3", "lat": 49.8399, "lng": 24.0299}
]`

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

type fixture struct {
	handler  http.Handler
	metrics  *metrics.Metrics
	provider *mocks.Provider
}

func newFixture(t *testing.T, opts grouping.Options, db api.Pinger) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(reg)
	provider := mocks.NewProvider(t)

	locator := service.NewLocator(logger, provider, "mock", appMetrics, 2, "")
	grouper := grouping.NewGrouper(logger, opts, appMetrics.RebalanceObserver())
	planner := service.NewPlanner(logger, locator, grouper, appMetrics)

	return fixture{
		handler:  api.NewServer(logger, planner, appMetrics, reg, db).Handler(),
		metrics:  appMetrics,
		provider: provider,
	}
}

func rebalancing() grouping.Options {
	return grouping.Options{Clusters: 2, Seed: 42, Rebalance: true, MinSize: 4, MaxSize: 6}
}

func fixedK() grouping.Options {
	return grouping.Options{Clusters: 2, Seed: 42}
}

func post(t *testing.T, handler http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequestWithContext(t.Context(), http.MethodPost, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

type groupsBody struct {
	Groups    [][]string `json:"groups"`
	Labels    []int      `json:"labels"`
	Centroids []struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"centroids"`
	Addresses []string `json:"addresses"`
	Dropped   []string `json:"dropped"`
	Error     string   `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) groupsBody {
	t.Helper()
	var body groupsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func TestClusterGroup(t *testing.T) {
	t.Parallel()

	t.Run("rebalancing merges two small neighbourhoods", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, rebalancing(), nil)

		rec := post(t, fx.handler, "/cluster-group", twoNeighbourhoods)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		body := decode(t, rec)
		require.Len(t, body.Groups, 1)
		assert.ElementsMatch(t, []string{"a1", "a2", "a3", "b1", "b2", "b3"}, body.Groups[0])
		assert.Equal(t, []int{0, 0, 0, 0, 0, 0}, body.Labels)
		require.Len(t, body.Centroids, 1)
		assert.InDelta(t, 1, testutil.ToFloat64(fx.metrics.RebalanceActions.WithLabelValues("merge")), 0)
		assert.InDelta(t, 1,
			testutil.ToFloat64(fx.metrics.HTTPRequests.WithLabelValues("/cluster-group", "200")), 0)
	})

	t.Run("fixed k keeps neighbourhoods apart", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, fixedK(), nil)

		rec := post(t, fx.handler, "/cluster-group", twoNeighbourhoods)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		require.Len(t, body.Groups, 2)
		assert.ElementsMatch(t, [][]string{{"a1", "a2", "a3"}, {"b1", "b2", "b3"}}, body.Groups)
	})

	t.Run("geojson", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, fixedK(), nil)

		rec := post(t, fx.handler, "/cluster-group?format=geojson", twoNeighbourhoods)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
		fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
		require.NoError(t, err)
		require.Len(t, fc.Features, 8)
		assert.Equal(t, "a1", fc.Features[0].Properties["name"])
		assert.Equal(t, true, fc.Features[7].Properties["centroid"])
	})

	t.Run("png", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, fixedK(), nil)

		rec := post(t, fx.handler, "/cluster-group?format=png", twoNeighbourhoods)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	})

	tests := []struct {
		name   string
		target string
		body   string
		status int
		errMsg string
	}{
		{"empty list", "/cluster-group", `[]`, http.StatusBadRequest, "no points provided"},
		{"malformed json", "/cluster-group", `{"name":`, http.StatusBadRequest, "malformed body"},
		{"missing coordinate", "/cluster-group", `[{"name":"a","lat":1}]`, http.StatusBadRequest, "missing lat or lng"},
		{
			"out of range",
			"/cluster-group",
			`[{"name":"a","lat":91,"lng":0},{"name":"b","lat":0,"lng":0},{"name":"c","lat":0,"lng":0},{"name":"d","lat":0,"lng":0}]`,
			http.StatusBadRequest,
			"invalid input",
		},
		{"unknown format", "/cluster-group?format=svg", twoNeighbourhoods, http.StatusBadRequest, "unknown format"},
		{
			"infeasible",
			"/cluster-group",
			`[{"name":"a","lat":1,"lng":1},{"name":"b","lat":1,"lng":1},{"name":"c","lat":1,"lng":1}]`,
			http.StatusUnprocessableEntity,
			"not enough points",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fx := newFixture(t, rebalancing(), nil)

			rec := post(t, fx.handler, tt.target, tt.body)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decode(t, rec).Error, tt.errMsg)
		})
	}

	t.Run("wrong method", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, rebalancing(), nil)
		req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/cluster-group", nil)
		rec := httptest.NewRecorder()

		fx.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestClusterAddresses(t *testing.T) {
	t.Parallel()

	t.Run("groups located addresses", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, rebalancing(), nil)
		located := map[string]models.Coordinates{
			"a": {Latitude: 50.4501, Longitude: 30.5234},
			"b": {Latitude: 50.4502, Longitude: 30.5235},
			"c": {Latitude: 50.4503, Longitude: 30.5236},
			"d": {Latitude: 50.4504, Longitude: 30.5237},
		}
		for address, coords := range located {
			fx.provider.On("Geocode", mock.Anything, address).Return(&coords, nil).Once()
		}
		fx.provider.On("Geocode", mock.Anything, "nowhere").Return(nil, assert.AnError).Once()
		fx.provider.On("Reverse", mock.Anything, mock.Anything).Return("Khreshchatyk", nil).Once()

		rec := post(t, fx.handler, "/cluster-addresses", `{"addresses":["a","b","nowhere","c","d"]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		require.Len(t, body.Groups, 1)
		assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, body.Groups[0])
		assert.Equal(t, []string{"Khreshchatyk"}, body.Addresses)
		assert.Equal(t, []string{"nowhere"}, body.Dropped)
	})

	t.Run("too few located", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, rebalancing(), nil)
		fx.provider.On("Geocode", mock.Anything, mock.Anything).Return(nil, assert.AnError).Twice()

		rec := post(t, fx.handler, "/cluster-addresses", `{"addresses":["x","y"]}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, rebalancing(), nil)

		rec := post(t, fx.handler, "/cluster-addresses", `["a"]`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("lookup not configured", func(t *testing.T) {
		t.Parallel()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		reg := prometheus.NewRegistry()
		appMetrics := metrics.NewMetrics(reg)
		planner := service.NewPlanner(logger, nil, grouping.NewGrouper(logger, rebalancing(), nil), appMetrics)
		handler := api.NewServer(logger, planner, appMetrics, reg, nil).Handler()

		rec := post(t, handler, "/cluster-addresses", `{"addresses":["a","b","c","d"]}`)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, service.ErrLookupUnavailable.Error(), decode(t, rec).Error)
	})
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		db     api.Pinger
		status int
		body   string
	}{
		{"no database", nil, http.StatusOK, "OK"},
		{"database up", fakePinger{}, http.StatusOK, "OK"},
		{"database down", fakePinger{err: assert.AnError}, http.StatusServiceUnavailable, "DB ping failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fx := newFixture(t, rebalancing(), tt.db)
			req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()

			fx.handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, rebalancing(), nil)
	post(t, fx.handler, "/cluster-group", `[]`)

	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `convoy_http_requests_total{code="400",path="/cluster-group"} 1`)
}
