// Package api exposes grouping over HTTP together with health and metrics endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/UnknownOlympus/convoy/internal/metrics"
	"github.com/UnknownOlympus/convoy/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the grouping API.
type Server struct {
	log      *slog.Logger
	planner  *service.Planner
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	db       Pinger
}

// NewServer creates a Server. db may be nil when no database is configured.
func NewServer(
	log *slog.Logger,
	planner *service.Planner,
	metrics *metrics.Metrics,
	gatherer prometheus.Gatherer,
	db Pinger,
) *Server {
	return &Server{log: log, planner: planner, metrics: metrics, gatherer: gatherer, db: db}
}

// Handler returns the HTTP handler with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /cluster-group", s.instrument("/cluster-group", s.clusterGroup))
	mux.Handle("POST /cluster-addresses", s.instrument("/cluster-addresses", s.clusterAddresses))
	mux.Handle("GET /healthz", s.instrument("/healthz", s.healthz))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return mux
}

func (s *Server) healthz(writer http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	s.log.DebugContext(ctx, "Performing health checks...")

	status, body := http.StatusOK, "OK"
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, "DB ping failed"
		}
	}

	writer.WriteHeader(status)
	if _, err := writer.Write([]byte(body)); err != nil {
		s.log.ErrorContext(ctx, "failed to write reply", "error", err)
	}

	s.log.DebugContext(ctx, "Health checks completed", "status", status)
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(path string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, req *http.Request) {
		rec := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}
		next(rec, req)
		s.metrics.HTTPRequests.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()
	})
}
