package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	GeocodeProcessed *prometheus.CounterVec
	APIErrors        prometheus.Counter
	RequestSeconds   *prometheus.HistogramVec
	ActiveWorkers    prometheus.Gauge
	GroupingSeconds  prometheus.Histogram
	GroupSize        prometheus.Histogram
	RebalanceActions *prometheus.CounterVec
	RunsSaved        *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		GeocodeProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "convoy_geocoding_processed_total",
			Help: "Total number of addresses processed by the geocoding worker pool.",
		}, []string{"status"}),
		APIErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "convoy_provider_api_errors_total",
			Help: "Total number of errors received from the geocoding provider API.",
		}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "convoy_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		ActiveWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "convoy_active_workers",
			Help: "Current number of active workers geocoding addresses.",
		}),
		GroupingSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "convoy_grouping_duration_seconds",
			Help:    "Duration of the clustering and rebalancing pipeline.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		GroupSize: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "convoy_group_size",
			Help:    "Number of members in each produced group.",
			Buckets: prometheus.LinearBuckets(1, 1, 12),
		}),
		RebalanceActions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "convoy_rebalance_actions_total",
			Help: "Decisions taken by the rebalancer, by action.",
		}, []string{"action"}),
		RunsSaved: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "convoy_runs_total",
			Help: "Grouping runs of the batch service, by outcome.",
		}, []string{"status"}),
		HTTPRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "convoy_http_requests_total",
			Help: "HTTP requests served by the grouping API.",
		}, []string{"path", "code"}),
	}
}

// RebalanceObserver counts rebalancer decisions. It satisfies rebalance.Observer.
type RebalanceObserver struct {
	actions *prometheus.CounterVec
}

// RebalanceObserver returns an observer recording into RebalanceActions.
func (m *Metrics) RebalanceObserver() *RebalanceObserver {
	return &RebalanceObserver{actions: m.RebalanceActions}
}

func (ro *RebalanceObserver) Split(_, _ int, _ []int) {
	ro.actions.WithLabelValues("split").Inc()
}

func (ro *RebalanceObserver) Merge(_, _, _ int, _ float64) {
	ro.actions.WithLabelValues("merge").Inc()
}

func (ro *RebalanceObserver) Keep(_, _ int) {
	ro.actions.WithLabelValues("keep").Inc()
}

func (ro *RebalanceObserver) Isolated(_, _ int) {
	ro.actions.WithLabelValues("isolated").Inc()
}
