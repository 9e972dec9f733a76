package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/convoy/internal/geocoding"
	"github.com/UnknownOlympus/convoy/internal/metrics"
	"github.com/UnknownOlympus/convoy/internal/models"
	"golang.org/x/sync/errgroup"
)

// Resolution is the outcome of locating one rider.
type Resolution struct {
	Rider models.Rider // Rider carries the coordinates when Err is nil.
	Err   error        // Err is the provider error, nil on success.
}

// ErrNotLocated is reported when a provider returns neither coordinates nor an error.
var ErrNotLocated = errors.New("provider returned no coordinates")

// ResolveFunc is called from a worker goroutine for every rider that needed geocoding.
type ResolveFunc func(ctx context.Context, res Resolution)

// Locator resolves rider addresses through a geocoding provider using a worker pool,
// and reverse-geocodes group centroids.
type Locator struct {
	log           *slog.Logger       // Logger for logging locator activities
	provider      geocoding.Provider // Geocoding provider for external geocoding services
	providerName  string             // Name of the provider for metrics labeling
	metrics       *metrics.Metrics   // Metrics for tracking provider performance
	numWorkers    int                // Number of concurrent workers for processing
	addressPrefix string             // Address prefix for more accurate geocoding (indicating country, city, etc.)
}

// NewLocator creates a new instance of Locator.
func NewLocator(
	log *slog.Logger,
	provider geocoding.Provider,
	providerName string,
	metrics *metrics.Metrics,
	numWorkers int,
	addressPrefix string,
) *Locator {
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &Locator{
		log:           log,
		provider:      provider,
		providerName:  providerName,
		metrics:       metrics,
		numWorkers:    numWorkers,
		addressPrefix: addressPrefix,
	}
}

// Locate resolves every rider without coordinates. Riders that already carry coordinates
// are passed through untouched. The result preserves input order. onResolve may be nil.
func (l *Locator) Locate(ctx context.Context, riders []models.Rider, onResolve ResolveFunc) []Resolution {
	results := make([]Resolution, len(riders))
	pending := make([]int, 0, len(riders))

	for i, rider := range riders {
		results[i] = Resolution{Rider: rider}
		if rider.Coordinates == nil {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return results
	}

	l.log.InfoContext(ctx, "Found riders to geocode. Starting worker pool.",
		"jobs", len(pending),
		"num_workers", l.numWorkers)

	jobs := make(chan int, len(pending))
	var wgr sync.WaitGroup

	for i := 1; i <= l.numWorkers; i++ {
		wgr.Add(1)
		go l.worker(ctx, i, &wgr, jobs, results, onResolve)
	}

	for _, idx := range pending {
		jobs <- idx
	}
	close(jobs)

	wgr.Wait()
	l.log.InfoContext(ctx, "Geocoding batch finished")

	return results
}

// worker geocodes the riders at the indices received on jobs. Each index is owned by
// exactly one worker, so results can be written without locking.
func (l *Locator) worker(
	ctx context.Context,
	idx int,
	wg *sync.WaitGroup,
	jobs <-chan int,
	results []Resolution,
	onResolve ResolveFunc,
) {
	defer wg.Done()
	for job := range jobs {
		l.metrics.ActiveWorkers.Inc()
		res := &results[job]
		l.log.DebugContext(ctx, "Processing rider", "worker", idx, "rider", res.Rider.ID)

		startTime := time.Now()
		coords, err := l.provider.Geocode(ctx, l.addressPrefix+res.Rider.Address)
		duration := time.Since(startTime).Seconds()
		l.metrics.RequestSeconds.WithLabelValues(l.providerName, "geocode").Observe(duration)
		if err == nil && coords == nil {
			err = ErrNotLocated
		}

		if err != nil {
			l.log.ErrorContext(ctx, "Failed to geocode", "worker", idx, "rider", res.Rider.ID, "error", err)
			l.metrics.GeocodeProcessed.WithLabelValues("failure").Inc()
			l.metrics.APIErrors.Inc()
			res.Err = err
		} else {
			l.metrics.GeocodeProcessed.WithLabelValues("success").Inc()
			res.Rider.Coordinates = coords
		}

		if onResolve != nil {
			onResolve(ctx, *res)
		}

		l.metrics.ActiveWorkers.Dec()
	}
}

// Describe fills the Address of every group by reverse-geocoding its centroid.
// Failures are logged and leave the address empty.
func (l *Locator) Describe(ctx context.Context, groups []models.Group) {
	var eg errgroup.Group
	eg.SetLimit(l.numWorkers)

	for i := range groups {
		eg.Go(func() error {
			startTime := time.Now()
			address, err := l.provider.Reverse(ctx, groups[i].Centroid)
			l.metrics.RequestSeconds.WithLabelValues(l.providerName, "reverse").
				Observe(time.Since(startTime).Seconds())
			if err != nil {
				l.metrics.APIErrors.Inc()
				l.log.WarnContext(ctx, "Failed to describe group",
					"group", groups[i].Position,
					"centroid", groups[i].Centroid,
					"error", err)
				return nil
			}
			groups[i].Address = address

			return nil
		})
	}

	_ = eg.Wait()
}
