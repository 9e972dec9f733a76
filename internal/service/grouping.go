package service

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/UnknownOlympus/convoy/internal/grouping"
	"github.com/UnknownOlympus/convoy/internal/metrics"
	"github.com/UnknownOlympus/convoy/internal/models"
	"github.com/UnknownOlympus/convoy/internal/plotting"
	"github.com/UnknownOlympus/convoy/internal/rebalance"
	"github.com/UnknownOlympus/convoy/internal/repository"
)

// BatchLimit is the maximum number of riders fetched per run.
const BatchLimit = 100

// GroupingService periodically groups pending riders and stores the result.
type GroupingService struct {
	log          *slog.Logger         // Logger for logging service activities
	repo         repository.Interface // Interface for data repository access
	planner      *Planner             // Planner geocodes and groups riders
	locator      *Locator             // Locator resolves addresses and group centroids
	metrics      *metrics.Metrics     // Metrics for tracking service performance
	pollInterval time.Duration        // Interval for polling pending riders
	plotDir      string               // Directory receiving a plot per saved run, empty to disable
}

// NewGroupingService creates a new instance of GroupingService.
func NewGroupingService(
	log *slog.Logger,
	repo repository.Interface,
	planner *Planner,
	locator *Locator,
	metrics *metrics.Metrics,
	pollInterval time.Duration,
	plotDir string,
) *GroupingService {
	return &GroupingService{
		log:          log,
		repo:         repo,
		planner:      planner,
		locator:      locator,
		metrics:      metrics,
		pollInterval: pollInterval,
		plotDir:      plotDir,
	}
}

// Run starts the grouping service, which periodically polls for pending riders.
// It listens for a cancellation signal from the context to gracefully stop the service.
func (gs *GroupingService) Run(ctx context.Context) {
	ticker := time.NewTicker(gs.pollInterval)
	defer ticker.Stop()

	gs.log.InfoContext(ctx, "Grouping service started...")

	for {
		select {
		case <-ctx.Done():
			gs.log.InfoContext(ctx, "Grouping service stopped.")
			return
		case <-ticker.C:
			gs.log.InfoContext(ctx, "Polling for pending riders...")
			gs.processBatch(ctx)
		}
	}
}

// processBatch fetches pending riders, geocodes the ones without coordinates,
// groups the located riders and saves the run.
func (gs *GroupingService) processBatch(ctx context.Context) {
	riders, err := gs.repo.FetchPendingRiders(ctx, BatchLimit)
	if err != nil {
		gs.log.ErrorContext(ctx, "Failed to fetch riders", "error", err)
		gs.metrics.RunsSaved.WithLabelValues("failure").Inc()
		return
	}
	if len(riders) == 0 {
		gs.log.InfoContext(ctx, "No riders to process.")
		return
	}

	results := gs.locator.Locate(ctx, riders, gs.store)
	located, dropped := Located(ctx, gs.log, results)

	minSize := gs.planner.Options().MinSize
	if len(located) == 0 || len(located) < minSize {
		gs.log.InfoContext(ctx, "Not enough located riders to form a group, skipping run",
			"located", len(located), "dropped", dropped, "min_size", minSize)
		gs.metrics.RunsSaved.WithLabelValues("skipped").Inc()
		return
	}

	plan, err := gs.planner.Group(ctx, Points(located))
	if err != nil {
		status := "failure"
		if errors.Is(err, rebalance.ErrInfeasible) || errors.Is(err, grouping.ErrInvalidInput) {
			status = "skipped"
		}
		gs.log.ErrorContext(ctx, "Failed to group riders", "error", err)
		gs.metrics.RunsSaved.WithLabelValues(status).Inc()
		return
	}

	gs.locator.Describe(ctx, plan.Groups)

	ids := make([]int, len(located))
	for i, rider := range located {
		ids[i] = rider.ID
	}
	run := models.NewRun(ids, plan.Groups)

	if err = gs.repo.SaveRun(ctx, *run); err != nil {
		gs.log.ErrorContext(ctx, "Failed to save run", "run", run.ID, "error", err)
		gs.metrics.RunsSaved.WithLabelValues("failure").Inc()
		return
	}

	gs.metrics.RunsSaved.WithLabelValues("success").Inc()
	gs.log.InfoContext(ctx, "Processing batch finished",
		"run", run.ID, "riders", len(located), "groups", len(run.Groups), "dropped", dropped)

	gs.plot(ctx, run, Points(located))
}

// plot writes the run as a PNG into plotDir. Failures are logged only.
func (gs *GroupingService) plot(ctx context.Context, run *models.Run, points []models.Point) {
	if gs.plotDir == "" {
		return
	}

	path := filepath.Join(gs.plotDir, run.ID.String()+".png")
	title := "Run " + run.CreatedAt.Format(time.RFC3339)
	if err := plotting.Save(path, title, points, run.Groups); err != nil {
		gs.log.WarnContext(ctx, "Failed to plot run", "run", run.ID, "path", path, "error", err)
		return
	}
	gs.log.DebugContext(ctx, "Run plotted", "run", run.ID, "path", path)
}

// store persists the outcome of geocoding one rider.
func (gs *GroupingService) store(ctx context.Context, res Resolution) {
	if res.Err != nil {
		if err := gs.repo.IncrementFailureCount(ctx, res.Rider.ID, res.Err.Error()); err != nil {
			gs.log.ErrorContext(ctx, "Could not update failure count for rider", "rider", res.Rider.ID, "error", err)
		}
		return
	}

	if err := gs.repo.UpdateRiderCoordinates(ctx, res.Rider.ID, *res.Rider.Coordinates); err != nil {
		gs.log.ErrorContext(ctx, "Failed to update coordinates for rider", "rider", res.Rider.ID, "error", err)
		return
	}
	gs.log.DebugContext(ctx, "Rider successfully located", "rider", res.Rider.ID)
}
