// Package grouping runs the full clustering pipeline over resolved points:
// validation, initial k-means partition, optional size rebalancing and dense
// renumbering into groups with centroids.
package grouping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/convoy/internal/clustering"
	"github.com/UnknownOlympus/convoy/internal/geo"
	"github.com/UnknownOlympus/convoy/internal/models"
	"github.com/UnknownOlympus/convoy/internal/rebalance"
)

// ErrInvalidInput is returned for an empty point set or out-of-range coordinates.
var ErrInvalidInput = errors.New("invalid input")

// Options controls how points are grouped.
type Options struct {
	Clusters  int   // Clusters is the initial k; zero derives it from MaxSize.
	Seed      int64 // Seed drives centroid initialisation.
	Rebalance bool  // Rebalance enables the size-constrained pass.
	MinSize   int   // MinSize is the smallest desired group.
	MaxSize   int   // MaxSize is the largest desired group.
}

// Plan is the outcome of grouping a point set.
type Plan struct {
	Labels []int          // Labels maps point index to Group.Position.
	Groups []models.Group // Groups are ordered by Position.
}

// Identities returns the identities of each group's members, in member order.
func (p *Plan) Identities(points []models.Point) [][]string {
	out := make([][]string, len(p.Groups))
	for i, g := range p.Groups {
		names := make([]string, len(g.Members))
		for j, idx := range g.Members {
			names[j] = points[idx].Identity
		}
		out[i] = names
	}

	return out
}

// Grouper groups points according to its Options. It holds no mutable state
// and is safe for concurrent use.
type Grouper struct {
	log      *slog.Logger
	opts     Options
	kmeans   clustering.KMeans
	observer rebalance.Observer
}

// NewGrouper creates a Grouper. The observer receives rebalancing decisions
// and may be nil.
func NewGrouper(log *slog.Logger, opts Options, observer rebalance.Observer) *Grouper {
	return &Grouper{log: log, opts: opts, observer: observer}
}

// Options returns the options the Grouper was created with.
func (g *Grouper) Options() Options {
	return g.opts
}

// Group partitions points and, when enabled, rebalances the partition.
func (g *Grouper) Group(ctx context.Context, points []models.Point) (*Plan, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no points provided", ErrInvalidInput)
	}
	for i, p := range points {
		if err := geo.Validate(p.Coordinates); err != nil {
			return nil, fmt.Errorf("%w: point %d (%s): %w", ErrInvalidInput, i, p.Identity, err)
		}
	}
	if g.opts.Rebalance && len(points) < g.opts.MinSize {
		return nil, fmt.Errorf("%w: %d points, minimum group size %d",
			rebalance.ErrInfeasible, len(points), g.opts.MinSize)
	}

	k := g.clusterCount(len(points))
	startTime := time.Now()

	partition, err := g.kmeans.Partition(points, k, g.opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to partition points: %w", err)
	}

	g.log.DebugContext(ctx, "Initial partition computed",
		"points", len(points),
		"k", k,
		"iterations", partition.Iterations,
		"inertia", partition.Inertia)

	var result *rebalance.Result
	if g.opts.Rebalance {
		result, err = rebalance.New(g.observer).Rebalance(partition.Labels, points, g.opts.MinSize, g.opts.MaxSize)
	} else {
		result, err = rebalance.Group(partition.Labels, points)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rebalance groups: %w", err)
	}

	plan := &Plan{Labels: result.Labels, Groups: make([]models.Group, len(result.Groups))}
	for i, members := range result.Groups {
		plan.Groups[i] = models.Group{
			Position: i,
			Members:  members,
			Centroid: result.Centroids[i],
		}
	}

	g.log.InfoContext(ctx, "Grouping finished",
		"points", len(points),
		"groups", len(plan.Groups),
		"rebalanced", g.opts.Rebalance,
		"duration", time.Since(startTime))

	return plan, nil
}

// clusterCount picks k: the configured value, or ceil(n / MaxSize) when unset.
func (g *Grouper) clusterCount(n int) int {
	if g.opts.Clusters > 0 {
		return g.opts.Clusters
	}
	if g.opts.MaxSize > 0 {
		return (n + g.opts.MaxSize - 1) / g.opts.MaxSize
	}

	return 1
}
