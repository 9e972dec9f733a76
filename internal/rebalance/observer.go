package rebalance

import (
	"context"
	"log/slog"
)

// Observer receives the decisions taken by a Rebalancer. Cluster labels refer
// to the input assignment; targets refer to the position in the output list.
type Observer interface {
	// Split is called for an oversized cluster with the sizes of its chunks.
	Split(label, size int, chunks []int)
	// Merge is called when an undersized cluster joins the group at target.
	Merge(label, size, target int, distanceKm float64)
	// Keep is called for a cluster copied through unchanged.
	Keep(label, size int)
	// Isolated is called for an undersized cluster that had no group to join.
	Isolated(label, size int)
}

// NopObserver discards all diagnostics.
type NopObserver struct{}

func (NopObserver) Split(int, int, []int) {}

func (NopObserver) Merge(int, int, int, float64) {}

func (NopObserver) Keep(int, int) {}

func (NopObserver) Isolated(int, int) {}

// Observers fans diagnostics out to several observers in order.
type Observers []Observer

func (o Observers) Split(label, size int, chunks []int) {
	for _, obs := range o {
		obs.Split(label, size, chunks)
	}
}

func (o Observers) Merge(label, size, target int, distanceKm float64) {
	for _, obs := range o {
		obs.Merge(label, size, target, distanceKm)
	}
}

func (o Observers) Keep(label, size int) {
	for _, obs := range o {
		obs.Keep(label, size)
	}
}

func (o Observers) Isolated(label, size int) {
	for _, obs := range o {
		obs.Isolated(label, size)
	}
}

// LogObserver writes rebalancing decisions to a structured logger at debug level.
// Isolated clusters are logged as warnings since they leave a group below the minimum.
type LogObserver struct {
	ctx context.Context
	log *slog.Logger
}

// NewLogObserver creates a LogObserver bound to ctx for log correlation.
func NewLogObserver(ctx context.Context, log *slog.Logger) *LogObserver {
	return &LogObserver{ctx: ctx, log: log}
}

func (lo *LogObserver) Split(label, size int, chunks []int) {
	lo.log.DebugContext(lo.ctx, "Splitting oversized cluster", "label", label, "size", size, "chunks", chunks)
}

func (lo *LogObserver) Merge(label, size, target int, distanceKm float64) {
	lo.log.DebugContext(lo.ctx, "Merging undersized cluster",
		"label", label,
		"size", size,
		"target", target,
		"distance_km", distanceKm)
}

func (lo *LogObserver) Keep(label, size int) {
	lo.log.DebugContext(lo.ctx, "Keeping cluster", "label", label, "size", size)
}

func (lo *LogObserver) Isolated(label, size int) {
	lo.log.WarnContext(lo.ctx, "Undersized cluster has no group to merge into", "label", label, "size", size)
}
