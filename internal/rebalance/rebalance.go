package rebalance

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/UnknownOlympus/convoy/internal/geo"
	"github.com/UnknownOlympus/convoy/internal/models"
)

// Common errors for the rebalancer.
var (
	ErrInfeasible     = errors.New("not enough points to satisfy the minimum group size")
	ErrInvalidBounds  = errors.New("invalid group size bounds")
	ErrLengthMismatch = errors.New("labels and points differ in length")
)

// Result is a dense label assignment together with its groups.
type Result struct {
	Labels    []int                // Labels maps point index to a group id in [0, len(Groups)).
	Groups    [][]int              // Groups holds the point indices of each group id.
	Centroids []models.Coordinates // Centroids holds the mean coordinate of each group.
}

// Rebalancer splits and merges clusters to fit size bounds, reporting every
// decision to its Observer.
type Rebalancer struct {
	observer Observer
}

// pending is an undersized split remainder waiting to be merged after the main pass.
type pending struct {
	label   int
	indices []int
}

// New creates a Rebalancer. A nil observer discards diagnostics.
func New(observer Observer) *Rebalancer {
	if observer == nil {
		observer = NopObserver{}
	}

	return &Rebalancer{observer: observer}
}

// Rebalance runs the size-constrained pass with diagnostics discarded.
func Rebalance(labels []int, points []models.Point, minSize, maxSize int) (*Result, error) {
	return New(nil).Rebalance(labels, points, minSize, maxSize)
}

// Rebalance revises labels so that groups hold between minSize and maxSize
// points where a single pass allows it. It fails with ErrInfeasible when there
// are fewer points than minSize.
func (r *Rebalancer) Rebalance(labels []int, points []models.Point, minSize, maxSize int) (*Result, error) {
	if len(labels) != len(points) {
		return nil, fmt.Errorf("%w: %d labels, %d points", ErrLengthMismatch, len(labels), len(points))
	}
	if minSize < 1 || maxSize < minSize {
		return nil, fmt.Errorf("%w: min %d, max %d", ErrInvalidBounds, minSize, maxSize)
	}
	if len(points) < minSize {
		return nil, fmt.Errorf("%w: %d points, minimum group size %d", ErrInfeasible, len(points), minSize)
	}

	clusters, order := byLabel(labels)

	var (
		groups   [][]int
		deferred []pending
	)

	for _, label := range order {
		indices := clusters[label]
		size := len(indices)

		switch {
		case size > maxSize:
			chunks := make([]int, 0, size/maxSize+1)
			for start := 0; start < size; start += maxSize {
				end := min(start+maxSize, size)
				chunk := indices[start:end:end]
				chunks = append(chunks, len(chunk))
				if len(chunk) < minSize {
					deferred = append(deferred, pending{label: label, indices: chunk})
					continue
				}
				groups = append(groups, chunk)
			}
			r.observer.Split(label, size, chunks)
		case size < minSize:
			target, dist := nearest(groups, points, geo.CentroidOf(points, indices))
			if target < 0 {
				groups = append(groups, indices)
				r.observer.Isolated(label, size)
				continue
			}
			groups[target] = append(groups[target], indices...)
			r.observer.Merge(label, size, target, dist)
		default:
			groups = append(groups, indices)
			r.observer.Keep(label, size)
		}
	}

	for _, p := range deferred {
		target, dist := nearest(groups, points, geo.CentroidOf(points, p.indices))
		if target < 0 {
			groups = append(groups, p.indices)
			r.observer.Isolated(p.label, len(p.indices))
			continue
		}
		groups[target] = append(groups[target], p.indices...)
		r.observer.Merge(p.label, len(p.indices), target, dist)
	}

	return newResult(groups, points), nil
}

// Group renumbers labels densely without enforcing any size bounds. Groups
// are ordered by ascending original label.
func Group(labels []int, points []models.Point) (*Result, error) {
	if len(labels) != len(points) {
		return nil, fmt.Errorf("%w: %d labels, %d points", ErrLengthMismatch, len(labels), len(points))
	}

	clusters, order := byLabel(labels)
	groups := make([][]int, 0, len(order))
	for _, label := range order {
		groups = append(groups, clusters[label])
	}

	return newResult(groups, points), nil
}

// byLabel collects point indices per label and returns the labels in ascending order.
func byLabel(labels []int) (map[int][]int, []int) {
	clusters := make(map[int][]int)
	order := make([]int, 0)
	for idx, label := range labels {
		if _, seen := clusters[label]; !seen {
			order = append(order, label)
		}
		clusters[label] = append(clusters[label], idx)
	}
	sort.Ints(order)

	return clusters, order
}

// nearest returns the index of the group whose centroid is closest to centroid,
// and the distance in kilometers. Equidistant groups resolve to the lower index.
// It returns -1 when there are no groups.
func nearest(groups [][]int, points []models.Point, centroid models.Coordinates) (int, float64) {
	best := -1
	minDist := math.Inf(1)
	for i, members := range groups {
		if d := geo.Distance(centroid, geo.CentroidOf(points, members)); d < minDist {
			minDist = d
			best = i
		}
	}

	return best, minDist
}

func newResult(groups [][]int, points []models.Point) *Result {
	res := &Result{
		Labels:    make([]int, len(points)),
		Groups:    groups,
		Centroids: make([]models.Coordinates, len(groups)),
	}
	for id, members := range groups {
		for _, idx := range members {
			res.Labels[idx] = id
		}
		res.Centroids[id] = geo.CentroidOf(points, members)
	}

	return res
}
