package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/convoy/internal/grouping"
	"github.com/UnknownOlympus/convoy/internal/metrics"
	"github.com/UnknownOlympus/convoy/internal/models"
	"github.com/UnknownOlympus/convoy/internal/rebalance"
)

// ErrLookupUnavailable is returned for address input when no geocoding provider is configured.
var ErrLookupUnavailable = errors.New("address lookup is not configured")

// Planner combines geocoding and grouping. It is shared by the HTTP API and
// the batch service.
type Planner struct {
	log     *slog.Logger
	locator *Locator
	grouper *grouping.Grouper
	metrics *metrics.Metrics
}

// NewPlanner creates a Planner. locator may be nil when only coordinate input is served.
func NewPlanner(log *slog.Logger, locator *Locator, grouper *grouping.Grouper, metrics *metrics.Metrics) *Planner {
	return &Planner{log: log, locator: locator, grouper: grouper, metrics: metrics}
}

// Options returns the grouping options in effect.
func (p *Planner) Options() grouping.Options {
	return p.grouper.Options()
}

// Group groups points and records grouping metrics.
func (p *Planner) Group(ctx context.Context, points []models.Point) (*grouping.Plan, error) {
	startTime := time.Now()

	plan, err := p.grouper.Group(ctx, points)
	if err != nil {
		return nil, err
	}

	p.metrics.GroupingSeconds.Observe(time.Since(startTime).Seconds())
	for _, group := range plan.Groups {
		p.metrics.GroupSize.Observe(float64(len(group.Members)))
	}

	return plan, nil
}

// Located splits resolutions into riders with coordinates and the number dropped.
func Located(ctx context.Context, log *slog.Logger, results []Resolution) ([]models.Rider, int) {
	located := make([]models.Rider, 0, len(results))
	for _, res := range results {
		if res.Err != nil || res.Rider.Coordinates == nil {
			log.WarnContext(ctx, "Dropping rider that could not be located",
				"rider", res.Rider.ID, "address", res.Rider.Address, "error", res.Err)
			continue
		}
		located = append(located, res.Rider)
	}

	return located, len(results) - len(located)
}

// Points converts located riders into clustering input, identified by name.
func Points(riders []models.Rider) []models.Point {
	points := make([]models.Point, len(riders))
	for i, rider := range riders {
		points[i] = models.Point{Identity: rider.Name, Coordinates: *rider.Coordinates}
	}

	return points
}

// AddressPlan is the result of grouping free-form addresses.
type AddressPlan struct {
	Plan    *grouping.Plan
	Points  []models.Point // Points are the located addresses, indexed by group members.
	Dropped []string       // Dropped lists the addresses that could not be located.
}

// ClusterAddresses geocodes addresses, drops the ones that cannot be located, groups the
// remainder and reverse-geocodes every group centroid.
func (p *Planner) ClusterAddresses(ctx context.Context, addresses []string) (*AddressPlan, error) {
	if p.locator == nil {
		return nil, ErrLookupUnavailable
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: no addresses provided", grouping.ErrInvalidInput)
	}

	riders := make([]models.Rider, len(addresses))
	for i, address := range addresses {
		riders[i] = models.Rider{ID: i, Name: address, Address: address}
	}

	results := p.locator.Locate(ctx, riders, nil)
	located, _ := Located(ctx, p.log, results)

	var dropped []string
	for _, res := range results {
		if res.Err != nil {
			dropped = append(dropped, res.Rider.Address)
		}
	}

	if minSize := p.grouper.Options().MinSize; len(located) < minSize {
		return nil, fmt.Errorf("%w: located %d of %d addresses, minimum group size %d",
			rebalance.ErrInfeasible, len(located), len(addresses), minSize)
	}

	points := Points(located)
	plan, err := p.Group(ctx, points)
	if err != nil {
		return nil, err
	}

	p.locator.Describe(ctx, plan.Groups)

	return &AddressPlan{Plan: plan, Points: points, Dropped: dropped}, nil
}
