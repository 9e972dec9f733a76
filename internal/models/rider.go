package models

import (
	"time"

	"github.com/google/uuid"
)

// Rider represents a person waiting to be placed into a ride group.
type Rider struct {
	ID          int          // ID is the unique identifier for the rider.
	Name        string       // Name is shown in group listings.
	Address     string       // Address is the pickup location to be geocoded.
	Coordinates *Coordinates // Coordinates is nil until the address has been geocoded.
}

// Group is one final cluster of a grouping run.
type Group struct {
	ID       uuid.UUID
	Position int         // Position is the dense group id in [0, K').
	Members  []int       // Members holds point indices in the order they joined the group.
	Centroid Coordinates // Centroid is the mean coordinate of the members.
	Address  string      // Address is the reverse-geocoded centroid, empty when unknown.
}

// Run is a persisted grouping result over a batch of riders.
type Run struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Groups    []Group
	RiderIDs  []int // RiderIDs maps point index to rider id.
}

// NewRun creates a run with a generated UUID and the current timestamp.
// Groups without an ID receive a fresh one.
func NewRun(riderIDs []int, groups []Group) *Run {
	for i := range groups {
		if groups[i].ID == uuid.Nil {
			groups[i].ID = uuid.New()
		}
	}

	return &Run{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		Groups:    groups,
		RiderIDs:  riderIDs,
	}
}

// Riders translates the point indices of a group into rider ids.
func (r *Run) Riders(group Group) []int {
	ids := make([]int, len(group.Members))
	for i, member := range group.Members {
		ids[i] = r.RiderIDs[member]
	}

	return ids
}
