package geocoding

import (
	"context"
	"errors"

	"github.com/UnknownOlympus/convoy/internal/models"
)

// Provider resolves addresses to coordinates and coordinates back to a
// human-readable address. Implementations talk to external services and may
// fail; callers drop the affected point rather than retry.
type Provider interface {
	Geocode(ctx context.Context, address string) (*models.Coordinates, error)
	Reverse(ctx context.Context, coords models.Coordinates) (string, error)
}

// ErrNoAddress is returned by Reverse when the provider has no address for the coordinates.
var ErrNoAddress = errors.New("no address found for coordinates")
