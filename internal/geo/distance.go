// Package geo holds the geodesic helpers used by the grouping pipeline:
// great-circle distance, centroids and coordinate validation.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/UnknownOlympus/convoy/internal/models"
	"gonum.org/v1/gonum/stat"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// ErrOutOfRange is returned by Validate for coordinates outside geodetic bounds.
var ErrOutOfRange = errors.New("coordinates out of range")

// Distance returns the great-circle distance in kilometers between a and b
// using the haversine formula.
func Distance(a, b models.Coordinates) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude) - radians(a.Longitude)

	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Centroid returns the arithmetic mean of the given coordinates.
// The zero value is returned for an empty slice.
func Centroid(coords []models.Coordinates) models.Coordinates {
	if len(coords) == 0 {
		return models.Coordinates{}
	}

	lats := make([]float64, len(coords))
	lons := make([]float64, len(coords))
	for i, c := range coords {
		lats[i] = c.Latitude
		lons[i] = c.Longitude
	}

	return models.Coordinates{
		Latitude:  stat.Mean(lats, nil),
		Longitude: stat.Mean(lons, nil),
	}
}

// CentroidOf returns the centroid of the points selected by indices.
func CentroidOf(points []models.Point, indices []int) models.Coordinates {
	coords := make([]models.Coordinates, len(indices))
	for i, idx := range indices {
		coords[i] = points[idx].Coordinates
	}

	return Centroid(coords)
}

// Validate reports whether c lies within latitude [-90, 90] and longitude [-180, 180].
func Validate(c models.Coordinates) error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v", ErrOutOfRange, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v", ErrOutOfRange, c.Longitude)
	}

	return nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
