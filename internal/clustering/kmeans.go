package clustering

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/UnknownOlympus/convoy/internal/models"
	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultMaxIterations caps the number of Lloyd iterations.
	DefaultMaxIterations = 300
	// DefaultTolerance is the squared centroid shift below which iteration stops.
	DefaultTolerance = 1e-12
)

// ErrClusteringFailure is returned when the partitioning step cannot run on the given input.
var ErrClusteringFailure = errors.New("clustering failure")

// Result holds the outcome of a partition.
type Result struct {
	Labels     []int                // Labels maps point index to cluster index.
	Centroids  []models.Coordinates // Centroids holds one centroid per cluster index.
	Iterations int                  // Iterations is the number of Lloyd iterations performed.
	Inertia    float64              // Inertia is the sum of squared distances to assigned centroids.
}

// KMeans partitions points with Lloyd's algorithm.
// The zero value uses DefaultMaxIterations and DefaultTolerance.
type KMeans struct {
	MaxIterations int
	Tolerance     float64
}

// Partition runs k-means with default settings.
func Partition(points []models.Point, k int, seed int64) (*Result, error) {
	return KMeans{}.Partition(points, k, seed)
}

// Partition assigns each point to one of k clusters. When there are fewer
// points than k, k is reduced to the number of points.
func (km KMeans) Partition(points []models.Point, k int, seed int64) (*Result, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no points to partition", ErrClusteringFailure)
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: cluster count must be positive, got %d", ErrClusteringFailure, k)
	}

	vectors := make([][]float64, len(points))
	for i, p := range points {
		lat, lon := p.Coordinates.Latitude, p.Coordinates.Longitude
		if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
			return nil, fmt.Errorf("%w: point %d has non-finite coordinates", ErrClusteringFailure, i)
		}
		vectors[i] = []float64{lat, lon}
	}

	if len(points) < k {
		k = len(points)
	}

	maxIter := km.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	tol := km.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	rng := rand.New(rand.NewSource(seed))
	centroids := seedCentroids(vectors, k, rng)
	labels := make([]int, len(vectors))
	for i := range labels {
		labels[i] = -1
	}

	iterations := 0
	for iter := 0; iter < maxIter; iter++ {
		iterations++

		// Assignment step
		changed := assign(vectors, centroids, labels)
		if !changed {
			break
		}

		// Update step
		shift := update(vectors, centroids, labels, rng)
		if shift <= tol {
			break
		}
	}

	assign(vectors, centroids, labels)

	result := &Result{
		Labels:     labels,
		Centroids:  make([]models.Coordinates, k),
		Iterations: iterations,
	}
	for j, c := range centroids {
		result.Centroids[j] = models.Coordinates{Latitude: c[0], Longitude: c[1]}
	}
	for i, v := range vectors {
		result.Inertia += squaredDistance(v, centroids[labels[i]])
	}

	return result, nil
}

// seedCentroids picks k initial centroids with k-means++. When every remaining
// point coincides with a chosen centroid, the lowest unchosen index is taken.
func seedCentroids(vectors [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(vectors)
	chosen := make([]bool, n)
	centroids := make([][]float64, 0, k)

	first := rng.Intn(n)
	chosen[first] = true
	centroids = append(centroids, clone(vectors[first]))

	weights := make([]float64, n)
	for len(centroids) < k {
		for i, v := range vectors {
			weights[i] = math.MaxFloat64
			for _, c := range centroids {
				if d := squaredDistance(v, c); d < weights[i] {
					weights[i] = d
				}
			}
			if chosen[i] {
				weights[i] = 0
			}
		}

		next := -1
		if total := floats.Sum(weights); total > 0 {
			target := rng.Float64() * total
			cumulative := 0.0
			for i, w := range weights {
				if w == 0 {
					continue
				}
				cumulative += w
				next = i
				if cumulative > target {
					break
				}
			}
		} else {
			for i := range vectors {
				if !chosen[i] {
					next = i
					break
				}
			}
		}

		chosen[next] = true
		centroids = append(centroids, clone(vectors[next]))
	}

	return centroids
}

// assign moves every vector to its nearest centroid. Ties go to the lower
// cluster index. It reports whether any label changed.
func assign(vectors, centroids [][]float64, labels []int) bool {
	changed := false
	for i, v := range vectors {
		best := -1
		minDist := math.MaxFloat64
		for j, c := range centroids {
			if d := squaredDistance(v, c); d < minDist {
				minDist = d
				best = j
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}

	return changed
}

// update recomputes centroids as member means and returns the largest squared
// shift. Empty clusters are reseeded from a random point.
func update(vectors, centroids [][]float64, labels []int, rng *rand.Rand) float64 {
	dim := len(centroids[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for j := range sums {
		sums[j] = make([]float64, dim)
	}

	for i, v := range vectors {
		floats.Add(sums[labels[i]], v)
		counts[labels[i]]++
	}

	maxShift := 0.0
	for j := range centroids {
		next := sums[j]
		if counts[j] > 0 {
			floats.Scale(1/float64(counts[j]), next)
		} else {
			next = clone(vectors[rng.Intn(len(vectors))])
		}
		if shift := squaredDistance(centroids[j], next); shift > maxShift {
			maxShift = shift
		}
		centroids[j] = next
	}

	return maxShift
}

func squaredDistance(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
