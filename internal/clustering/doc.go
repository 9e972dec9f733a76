// Package clustering produces the initial partition of located points using
// k-means over raw (latitude, longitude) pairs.
//
// Centroids are seeded with k-means++ driven by a caller supplied seed, so the
// same input and seed always yield the same labels. Labels are cluster indices
// in [0, k) and may contain gaps when a cluster ends up empty; the rebalance
// package renumbers them densely.
package clustering
