// Package rebalance enforces minimum and maximum group sizes on a raw label
// assignment.
//
// Labels are processed once, in ascending order. Oversized clusters are cut
// into contiguous chunks of the maximum size, and an undersized last chunk is
// merged after the pass. Undersized clusters are appended
// to the group with the nearest centroid among the groups emitted so far.
// Groups are then renumbered densely in the order they were emitted.
//
// The pass is not iterated: a group that grows past the maximum by absorbing
// an undersized cluster is left as is, and a lone undersized cluster with
// nothing to merge into is passed through. Size bounds are therefore a best
// effort target, not a post-condition.
//
// An undersized cluster met before any group exists is passed through and
// later undersized clusters may join it.
package rebalance
