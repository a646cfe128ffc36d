// Package graph provides an adjacency-indexed directed graph store for
// citation graphs.
//
// The graph is built once from a finalized edge list via [Builder] and is
// immutable afterwards. Vertices are identified by opaque string keys and
// indexed internally by dense integer ids, giving O(1) expected neighbor
// lookup in both directions. Edge direction is semantically fixed: the
// source is the older (cited) entity and the target is the newer (citing)
// entity; none of the algorithms in this module ever reverse it.
//
// Diagnostics such as cycle detection and connected components run a full
// DFS and are intended for validation and reporting, not for the hot
// layering path.
package graph
