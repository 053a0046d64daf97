// Package delta computes changes between ordered entity snapshots.
//
// Deltas merges two strictly ascending snapshots and classifies each id as
// added, deleted, or updated. StreamOfSnapshots turns a stream of scan
// triggers into a stream of snapshots with their changes.
//
// CRITICAL: both inputs to Deltas must be strictly ascending by
// IDPrefix()+ID(). Unsorted input is a caller bug and fails the
// comparison instead of being corrected.
package delta
