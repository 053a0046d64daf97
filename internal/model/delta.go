package model

// ChangeType classifies a Delta.
type ChangeType string

const (
	ChangeAdd    ChangeType = "ADD"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Delta is a classified change to one entity between two snapshots.
// Deltas compare equal when type and entity are equal.
type Delta[T comparable] struct {
	Type   ChangeType
	Entity T
}

// EntityState is a snapshot plus the changes that produced it.
type EntityState[T comparable] struct {
	CurrentVersions []T
	Changes         []Delta[T]
}

// EntityDelta is a change to one entity version.
type EntityDelta = Delta[*EntityInfo]
