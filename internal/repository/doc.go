// Package repository rebuilds entities from the flat key space of an
// item store.
//
// An EntityFactory recognizes the first key of an entity with a path
// pattern and opens an EntityBuilder. The builder absorbs the following
// keys that live under its location prefix. Because the store lists keys
// in ascending order, the items of one entity are contiguous and one open
// builder is enough.
//
// Provider runs full scans, chains the versions of each entity, and turns
// scan triggers into streams of deltas.
package repository
