// Package model defines the data model shared by the config store client.
//
// Items are the physical objects held by an item store. Entities are the
// logical, versioned units assembled from those items. EntityInfo carries
// the metadata of one entity version; Entity carries its fetched content.
//
// CRITICAL: EntityInfo.Version is derived from item paths relative to the
// entity's location prefix. Two copies of the same entity stored under
// different roots share a version.
package model
