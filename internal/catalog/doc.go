// Package catalog maintains the queryable index over TechHub resources
// (demos, solutions and components). The index is an immutable snapshot
// built from a swappable source; refreshing constructs a new snapshot and
// republishes it atomically so an in-flight match never observes a
// half-loaded catalog.
package catalog
