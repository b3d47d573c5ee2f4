// Package project defines the embassy domain model: use cases captured at
// intake, TechHub projects moving through their lifecycle, and the
// resource matches appended to them. It also declares the transactional
// store contract the orchestrator depends on, with in-memory and MySQL
// implementations behind it.
package project
