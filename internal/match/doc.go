// Package match implements the resource matcher: it scores catalog entries
// against a use case, keeps the best candidates per category, and assembles
// a bill of materials. The matcher is a pure function over its inputs and a
// catalog snapshot, so identical inputs always produce identical output.
package match
