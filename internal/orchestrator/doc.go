// Package orchestrator drives the project lifecycle state machine. Every
// inbound event is classified, validated, and applied as one unit of work:
// at most one event is in flight per project at any time, writes go through
// the store's optimistic-version contract, and every outcome tells the
// caller what to do next.
package orchestrator
