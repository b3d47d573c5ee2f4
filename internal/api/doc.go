// Package api exposes the REST surface of the embassy: event submission,
// project and match retrieval, catalog browsing, and aggregate stats. Every
// handler records HTTP metrics and maps domain error codes onto HTTP status
// codes.
package api
