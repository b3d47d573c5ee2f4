// Package event provides the asynchronous intake path: queue contracts with
// memory, Redis, and RabbitMQ implementations carrying JSON event envelopes,
// and a Relay that consumes envelopes and dispatches them to the
// orchestrator.
package event
