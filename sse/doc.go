// Package sse streams job progress to HTTP clients over Server-Sent
// Events.
//
// The hub fans events out to subscribers. A client subscribes to one
// job id or, with a glob pattern, to many; the service layer publishes
// one event per chunk reaching a terminal status plus a final job
// event.
package sse
