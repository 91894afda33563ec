// Package router dispatches decoded envelopes to local subscribers.
//
// Subscribers register a Handler under a topic (the envelope kind). Dispatch
// is synchronous and follows registration order. A handler that returns an
// error or panics is logged and skipped; delivery to the remaining handlers
// continues.
//
// Envelopes whose kind has no subscribers are discarded silently, so servers
// can introduce new kinds without breaking older clients.
//
// # Reserved Topics
//
// Two topics are produced locally by the connection core rather than
// arriving from the wire:
//   - connection: lifecycle transitions (ConnectionEvent)
//   - error: transport and decode errors (ErrorEvent)
package router
