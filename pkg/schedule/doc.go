// Package schedule provides the deferred-task capability used by the
// connection core for reconnect delays and heartbeat timers.
//
// Production code uses a Scheduler backed by a clockwork.Clock. Tests use
// scheduletest.Scheduler, which runs due tasks synchronously when the fake
// time is advanced.
package schedule
