// Package log captures a machine-readable trace of client protocol traffic.
//
// It is separate from operational logging (slog): every envelope, heartbeat,
// state transition and error seen by a connection is recorded as an Event.
//
// # Basic Usage
//
//	// Console, for development
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// File, for later analysis with eventlink-log
//	fl, _ := log.NewFileLogger("/var/log/eventlink/client.elog")
//	cfg.ProtocolLogger = fl
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(nil), fl)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys.
package log
