// Package lifecycle translates host application signals into connection
// control.
//
// The host reports two booleans: whether the application is visible
// (foreground) and whether the network or server is reachable. The Bridge
// reacts to transitions only:
//
//	visible   true  -> false    pause heartbeats
//	visible   false -> true     resume heartbeats (immediate ping)
//	reachable false -> true     open, if the connection is idle or failed
//	reachable true  -> false    nothing; the heartbeat detects the loss
//
// Both signals start out true.
package lifecycle
