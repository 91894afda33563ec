// Package discovery locates event servers on the local network with
// mDNS/DNS-SD.
//
// Servers advertise the service type _eventlink._tcp in the local. domain.
// The instance name is free-form; the TXT record carries:
//
//	path    URL path of the event endpoint (default "/")
//	tls     "1" when the endpoint requires wss://
//	codec   envelope codec name ("json" or "cbor")
//
// Browse results are aggregated by instance name: addresses announced on
// several interfaces are merged into one Endpoint, and the endpoint is
// reported removed once its last address disappears.
//
// PresenceSource turns the presence of a server into the reachability
// signal of a lifecycle.Bridge.
package discovery
