// Package config loads the client configuration file.
//
// The file is YAML. Durations use Go syntax ("500ms", "30s"). Every field
// is optional; missing fields keep the values of Default.
//
//	url: ws://192.168.1.10:8080/events
//	codec: json
//	reconnect:
//	  base_delay: 1s
//	  max_delay: 30s
//	  max_attempts: 5
//	  reset: open
//	heartbeat:
//	  interval: 30s
//	  timeout: 10s
//	discovery:
//	  enabled: true
//	  instance: kitchen
//
// When url is empty the server is located over mDNS, which requires
// discovery to be enabled.
package config
