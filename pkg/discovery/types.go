package discovery

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Service constants.
const (
	// ServiceType is the DNS-SD service type of event servers.
	ServiceType = "_eventlink._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// BrowseTimeout is the default time Find waits for a server.
	BrowseTimeout = 10 * time.Second
)

// TXT record keys.
const (
	TXTKeyPath  = "path"
	TXTKeyTLS   = "tls"
	TXTKeyCodec = "codec"
)

// Discovery errors.
var (
	ErrNotFound       = errors.New("no server found")
	ErrNoAddress      = errors.New("endpoint has no address")
	ErrBrowserStopped = errors.New("browser stopped")
)

// Endpoint is one discovered event server.
type Endpoint struct {
	// Instance is the DNS-SD instance name.
	Instance string

	// Host is the advertised host name.
	Host string

	// Port is the service port.
	Port uint16

	// Addresses are the IP addresses seen for the instance, IPv4 first.
	Addresses []string

	// Path is the URL path of the event endpoint.
	Path string

	// TLS selects wss:// instead of ws://.
	TLS bool

	// Codec is the advertised envelope codec, empty when unspecified.
	Codec string
}

// URL builds the WebSocket URL of the endpoint. The first address is
// preferred over the host name.
func (e *Endpoint) URL() (string, error) {
	host := strings.TrimSuffix(e.Host, ".")
	if len(e.Addresses) > 0 {
		host = e.Addresses[0]
	}
	if host == "" {
		return "", ErrNoAddress
	}

	scheme := "ws"
	if e.TLS {
		scheme = "wss"
	}
	path := e.Path
	if path == "" {
		path = "/"
	} else if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(int(e.Port))),
		Path:   path,
	}
	return u.String(), nil
}

// EventType distinguishes browse events.
type EventType uint8

const (
	// EventAdded reports a newly seen endpoint.
	EventAdded EventType = iota
	// EventRemoved reports an endpoint whose last address disappeared.
	EventRemoved
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "ADDED"
	case EventRemoved:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// Event is one browse result.
type Event struct {
	Type     EventType
	Endpoint *Endpoint
}
