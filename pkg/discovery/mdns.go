package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Browser finds event servers.
type Browser interface {
	// Browse streams endpoint events until ctx is done. The channel is
	// closed when browsing ends.
	Browse(ctx context.Context) (<-chan Event, error)
}

// BrowserConfig configures an MDNSBrowser.
type BrowserConfig struct {
	// Service is the DNS-SD service type (default: ServiceType).
	Service string

	// Domain is the browse domain (default: Domain).
	Domain string

	// Interface restricts browsing to one network interface.
	// Empty string means all interfaces.
	Interface string

	// Logger receives browse diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
	logger *slog.Logger
}

// NewMDNSBrowser creates an mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.Service == "" {
		config.Service = ServiceType
	}
	if config.Domain == "" {
		config.Domain = Domain
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &MDNSBrowser{config: config, logger: config.Logger}
}

// Browse implements Browser.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan Event, error) {
	opts, err := b.browserOptions()
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		t := newTracker()
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				ev, emit := t.add(entryToEndpoint(entry))
				if emit && !send(ctx, out, ev) {
					return
				}

			case entry, ok := <-removed:
				if !ok {
					removed = nil
					continue
				}
				ev, emit := t.remove(entry.Instance, entryAddresses(entry))
				if emit && !send(ctx, out, ev) {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		if err := zeroconf.Browse(ctx, b.config.Service, b.config.Domain, entries, removed, opts...); err != nil {
			b.logger.Warn("mdns browse failed", "service", b.config.Service, "error", err)
		}
	}()

	return out, nil
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() ([]zeroconf.ClientOption, error) {
	if b.config.Interface == "" {
		return nil, nil
	}
	iface, err := net.InterfaceByName(b.config.Interface)
	if err != nil {
		return nil, fmt.Errorf("browse interface %q: %w", b.config.Interface, err)
	}
	return []zeroconf.ClientOption{zeroconf.SelectIfaces([]net.Interface{*iface})}, nil
}

func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func entryToEndpoint(entry *zeroconf.ServiceEntry) *Endpoint {
	return newEndpoint(entry.Instance, entry.HostName, entry.Port, entry.Text, entryAddresses(entry))
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

func newEndpoint(instance, host string, port int, text, addrs []string) *Endpoint {
	ep := &Endpoint{
		Instance:  instance,
		Host:      host,
		Port:      uint16(port),
		Addresses: addrs,
	}
	applyTXT(ep, StringsToTXTRecords(text))
	return ep
}

// tracker aggregates browse entries by instance name.
type tracker struct {
	endpoints map[string]*Endpoint
}

func newTracker() *tracker {
	return &tracker{endpoints: make(map[string]*Endpoint)}
}

// add records ep and reports an EventAdded for instances not seen before.
func (t *tracker) add(ep *Endpoint) (Event, bool) {
	if existing, found := t.endpoints[ep.Instance]; found {
		existing.Addresses = mergeAddresses(existing.Addresses, ep.Addresses)
		return Event{}, false
	}
	t.endpoints[ep.Instance] = ep
	return Event{Type: EventAdded, Endpoint: ep.clone()}, true
}

// remove drops addrs and reports an EventRemoved once none remain.
func (t *tracker) remove(instance string, addrs []string) (Event, bool) {
	existing, found := t.endpoints[instance]
	if !found {
		return Event{}, false
	}
	existing.Addresses = removeAddresses(existing.Addresses, addrs)
	if len(existing.Addresses) > 0 {
		return Event{}, false
	}
	delete(t.endpoints, instance)
	return Event{Type: EventRemoved, Endpoint: existing.clone()}, true
}

func (e *Endpoint) clone() *Endpoint {
	c := *e
	c.Addresses = append([]string(nil), e.Addresses...)
	return &c
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses returns addresses without the ones in gone.
func removeAddresses(addresses, gone []string) []string {
	drop := make(map[string]bool, len(gone))
	for _, addr := range gone {
		drop[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !drop[addr] {
			result = append(result, addr)
		}
	}
	return result
}

// Find returns the first endpoint announced by b. A non-empty instance
// restricts the search to that instance name.
func Find(ctx context.Context, b Browser, instance string) (*Endpoint, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil, fmt.Errorf("%w: %w", ErrNotFound, ErrBrowserStopped)
			}
			if ev.Type != EventAdded {
				continue
			}
			if instance != "" && ev.Endpoint.Instance != instance {
				continue
			}
			return ev.Endpoint, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrNotFound, ctx.Err())
		}
	}
}

// Resolve finds a server within timeout and returns its WebSocket URL.
func Resolve(ctx context.Context, b Browser, instance string, timeout time.Duration) (string, *Endpoint, error) {
	if timeout <= 0 {
		timeout = BrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ep, err := Find(ctx, b, instance)
	if err != nil {
		return "", nil, err
	}
	u, err := ep.URL()
	if err != nil {
		return "", nil, err
	}
	return u, ep, nil
}

// Compile-time interface satisfaction check.
var _ Browser = (*MDNSBrowser)(nil)
