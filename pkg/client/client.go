package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mash-protocol/eventlink-go/pkg/config"
	"github.com/mash-protocol/eventlink-go/pkg/connection"
	"github.com/mash-protocol/eventlink-go/pkg/discovery"
	"github.com/mash-protocol/eventlink-go/pkg/envelope"
	"github.com/mash-protocol/eventlink-go/pkg/lifecycle"
	"github.com/mash-protocol/eventlink-go/pkg/log"
	"github.com/mash-protocol/eventlink-go/pkg/metrics"
	"github.com/mash-protocol/eventlink-go/pkg/router"
	"github.com/mash-protocol/eventlink-go/pkg/schedule"
	"github.com/mash-protocol/eventlink-go/pkg/transport"
)

// Client errors.
var (
	ErrAlreadyStarted = errors.New("client already started")
	ErrStopped        = errors.New("client stopped")
)

// Options carries collaborators that override what the configuration
// would create. The zero value uses production implementations.
type Options struct {
	// Transport overrides the WebSocket transport.
	Transport transport.Transport

	// Browser overrides the mDNS browser used for discovery and presence.
	Browser discovery.Browser

	// Scheduler overrides the real clock.
	Scheduler schedule.Scheduler

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives protocol capture events in addition to the
	// configured protocol file.
	ProtocolLogger log.Logger

	// Metrics records connection health. Nil disables metrics.
	Metrics metrics.Recorder

	// Credentials overrides the configured static credential.
	Credentials connection.CredentialProvider
}

// Client is one event client instance.
type Client struct {
	cfg      *config.Config
	logger   *slog.Logger
	codec    envelope.Codec
	router   *router.Router
	manager  *connection.Manager
	bridge   *lifecycle.Bridge
	browser  discovery.Browser
	endpoint *discovery.Endpoint
	fileLog  *log.FileLogger

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New validates cfg and builds a client in the Idle state. ctx bounds
// endpoint discovery when cfg has no URL.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Noop{}
	}

	c := &Client{cfg: cfg, logger: logger}

	if cfg.Discovery.Enabled {
		c.browser = opts.Browser
		if c.browser == nil {
			c.browser = discovery.NewMDNSBrowser(cfg.BrowserConfig(logger))
		}
	}

	url := cfg.URL
	codecName := cfg.Codec
	if url == "" {
		resolved, ep, err := discovery.Resolve(ctx, c.browser, cfg.Discovery.Instance, cfg.Discovery.Timeout)
		if err != nil {
			return nil, fmt.Errorf("discover server: %w", err)
		}
		url = resolved
		c.endpoint = ep
		if ep.Codec != "" {
			codecName = ep.Codec
		}
		logger.Info("server discovered", "instance", ep.Instance, "url", url, "codec", codecName)
	}

	codec, err := envelope.ByName(codecName)
	if err != nil {
		return nil, err
	}
	c.codec = codec

	policy, err := cfg.BackoffPolicy()
	if err != nil {
		return nil, err
	}

	plog, err := c.protocolLogger(opts.ProtocolLogger)
	if err != nil {
		return nil, err
	}

	tr := opts.Transport
	if tr == nil {
		tr = transport.NewWebSocket(cfg.WebSocketConfig(codec, logger))
	}

	creds := opts.Credentials
	if creds == nil && cfg.Credential != "" {
		creds = connection.StaticCredential(cfg.Credential)
	}

	c.router = router.New(router.Config{Logger: logger, Metrics: rec})
	c.manager, err = connection.NewManager(connection.Config{
		URL:            url,
		Transport:      tr,
		Codec:          codec,
		Router:         c.router,
		Backoff:        policy,
		Heartbeat:      cfg.HeartbeatConfig(),
		Credentials:    creds,
		Scheduler:      opts.Scheduler,
		Logger:         logger,
		ProtocolLogger: plog,
		Metrics:        rec,
	})
	if err != nil {
		c.closeFileLog()
		return nil, err
	}
	c.bridge = lifecycle.NewBridge(c.manager, logger)

	return c, nil
}

// protocolLogger combines the configured protocol file with extra.
func (c *Client) protocolLogger(extra log.Logger) (log.Logger, error) {
	var loggers []log.Logger
	if path := c.cfg.Log.ProtocolFile; path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, fmt.Errorf("protocol log: %w", err)
		}
		c.fileLog = fl
		loggers = append(loggers, fl)
	}
	if extra != nil {
		loggers = append(loggers, extra)
	}
	switch len(loggers) {
	case 0:
		return nil, nil
	case 1:
		return loggers[0], nil
	default:
		return log.NewMultiLogger(loggers...), nil
	}
}

// Start runs background signal sources: mDNS presence when configured.
// It does not open the connection.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	if !c.cfg.Discovery.Presence || c.browser == nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	presence := discovery.NewPresenceSource(c.browser, c.presenceInstance(), c.logger)
	if err := presence.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("presence: %w", err)
	}
	c.cancel = cancel
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		_ = c.bridge.Run(ctx, presence)
	}()
	return nil
}

func (c *Client) presenceInstance() string {
	if c.endpoint != nil {
		return c.endpoint.Instance
	}
	return c.cfg.Discovery.Instance
}

// Stop closes the connection and releases background resources.
// A stopped client cannot be started again.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	return errors.Join(c.manager.Close(), c.closeFileLog())
}

func (c *Client) closeFileLog() error {
	if c.fileLog == nil {
		return nil
	}
	return c.fileLog.Close()
}

// Open starts connecting. See connection.Manager.Open.
func (c *Client) Open() error { return c.manager.Open() }

// Close closes the connection and returns to Idle. The client can be
// opened again.
func (c *Client) Close() error { return c.manager.Close() }

// Send encodes payload under kind and writes it. It fails with
// connection.ErrNotOpen unless the connection is open.
func (c *Client) Send(kind string, payload any) error { return c.manager.Send(kind, payload) }

// Subscribe registers h for topic.
func (c *Client) Subscribe(topic string, h router.Handler) *router.Subscription {
	return c.router.Subscribe(topic, h)
}

// Unsubscribe removes sub. Removing an unknown subscription is a no-op.
func (c *Client) Unsubscribe(sub *router.Subscription) { c.router.Unsubscribe(sub) }

// State returns the connection state.
func (c *Client) State() connection.State { return c.manager.State() }

// Bridge returns the lifecycle bridge driving this client.
func (c *Client) Bridge() *lifecycle.Bridge { return c.bridge }

// Manager returns the connection manager.
func (c *Client) Manager() *connection.Manager { return c.manager }

// Codec returns the envelope codec in use.
func (c *Client) Codec() envelope.Codec { return c.codec }

// URL returns the server endpoint.
func (c *Client) URL() string { return c.manager.URL() }

// Endpoint returns the discovered server, or nil when the URL was
// configured.
func (c *Client) Endpoint() *discovery.Endpoint { return c.endpoint }
