package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/eventlink-go/pkg/connection"
	"github.com/mash-protocol/eventlink-go/pkg/discovery"
	"github.com/mash-protocol/eventlink-go/pkg/envelope"
	"github.com/mash-protocol/eventlink-go/pkg/heartbeat"
	"github.com/mash-protocol/eventlink-go/pkg/transport"
)

// ErrNoEndpoint is returned by Validate when neither a URL nor discovery
// is configured.
var ErrNoEndpoint = errors.New("no url configured and discovery disabled")

// Config is the client configuration.
type Config struct {
	// URL is the ws:// or wss:// server endpoint.
	URL string `yaml:"url"`

	// Codec names the envelope codec: "json" or "cbor".
	Codec string `yaml:"codec"`

	// Credential is sent in an auth envelope after each open.
	// Empty disables authentication.
	Credential string `yaml:"credential"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Transport TransportConfig `yaml:"transport"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ReconnectConfig configures the backoff policy.
type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts uint          `yaml:"max_attempts"`

	// Reset is "open" or "heartbeat_ack".
	Reset string `yaml:"reset"`
}

// HeartbeatConfig configures the liveness monitor.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// TransportConfig configures the WebSocket transport.
type TransportConfig struct {
	HandshakeTimeout   time.Duration     `yaml:"handshake_timeout"`
	WriteTimeout       time.Duration     `yaml:"write_timeout"`
	MaxMessageSize     int64             `yaml:"max_message_size"`
	InsecureSkipVerify bool              `yaml:"insecure_skip_verify"`
	Headers            map[string]string `yaml:"headers,omitempty"`

	// Subprotocols overrides the offered Sec-WebSocket-Protocol tokens.
	Subprotocols []string `yaml:"subprotocols,omitempty"`
}

// DiscoveryConfig configures mDNS lookup of the server.
type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Instance restricts discovery to one service instance name.
	Instance string `yaml:"instance"`

	Service   string        `yaml:"service"`
	Domain    string        `yaml:"domain"`
	Interface string        `yaml:"interface"`
	Timeout   time.Duration `yaml:"timeout"`

	// Presence drives the reachability signal from mDNS announcements.
	Presence bool `yaml:"presence"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// ProtocolFile captures protocol events to a CBOR log file.
	ProtocolFile string `yaml:"protocol_file"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address of the /metrics endpoint. Empty disables it.
	Listen string `yaml:"listen"`
}

// Default returns the default configuration.
func Default() *Config {
	policy := connection.DefaultBackoffPolicy()
	hb := heartbeat.DefaultConfig()
	return &Config{
		Codec: envelope.JSON.Name(),
		Reconnect: ReconnectConfig{
			BaseDelay:   policy.BaseDelay,
			MaxDelay:    policy.MaxDelay,
			MaxAttempts: policy.MaxAttempts,
			Reset:       policy.Reset.String(),
		},
		Heartbeat: HeartbeatConfig{
			Interval: hb.Interval,
			Timeout:  hb.Timeout,
		},
		Transport: TransportConfig{
			HandshakeTimeout: transport.DefaultHandshakeTimeout,
			WriteTimeout:     transport.DefaultWriteTimeout,
			MaxMessageSize:   transport.DefaultMaxMessageSize,
		},
		Discovery: DiscoveryConfig{
			Service: discovery.ServiceType,
			Domain:  discovery.Domain,
			Timeout: discovery.BrowseTimeout,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Parse parses YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.URL != "" {
		u, err := url.Parse(c.URL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("url: %w", err))
		case u.Scheme != "ws" && u.Scheme != "wss":
			errs = append(errs, fmt.Errorf("url: scheme must be ws or wss, got %q", u.Scheme))
		case u.Host == "":
			errs = append(errs, fmt.Errorf("url: missing host"))
		}
	} else if !c.Discovery.Enabled {
		errs = append(errs, ErrNoEndpoint)
	}

	if _, err := envelope.ByName(c.Codec); err != nil {
		errs = append(errs, fmt.Errorf("codec: %w", err))
	}
	if _, err := c.BackoffPolicy(); err != nil {
		errs = append(errs, fmt.Errorf("reconnect: %w", err))
	}
	if c.Heartbeat.Interval <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat: interval must be positive"))
	}
	if c.Heartbeat.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat: timeout must be positive"))
	}
	if c.Transport.HandshakeTimeout < 0 || c.Transport.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("transport: timeouts must not be negative"))
	}
	if c.Transport.MaxMessageSize < 0 {
		errs = append(errs, fmt.Errorf("transport: max_message_size must not be negative"))
	}
	if c.Discovery.Timeout < 0 {
		errs = append(errs, fmt.Errorf("discovery: timeout must not be negative"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// BackoffPolicy converts the reconnect section.
func (c *Config) BackoffPolicy() (connection.BackoffPolicy, error) {
	reset, err := connection.ParseResetMode(c.Reconnect.Reset)
	if err != nil {
		return connection.BackoffPolicy{}, err
	}
	p := connection.BackoffPolicy{
		BaseDelay:   c.Reconnect.BaseDelay,
		MaxDelay:    c.Reconnect.MaxDelay,
		MaxAttempts: c.Reconnect.MaxAttempts,
		Reset:       reset,
	}
	if err := p.Validate(); err != nil {
		return connection.BackoffPolicy{}, err
	}
	return p, nil
}

// HeartbeatConfig converts the heartbeat section.
func (c *Config) HeartbeatConfig() heartbeat.Config {
	return heartbeat.Config{
		Interval: c.Heartbeat.Interval,
		Timeout:  c.Heartbeat.Timeout,
	}
}

// EnvelopeCodec returns the configured codec.
func (c *Config) EnvelopeCodec() (envelope.Codec, error) {
	return envelope.ByName(c.Codec)
}

// WebSocketConfig converts the transport section. Binary frames are used
// when the codec requires them.
func (c *Config) WebSocketConfig(codec envelope.Codec, logger *slog.Logger) transport.WebSocketConfig {
	wc := transport.WebSocketConfig{
		HandshakeTimeout: c.Transport.HandshakeTimeout,
		WriteTimeout:     c.Transport.WriteTimeout,
		MaxMessageSize:   c.Transport.MaxMessageSize,
		Binary:           codec != nil && codec.MessageType() == envelope.MessageBinary,
		Subprotocols:     c.Transport.Subprotocols,
		Logger:           logger,
	}
	if len(c.Transport.Headers) > 0 {
		wc.Header = make(http.Header, len(c.Transport.Headers))
		for k, v := range c.Transport.Headers {
			wc.Header.Set(k, v)
		}
	}
	if c.Transport.InsecureSkipVerify {
		wc.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for test servers
	}
	return wc
}

// BrowserConfig converts the discovery section.
func (c *Config) BrowserConfig(logger *slog.Logger) discovery.BrowserConfig {
	return discovery.BrowserConfig{
		Service:   c.Discovery.Service,
		Domain:    c.Discovery.Domain,
		Interface: c.Discovery.Interface,
		Logger:    logger,
	}
}

// SlogLevel parses the log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
