// Command eventlink is a resilient real-time event client.
//
// It keeps one connection to an event server open, reconnecting with
// exponential backoff and probing liveness with heartbeats. Envelopes are
// routed to subscribers by kind.
//
// Usage:
//
//	eventlink [flags]
//
// Flags:
//
//	-config string         Configuration file path (YAML)
//	-url string            Server URL (ws:// or wss://)
//	-codec string          Envelope codec: json, cbor
//	-credential string     Credential sent in an auth envelope after each open
//	-discover              Locate the server over mDNS when no URL is set
//	-instance string       mDNS instance name to connect to
//	-log-level string      Log level: debug, info, warn, error
//	-log-format string     Log format: text, json (default "text")
//	-protocol-log string   Write protocol events to this file
//	-metrics string        Serve Prometheus metrics on this address
//	-interactive           Enable interactive command mode
//	-dump-config           Print the effective configuration and exit
//	-version               Print the protocol version and exit
//
// Examples:
//
//	# Connect and subscribe interactively
//	eventlink -url ws://localhost:8080/events -interactive
//
//	# Run as a daemon, locating the server over mDNS
//	eventlink -discover -metrics :9102
//
//	# Capture protocol traffic for later analysis with eventlink-log
//	eventlink -config eventlink.yaml -protocol-log /tmp/client.elog
//
// In daemon mode the connection is opened at startup. SIGUSR1 moves the
// client to the background (heartbeats paused) and SIGUSR2 back to the
// foreground.
//
// Interactive Commands:
//
//	open        - Connect to the server
//	close       - Disconnect
//	send <kind> [payload] - Send an envelope
//	sub <topic> - Print envelopes of a topic
//	unsub <n>   - Remove a subscription
//	state       - Show connection status
//	visible on|off, reachable on|off - Drive lifecycle signals
//	quit        - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mash-protocol/eventlink-go/cmd/eventlink/interactive"
	"github.com/mash-protocol/eventlink-go/pkg/client"
	"github.com/mash-protocol/eventlink-go/pkg/config"
	"github.com/mash-protocol/eventlink-go/pkg/envelope"
	"github.com/mash-protocol/eventlink-go/pkg/metrics"
	"github.com/mash-protocol/eventlink-go/pkg/router"
	"github.com/mash-protocol/eventlink-go/pkg/version"
)

// Options holds the command-line flags.
type Options struct {
	ConfigFile    string
	URL           string
	Codec         string
	Credential    string
	Discover      bool
	Instance      string
	LogLevel      string
	LogFormat     string
	ProtocolLog   string
	MetricsListen string
	Interactive   bool
	DumpConfig    bool
	Version       bool
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&opts.URL, "url", "", "Server URL (ws:// or wss://)")
	flag.StringVar(&opts.Codec, "codec", "", "Envelope codec: json, cbor")
	flag.StringVar(&opts.Credential, "credential", "", "Credential sent in an auth envelope after each open")
	flag.BoolVar(&opts.Discover, "discover", false, "Locate the server over mDNS when no URL is set")
	flag.StringVar(&opts.Instance, "instance", "", "mDNS instance name to connect to")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.LogFormat, "log-format", "text", "Log format: text, json")
	flag.StringVar(&opts.ProtocolLog, "protocol-log", "", "Write protocol events to this file")
	flag.StringVar(&opts.MetricsListen, "metrics", "", "Serve Prometheus metrics on this address")
	flag.BoolVar(&opts.Interactive, "interactive", false, "Enable interactive command mode")
	flag.BoolVar(&opts.DumpConfig, "dump-config", false, "Print the effective configuration and exit")
	flag.BoolVar(&opts.Version, "version", false, "Print the protocol version and exit")
}

func main() {
	flag.Parse()

	if opts.Version {
		fmt.Printf("eventlink protocol %s (subprotocols: %v)\n", version.Current, version.SupportedSubprotocols())
		return
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if opts.DumpConfig {
		data, err := cfg.Marshal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(data)
		return
	}

	if err := run(cfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, if any, and applies the flags
// given on the command line on top of it.
func loadConfig(o Options) (*config.Config, error) {
	cfg := config.Default()
	if o.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(o.ConfigFile); err != nil {
			return nil, err
		}
	}

	applyFlags(cfg, o)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, o Options) {
	if o.URL != "" {
		cfg.URL = o.URL
	}
	if o.Codec != "" {
		cfg.Codec = o.Codec
	}
	if o.Credential != "" {
		cfg.Credential = o.Credential
	}
	if o.Discover {
		cfg.Discovery.Enabled = true
	}
	if o.Instance != "" {
		cfg.Discovery.Instance = o.Instance
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.ProtocolLog != "" {
		cfg.Log.ProtocolFile = o.ProtocolLog
	}
	if o.MetricsListen != "" {
		cfg.Metrics.Listen = o.MetricsListen
	}
}

func run(cfg *config.Config, o Options) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	level, _ := cfg.SlogLevel()

	// The console must exist before the logger so log lines go through
	// readline instead of tearing the prompt.
	var out io.Writer = os.Stderr
	var console *interactive.Console
	if o.Interactive {
		var err error
		if console, err = interactive.New(); err != nil {
			return err
		}
		defer console.Close()
		out = console.Stdout()
	}

	logger := setupLogger(level, o.LogFormat, out)
	slog.SetDefault(logger)

	var rec metrics.Recorder = metrics.Noop{}
	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		rec = metrics.NewPrometheus(reg)
		metricsSrv := newMetricsServer(cfg.Metrics.Listen, reg, logger)
		if err := metricsSrv.Start(); err != nil {
			return err
		}
		defer func() {
			if err := metricsSrv.Stop(); err != nil {
				logger.Warn("metrics server shutdown", "error", err)
			}
		}()
	}

	c, err := client.New(ctx, cfg, client.Options{
		Logger:  logger,
		Metrics: rec,
	})
	if err != nil {
		return err
	}

	if console != nil {
		console.Attach(c)
	}

	watchReservedTopics(c, logger)

	if err := c.Start(ctx); err != nil {
		return err
	}

	if console != nil {
		go console.Run(ctx, cancel)
	} else if err := c.Open(); err != nil {
		return err
	}

	waitForShutdown(ctx, c, logger)

	logger.Info("shutting down")
	cancel()

	return c.Stop()
}

// waitForShutdown blocks until SIGINT/SIGTERM or ctx is done. SIGUSR1 and
// SIGUSR2 move the client to the background and foreground.
func waitForShutdown(ctx context.Context, c *client.Client, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				logger.Info("moving to background")
				c.Bridge().SetVisible(false)
			case syscall.SIGUSR2:
				logger.Info("moving to foreground")
				c.Bridge().SetVisible(true)
			default:
				logger.Info("received signal", "signal", sig.String())
				return
			}
		case <-ctx.Done():
			// Context was cancelled (e.g., by interactive quit command)
			return
		}
	}
}

// watchReservedTopics logs connection and error events.
func watchReservedTopics(c *client.Client, logger *slog.Logger) {
	c.Subscribe(router.TopicConnection, func(env envelope.Envelope) error {
		var ev router.ConnectionEvent
		if err := env.Decode(&ev); err != nil {
			return err
		}
		attrs := []any{"status", ev.Status}
		if ev.Attempt > 0 {
			attrs = append(attrs, "attempt", ev.Attempt)
		}
		if ev.Error != "" {
			attrs = append(attrs, "error", ev.Error)
		}
		if ev.Status == router.StatusFailed {
			logger.Error("connection failed", attrs...)
		} else {
			logger.Info("connection", attrs...)
		}
		return nil
	})
	c.Subscribe(router.TopicError, func(env envelope.Envelope) error {
		var ev router.ErrorEvent
		if err := env.Decode(&ev); err != nil {
			return err
		}
		logger.Warn("client error", "source", ev.Source, "message", ev.Message)
		return nil
	})
}

// setupLogger creates a logger writing to w.
func setupLogger(level slog.Level, format string, w io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return slog.New(handler)
}
