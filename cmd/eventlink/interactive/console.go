// Package interactive provides the interactive command-line interface
// for the event client.
package interactive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/mash-protocol/eventlink-go/pkg/client"
	"github.com/mash-protocol/eventlink-go/pkg/envelope"
	"github.com/mash-protocol/eventlink-go/pkg/router"
)

// Console handles interactive mode for eventlink.
type Console struct {
	client *client.Client
	rl     *readline.Instance
	out    io.Writer

	closeOnce sync.Once
	closeErr  error

	mu   sync.Mutex
	subs []*router.Subscription
}

// New creates a console reading commands from the terminal. Attach a
// client before calling Run.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "eventlink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, out: rl.Stdout()}, nil
}

// Attach sets the client the commands act on.
func (c *Console) Attach(cl *client.Client) {
	c.client = cl
}

// Close releases the terminal. Run closes it on return.
func (c *Console) Close() error {
	if c.rl == nil {
		return nil
	}
	c.closeOnce.Do(func() { c.closeErr = c.rl.Close() })
	return c.closeErr
}

// NewWithOutput creates a console without a terminal. Commands are fed
// through Exec.
func NewWithOutput(c *client.Client, out io.Writer) *Console {
	return &Console{client: c, out: out}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if !c.Exec(line) {
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns false when the user asked to quit.
func (c *Console) Exec(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "open", "o":
		c.report(c.client.Open())

	case "close", "c":
		c.report(c.client.Close())

	case "send", "s":
		c.cmdSend(args)

	case "sub", "subscribe":
		c.cmdSub(args)

	case "unsub", "unsubscribe":
		c.cmdUnsub(args)

	case "subs":
		c.cmdSubs()

	case "state", "status":
		c.cmdState()

	case "visible":
		c.cmdSignal(args, c.client.Bridge().SetVisible)

	case "reachable":
		c.cmdSignal(args, c.client.Bridge().SetReachable)

	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return false

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Event Client Commands:
  Connection:
    open                      - Connect to the server
    close                     - Disconnect and return to idle
    state                     - Show connection state and heartbeat

  Messages:
    send <kind> [payload]     - Send an envelope (payload is JSON or text)
    sub <topic>               - Print envelopes routed to topic
    unsub <n>                 - Remove subscription n
    subs                      - List subscriptions

  Lifecycle:
    visible on|off            - Foreground / background the client
    reachable on|off          - Report network reachability

  General:
    help                      - Show this help
    quit                      - Exit

  Reserved topics: connection, error`)
}

func (c *Console) report(err error) {
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "State: %s\n", c.client.State())
}

// cmdSend handles: send <kind> [payload...]
func (c *Console) cmdSend(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: send <kind> [payload]")
		return
	}
	payload := parsePayload(strings.Join(args[1:], " "))
	if err := c.client.Send(args[0], payload); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Sent %s\n", args[0])
}

// parsePayload reads JSON when possible and falls back to a plain string.
func parsePayload(s string) any {
	if s == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

// cmdSub handles: sub <topic>
func (c *Console) cmdSub(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: sub <topic>")
		return
	}
	topic := args[0]
	sub := c.client.Subscribe(topic, func(env envelope.Envelope) error {
		fmt.Fprintf(c.out, "[%s] %s\n", env.Kind, formatPayload(env))
		return nil
	})

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	n := len(c.subs)
	c.mu.Unlock()

	fmt.Fprintf(c.out, "Subscribed %d: %s\n", n, topic)
}

func formatPayload(env envelope.Envelope) string {
	if !env.HasPayload() {
		return "(no payload)"
	}
	var v any
	if err := env.Decode(&v); err != nil {
		return fmt.Sprintf("(undecodable: %v)", err)
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

// cmdUnsub handles: unsub <n>
func (c *Console) cmdUnsub(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: unsub <n>")
		return
	}
	n, err := strconv.Atoi(args[0])

	c.mu.Lock()
	if err != nil || n < 1 || n > len(c.subs) || c.subs[n-1] == nil {
		c.mu.Unlock()
		fmt.Fprintf(c.out, "No subscription %s\n", args[0])
		return
	}
	sub := c.subs[n-1]
	c.subs[n-1] = nil
	c.mu.Unlock()

	c.client.Unsubscribe(sub)
	fmt.Fprintf(c.out, "Unsubscribed %d: %s\n", n, sub.Topic)
}

func (c *Console) cmdSubs() {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := 0
	for i, sub := range c.subs {
		if sub == nil {
			continue
		}
		active++
		fmt.Fprintf(c.out, "  %d. %s (%s)\n", i+1, sub.Topic, sub.ID.String()[:8])
	}
	if active == 0 {
		fmt.Fprintln(c.out, "No subscriptions")
	}
}

func (c *Console) cmdState() {
	m := c.client.Manager()
	bridge := c.client.Bridge()

	fmt.Fprintln(c.out, "\nConnection:")
	fmt.Fprintln(c.out, "-------------------------------------------")
	fmt.Fprintf(c.out, "  State:      %s\n", m.State())
	fmt.Fprintf(c.out, "  URL:        %s\n", m.URL())
	fmt.Fprintf(c.out, "  Codec:      %s\n", m.Codec().Name())
	fmt.Fprintf(c.out, "  Attempt:    %d\n", m.Attempt())
	if id := m.ConnectionID(); id != "" {
		fmt.Fprintf(c.out, "  Conn ID:    %s\n", id)
	}
	if err := m.LastError(); err != nil {
		fmt.Fprintf(c.out, "  Last error: %v\n", err)
	}
	if ep := c.client.Endpoint(); ep != nil {
		fmt.Fprintf(c.out, "  Instance:   %s\n", ep.Instance)
	}
	fmt.Fprintf(c.out, "  Visible:    %v\n", bridge.Visible())
	fmt.Fprintf(c.out, "  Reachable:  %v\n", bridge.Reachable())

	if stats, ok := m.HeartbeatStats(); ok {
		fmt.Fprintln(c.out, "\nHeartbeat:")
		fmt.Fprintln(c.out, "-------------------------------------------")
		fmt.Fprintf(c.out, "  Pings:     %d\n", stats.PingsSent)
		fmt.Fprintf(c.out, "  Acks:       %d\n", stats.AcksReceived)
		fmt.Fprintf(c.out, "  Pending:    %v\n", stats.Outstanding)
		fmt.Fprintf(c.out, "  Paused:     %v\n", stats.Paused)
	}
}

// cmdSignal handles: visible on|off, reachable on|off
func (c *Console) cmdSignal(args []string, set func(bool)) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: visible|reachable on|off")
		return
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		set(true)
	case "off", "false", "0":
		set(false)
	default:
		fmt.Fprintf(c.out, "Invalid value: %s (use on or off)\n", args[0])
		return
	}
	fmt.Fprintf(c.out, "State: %s\n", c.client.State())
}
