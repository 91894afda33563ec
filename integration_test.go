package eventlink_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/eventlink-go/pkg/client"
	"github.com/mash-protocol/eventlink-go/pkg/config"
	"github.com/mash-protocol/eventlink-go/pkg/connection"
	"github.com/mash-protocol/eventlink-go/pkg/envelope"
	"github.com/mash-protocol/eventlink-go/pkg/router"
	"github.com/mash-protocol/eventlink-go/pkg/version"
)

// eventServer is a minimal event server: it acknowledges heartbeats and
// echoes envelopes of kind "echo".
type eventServer struct {
	*httptest.Server

	codec envelope.Codec

	// ignoreHeartbeats suppresses heartbeat acks.
	ignoreHeartbeats bool

	// dropFirst closes the first connection after this delay. Zero disables.
	dropFirst time.Duration

	conns       atomic.Int32
	subprotocol chan string
}

func newEventServer(t *testing.T, codec envelope.Codec, tls bool, configure func(*eventServer)) *eventServer {
	t.Helper()

	s := &eventServer{codec: codec, subprotocol: make(chan string, 8)}
	if configure != nil {
		configure(s)
	}

	upgrader := websocket.Upgrader{Subprotocols: version.SupportedSubprotocols()}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.subprotocol <- conn.Subprotocol()
		n := s.conns.Add(1)
		if n == 1 && s.dropFirst > 0 {
			time.AfterFunc(s.dropFirst, func() { conn.Close() })
		}
		s.serve(conn)
	})

	if tls {
		s.Server = httptest.NewTLSServer(handler)
	} else {
		s.Server = httptest.NewServer(handler)
	}
	t.Cleanup(s.Close)
	return s
}

func (s *eventServer) serve(conn *websocket.Conn) {
	defer conn.Close()

	frame := websocket.TextMessage
	if s.codec.MessageType() == envelope.MessageBinary {
		frame = websocket.BinaryMessage
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := s.codec.Decode(data)
		if err != nil {
			continue
		}

		var reply []byte
		switch env.Kind {
		case envelope.KindHeartbeat:
			if s.ignoreHeartbeats {
				continue
			}
			ack, _ := envelope.New(s.codec, envelope.KindHeartbeatAck, nil)
			reply, err = s.codec.Encode(ack)
		case "echo":
			reply = data
		default:
			continue
		}
		if err != nil {
			return
		}
		if err := conn.WriteMessage(frame, reply); err != nil {
			return
		}
	}
}

func (s *eventServer) wsURL() string {
	if strings.HasPrefix(s.URL, "https") {
		return "wss" + strings.TrimPrefix(s.URL, "https")
	}
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// testConfig returns a configuration with timings short enough for tests.
func testConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.URL = url
	cfg.Reconnect.BaseDelay = 20 * time.Millisecond
	cfg.Reconnect.MaxDelay = 100 * time.Millisecond
	cfg.Heartbeat.Interval = 50 * time.Millisecond
	cfg.Heartbeat.Timeout = 200 * time.Millisecond
	return cfg
}

func newClient(t *testing.T, cfg *config.Config) *client.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	c, err := client.New(ctx, cfg, client.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

func waitState(t *testing.T, c *client.Client, want connection.State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want },
		5*time.Second, 10*time.Millisecond, "state %s, want %s", c.State(), want)
}

type echoPayload struct {
	N int    `json:"n" cbor:"1,keyasint"`
	S string `json:"s" cbor:"2,keyasint"`
}

func roundTrip(t *testing.T, c *client.Client) {
	t.Helper()

	got := make(chan echoPayload, 1)
	sub := c.Subscribe("echo", func(env envelope.Envelope) error {
		var p echoPayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		got <- p
		return nil
	})
	defer c.Unsubscribe(sub)

	require.NoError(t, c.Send("echo", echoPayload{N: 7, S: "hello"}))

	select {
	case p := <-got:
		assert.Equal(t, echoPayload{N: 7, S: "hello"}, p)
	case <-time.After(5 * time.Second):
		t.Fatal("no echo received")
	}
}

func TestE2E_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	for _, codec := range []envelope.Codec{envelope.JSON, envelope.CBOR} {
		t.Run(codec.Name(), func(t *testing.T) {
			srv := newEventServer(t, codec, false, nil)
			cfg := testConfig(srv.wsURL())
			cfg.Codec = codec.Name()

			c := newClient(t, cfg)
			require.NoError(t, c.Open())
			waitState(t, c, connection.StateOpen)

			assert.Equal(t, "eventlink.v1", <-srv.subprotocol)
			roundTrip(t, c)

			// Acknowledged heartbeats keep the connection open past the timeout.
			time.Sleep(3 * cfg.Heartbeat.Timeout)
			assert.Equal(t, connection.StateOpen, c.State())
			stats, ok := c.Manager().HeartbeatStats()
			require.True(t, ok)
			assert.NotZero(t, stats.AcksReceived)
			assert.Equal(t, int32(1), srv.conns.Load())

			require.NoError(t, c.Close())
			waitState(t, c, connection.StateIdle)
		})
	}
}

func TestE2E_TLSConnection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	srv := newEventServer(t, envelope.JSON, true, nil)
	cfg := testConfig(srv.wsURL())
	cfg.Transport.InsecureSkipVerify = true

	c := newClient(t, cfg)
	require.NoError(t, c.Open())
	waitState(t, c, connection.StateOpen)
	roundTrip(t, c)
}

func TestE2E_Reconnection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	srv := newEventServer(t, envelope.JSON, false, func(s *eventServer) {
		s.dropFirst = 100 * time.Millisecond
	})
	c := newClient(t, testConfig(srv.wsURL()))

	var mu sync.Mutex
	var statuses []string
	c.Subscribe(router.TopicConnection, func(env envelope.Envelope) error {
		var ev router.ConnectionEvent
		if err := env.Decode(&ev); err != nil {
			return err
		}
		mu.Lock()
		statuses = append(statuses, ev.Status)
		mu.Unlock()
		return nil
	})

	require.NoError(t, c.Open())

	require.Eventually(t, func() bool { return srv.conns.Load() == 2 },
		5*time.Second, 10*time.Millisecond, "client did not reconnect")
	waitState(t, c, connection.StateOpen)
	roundTrip(t, c)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(statuses), 3)
	assert.Equal(t, []string{router.StatusConnected, router.StatusDisconnected, router.StatusConnected}, statuses[:3])
}

func TestE2E_HeartbeatTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	srv := newEventServer(t, envelope.JSON, false, func(s *eventServer) {
		s.ignoreHeartbeats = true
	})
	cfg := testConfig(srv.wsURL())
	cfg.Heartbeat.Interval = 30 * time.Millisecond
	cfg.Heartbeat.Timeout = 60 * time.Millisecond
	c := newClient(t, cfg)

	sources := make(chan string, 16)
	c.Subscribe(router.TopicError, func(env envelope.Envelope) error {
		var ev router.ErrorEvent
		if err := env.Decode(&ev); err != nil {
			return err
		}
		select {
		case sources <- ev.Source:
		default:
		}
		return nil
	})

	require.NoError(t, c.Open())

	select {
	case src := <-sources:
		assert.Equal(t, router.SourceHeartbeat, src)
	case <-time.After(5 * time.Second):
		t.Fatal("no heartbeat timeout reported")
	}

	// The dead connection is replaced.
	require.Eventually(t, func() bool { return srv.conns.Load() >= 2 },
		5*time.Second, 10*time.Millisecond)
}

func TestE2E_BackgroundPausesHeartbeats(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	srv := newEventServer(t, envelope.JSON, false, func(s *eventServer) {
		s.ignoreHeartbeats = true
	})
	cfg := testConfig(srv.wsURL())
	cfg.Heartbeat.Interval = 30 * time.Millisecond
	cfg.Heartbeat.Timeout = 60 * time.Millisecond
	c := newClient(t, cfg)

	// Hidden before opening: no pings are sent, so the unresponsive
	// server is never detected.
	c.Bridge().SetVisible(false)
	require.NoError(t, c.Open())
	waitState(t, c, connection.StateOpen)

	time.Sleep(5 * cfg.Heartbeat.Timeout)
	assert.Equal(t, connection.StateOpen, c.State())
	assert.Equal(t, int32(1), srv.conns.Load())
	assert.True(t, c.Manager().HeartbeatPaused())
}
