package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/eventlink-go/pkg/metrics"
)

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: ws://file.example/events\ncodec: json\n"), 0o600))

	cfg, err := loadConfig(Options{
		ConfigFile: path,
		URL:        "ws://flag.example/events",
		Codec:      "cbor",
		LogLevel:   "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, "ws://flag.example/events", cfg.URL)
	assert.Equal(t, "cbor", cfg.Codec)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigRequiresEndpoint(t *testing.T) {
	_, err := loadConfig(Options{})
	assert.Error(t, err)

	cfg, err := loadConfig(Options{Discover: true, Instance: "kitchen"})
	require.NoError(t, err)
	assert.True(t, cfg.Discovery.Enabled)
	assert.Equal(t, "kitchen", cfg.Discovery.Instance)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(Options{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSetupLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	setupLogger(slog.LevelInfo, "json", &buf).Info("hello", "k", "v")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), buf.String())

	buf.Reset()
	setupLogger(slog.LevelWarn, "text", &buf).Info("dropped")
	assert.Empty(t, buf.String())
}

func TestMetricsServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheus(reg)
	rec.HeartbeatTimeout()

	srv := newMetricsServer("127.0.0.1:0", reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })

	rr := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "eventlink_heartbeat_timeouts_total 1")
	assert.Contains(t, rr.Body.String(), "go_goroutines")

	rr = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "OK", rr.Body.String())
}
