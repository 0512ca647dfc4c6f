package runtime

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	configpkg "github.com/capkit/capkit/internal/runtime/config"
	loggingpkg "github.com/capkit/capkit/internal/runtime/logging"
)

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func newTestConfig() *configpkg.Config {
	return &configpkg.Config{
		Enabled:       true,
		MaxConcurrent: 2,
		CacheCapacity: 8,
		QueueCapacity: 16,
	}
}

// newTestCapability builds and activates a capability with an isolated
// Prometheus registry.
func newTestCapability(t *testing.T, conf *configpkg.Config, processor Processor) *Capability {
	t.Helper()

	c, err := New("test", conf, processor, Dependencies{
		Logger:     newTestLogger(),
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	require.NoError(t, c.Activate(context.Background()))
	t.Cleanup(func() { _ = c.Deactivate(context.Background()) })
	return c
}

func echoProcessor(_ context.Context, req *Request, _ *configpkg.Config) (any, error) {
	return req.Payload, nil
}

// collectResults drains n results from the stream or fails the test.
func collectResults(t *testing.T, stream <-chan *Result, n int) []*Result {
	t.Helper()

	out := make([]*Result, 0, n)
	for len(out) < n {
		select {
		case res, ok := <-stream:
			require.True(t, ok, "result stream closed early")
			out = append(out, res)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for result %d of %d", len(out)+1, n)
		}
	}
	return out
}
