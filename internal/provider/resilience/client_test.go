package resilience_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/wxoverlay/internal/provider/resilience"
)

// fastConfig retries quickly and never trips unless the test says so.
func fastConfig(name string, retries uint64) resilience.ClientConfig {
	breaker := resilience.DefaultBreakerConfig(name)
	breaker.Trip = func(gobreaker.Counts) bool { return false }

	cfg := resilience.DefaultClientConfig(name)
	cfg.MaxRetries = retries
	cfg.BackoffBase = 5 * time.Millisecond
	cfg.BackoffCap = 20 * time.Millisecond
	cfg.Breaker = &breaker
	return cfg
}

// statusServer answers with statuses[i] on the i-th call and repeats the
// last entry afterwards.
func statusServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		w.WriteHeader(statuses[n])
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func get(t *testing.T, ctx context.Context, client *resilience.Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	if resp != nil {
		t.Cleanup(func() { _ = resp.Body.Close() })
	}
	return resp, err
}

func TestClient_SetsUserAgent(t *testing.T) {
	var agent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := get(t, context.Background(), resilience.NewClient(resilience.DefaultClientConfig("rainviewer")), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, resilience.DefaultUserAgent, agent)
}

func TestClient_Retries(t *testing.T) {
	tests := []struct {
		name       string
		retries    uint64
		statuses   []int
		wantStatus int
		wantCalls  int32
	}{
		{"recovers after 5xx", 5, []int{503, 503, 200}, 200, 3},
		{"4xx is final", 3, []int{400}, 400, 1},
		{"exhausted 5xx returned", 2, []int{502}, 502, 3},
		{"no retries", 0, []int{500, 200}, 500, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := statusServer(t, tt.statuses...)
			client := resilience.NewClient(fastConfig("feed", tt.retries))

			resp, err := get(t, context.Background(), client, server.URL)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestClient_BreakerOpensAndFailsFast(t *testing.T) {
	server, calls := statusServer(t, http.StatusInternalServerError)

	cfg := fastConfig("trip", 0)
	cfg.Breaker.Trip = resilience.ShouldTrip
	cfg.Breaker.OpenFor = time.Minute
	client := resilience.NewClient(cfg)

	for i := 0; i < 3; i++ {
		_, _ = get(t, context.Background(), client, server.URL)
	}
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState())

	_, err := get(t, context.Background(), client, server.URL)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load(), "open breaker does not call upstream")
}

func TestClient_AttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := fastConfig("slow", 0)
	cfg.Timeout = 50 * time.Millisecond

	_, err := get(t, context.Background(), resilience.NewClient(cfg), server.URL)
	assert.Error(t, err)
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := get(t, ctx, resilience.NewClient(fastConfig("cancel", 3)), server.URL)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond, "retries stop with the context")
}

func TestShouldTrip(t *testing.T) {
	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{"too few requests", gobreaker.Counts{Requests: 4, TotalFailures: 2, ConsecutiveFailures: 2}, false},
		{"low failure rate", gobreaker.Counts{Requests: 10, TotalFailures: 4}, false},
		{"half failing", gobreaker.Counts{Requests: 10, TotalFailures: 5}, true},
		{"five of five", gobreaker.Counts{Requests: 5, TotalFailures: 5}, true},
		{"three in a row", gobreaker.Counts{Requests: 3, TotalFailures: 3, ConsecutiveFailures: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resilience.ShouldTrip(tt.counts))
		})
	}
}

func TestDefaultConfigs(t *testing.T) {
	cfg := resilience.DefaultClientConfig("rainviewer")
	assert.Equal(t, "rainviewer", cfg.Name)
	assert.Equal(t, 8*time.Second, cfg.Timeout)
	assert.Equal(t, uint64(2), cfg.MaxRetries)
	assert.Nil(t, cfg.Breaker, "breaker defaults are applied by NewClient")

	breaker := resilience.DefaultBreakerConfig("rainviewer")
	assert.Equal(t, uint32(1), breaker.HalfOpenRequests)
	assert.Equal(t, 30*time.Second, breaker.OpenFor)
	assert.NotNil(t, breaker.Trip)
}

func TestUpstreamError(t *testing.T) {
	err := &resilience.UpstreamError{Status: http.StatusServiceUnavailable}
	assert.Equal(t, "upstream returned 503 Service Unavailable", err.Error())
}

func TestClient_RecordsHealthInRegistry(t *testing.T) {
	server, _ := statusServer(t, http.StatusOK, http.StatusBadGateway)

	registry := resilience.NewRegistry()
	cfg := fastConfig("rainviewer", 0)
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	_, err := get(t, context.Background(), client, server.URL)
	require.NoError(t, err)

	health, ok := registry.Health("rainviewer")
	require.True(t, ok)
	assert.False(t, health.LastSuccessAt.IsZero())
	assert.True(t, health.LastFailureAt.IsZero())

	resp, err := get(t, context.Background(), client, server.URL)
	require.NoError(t, err, "exhausted 5xx is returned as a response")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	health, _ = registry.Health("rainviewer")
	assert.Equal(t, 1, health.ConsecutiveFailures)
	assert.Equal(t, resilience.StatusDegraded, health.Status())
	assert.Equal(t, "upstream returned 502 Bad Gateway", health.LastError)
}
