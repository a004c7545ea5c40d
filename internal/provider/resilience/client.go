package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without calling upstream while the provider's
// breaker is open or saturated with half-open requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// DefaultUserAgent is sent with every outbound feed request.
const DefaultUserAgent = "wxoverlay/1.0"

// ClientConfig configures a resilient feed client.
type ClientConfig struct {
	// Name identifies the provider in the breaker, logs and the registry.
	Name string

	// Timeout bounds each attempt, not the whole call.
	Timeout time.Duration

	// MaxRetries is the number of attempts after the first.
	MaxRetries uint64

	// BackoffBase and BackoffCap bound the exponential delay between
	// attempts.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	UserAgent string

	// Breaker overrides DefaultBreakerConfig(Name).
	Breaker *BreakerConfig

	// Registry, when set, receives the client and the outcome of each call.
	Registry *Registry

	Logger zerolog.Logger
}

// DefaultClientConfig returns the defaults used for frame feed clients.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:        name,
		Timeout:     8 * time.Second,
		MaxRetries:  2,
		BackoffBase: 200 * time.Millisecond,
		BackoffCap:  2 * time.Second,
		UserAgent:   DefaultUserAgent,
	}
}

func (c ClientConfig) withDefaults() ClientConfig {
	d := DefaultClientConfig(c.Name)
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = d.BackoffCap
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	return c
}

// UpstreamError reports a 5xx answer from a provider.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d %s", e.Status, http.StatusText(e.Status))
}

// Client is an HTTP client that retries transient failures with backoff and
// fails fast through a circuit breaker.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	log     zerolog.Logger
}

// NewClient builds a client and registers it when cfg.Registry is set.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	log := cfg.Logger.With().Str("provider", cfg.Name).Logger()

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
	}
	breakerCfg.Logger = log

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker[*http.Response](breakerCfg), //nolint:bodyclose // type parameter
		log:     log,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// BreakerState returns the current breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// BreakerCounts returns the breaker's counters for its current interval.
func (c *Client) BreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

// Do sends req, retrying network errors and 5xx answers. A 5xx that
// survives every retry is returned as the response with a nil error so the
// caller can inspect it. 4xx answers are never retried. While the breaker
// is open Do returns ErrCircuitOpen without calling upstream.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.BackoffBase
	bo.MaxInterval = c.cfg.BackoffCap
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)

	var last *http.Response
	keep := func(resp *http.Response) {
		if last != nil {
			_ = last.Body.Close()
		}
		last = resp
	}

	attempt := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // kept in last
			out := req.Clone(ctx)
			if out.Header.Get("User-Agent") == "" {
				out.Header.Set("User-Agent", c.cfg.UserAgent)
			}
			resp, err := c.http.Do(out)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= http.StatusInternalServerError {
				return resp, &UpstreamError{Status: resp.StatusCode}
			}
			return resp, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		if resp != nil {
			keep(resp)
		}
		return err
	}

	onRetry := func(err error, wait time.Duration) {
		c.log.Debug().Err(err).Dur("wait", wait).Str("url", req.URL.Redacted()).Msg("retrying feed request")
	}

	if err := backoff.RetryNotify(attempt, policy, onRetry); err != nil {
		c.recordFailure(err)
		if last != nil {
			return last, nil
		}
		return nil, err
	}
	c.recordSuccess()
	return last, nil
}

func (c *Client) recordSuccess() {
	if c.cfg.Registry != nil {
		c.cfg.Registry.RecordSuccess(c.cfg.Name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.cfg.Registry != nil {
		c.cfg.Registry.RecordFailure(c.cfg.Name, err)
	}
}
