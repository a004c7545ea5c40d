package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Health status values reported for a feed provider.
const (
	StatusOK       = "OK"
	StatusDegraded = "DEGRADED"
	StatusDown     = "DOWN"
)

// ProviderHealth is a point-in-time view of one feed provider.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State

	// Counts are the breaker's counters for its current interval.
	Counts gobreaker.Counts

	// ConsecutiveFailures counts failed calls since the last success. Unlike
	// Counts it survives breaker interval resets.
	ConsecutiveFailures int

	// LastSuccessAt and LastFailureAt are zero until the first call.
	LastSuccessAt time.Time
	LastFailureAt time.Time
	LastError     string
}

// Status reports DOWN while the circuit is open, and DEGRADED while it is
// probing or when the most recent call failed.
func (h ProviderHealth) Status() string {
	switch {
	case h.CircuitState == gobreaker.StateOpen:
		return StatusDown
	case h.CircuitState == gobreaker.StateHalfOpen, h.ConsecutiveFailures > 0:
		return StatusDegraded
	default:
		return StatusOK
	}
}

// Registry tracks feed clients and the outcome of their calls.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*registeredProvider
}

type registeredProvider struct {
	client              *Client
	consecutiveFailures int
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastError           string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*registeredProvider),
	}
}

// Register adds a client, replacing any client with the same name.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &registeredProvider{client: client}
}

// RecordSuccess records a successful call. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		p.lastSuccessAt = time.Now()
		p.consecutiveFailures = 0
	}
}

// RecordFailure records a failed call. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		p.lastFailureAt = time.Now()
		p.consecutiveFailures++
		if err != nil {
			p.lastError = err.Error()
		}
	}
}

// Health returns the health of one provider.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return ProviderHealth{}, false
	}
	return p.health(name), true
}

// All returns the health of every registered provider, sorted by name.
func (r *Registry) All() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]ProviderHealth, 0, len(r.providers))
	for name, p := range r.providers {
		health = append(health, p.health(name))
	}
	sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })
	return health
}

func (p *registeredProvider) health(name string) ProviderHealth {
	return ProviderHealth{
		Name:                name,
		CircuitState:        p.client.BreakerState(),
		Counts:              p.client.BreakerCounts(),
		ConsecutiveFailures: p.consecutiveFailures,
		LastSuccessAt:       p.lastSuccessAt,
		LastFailureAt:       p.lastFailureAt,
		LastError:           p.lastError,
	}
}
