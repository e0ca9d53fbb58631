package resilience

import (
	"slices"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Upstream health statuses reported by the API health endpoint.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// UpstreamHealth is a snapshot of one upstream client.
type UpstreamHealth struct {
	Name          string           `json:"name"`
	Status        string           `json:"status"`
	CircuitState  gobreaker.State  `json:"-"`
	Counts        gobreaker.Counts `json:"-"`
	LastSuccessAt *time.Time       `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time       `json:"lastFailureAt,omitempty"`
	LastError     string           `json:"lastError,omitempty"`
}

// IsHealthy reports whether the breaker is closed.
func (h *UpstreamHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded reports whether the breaker is half-open.
func (h *UpstreamHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy reports whether the breaker is open.
func (h *UpstreamHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks upstream clients and their last outcomes.
type Registry struct {
	mu        sync.RWMutex
	upstreams map[string]*registered
	now       func() time.Time
}

type registered struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		upstreams: make(map[string]*registered),
		now:       time.Now,
	}
}

// Register adds or replaces a client under name.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upstreams[name] = &registered{client: client}
}

// Unregister removes an upstream.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.upstreams, name)
}

// RecordSuccess notes a successful call. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.upstreams[name]; ok {
		now := r.now()
		u.lastSuccessAt = &now
	}
}

// RecordFailure notes a failed call. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.upstreams[name]; ok {
		now := r.now()
		u.lastFailureAt = &now
		if err != nil {
			u.lastError = err.Error()
		}
	}
}

// Health returns the snapshot of one upstream, or nil when unknown.
func (r *Registry) Health(name string) *UpstreamHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.upstreams[name]
	if !ok {
		return nil
	}
	return u.snapshot(name)
}

// AllHealth returns snapshots of every upstream sorted by name.
func (r *Registry) AllHealth() []*UpstreamHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*UpstreamHealth, 0, len(r.upstreams))
	for name, u := range r.upstreams {
		health = append(health, u.snapshot(name))
	}
	slices.SortFunc(health, func(a, b *UpstreamHealth) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return health
}

// Names returns the registered upstream names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.upstreams))
	for name := range r.upstreams {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered upstreams.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.upstreams)
}

func (u *registered) snapshot(name string) *UpstreamHealth {
	h := &UpstreamHealth{
		Name:          name,
		CircuitState:  u.client.CircuitBreakerState(),
		Counts:        u.client.CircuitBreakerCounts(),
		LastSuccessAt: u.lastSuccessAt,
		LastFailureAt: u.lastFailureAt,
		LastError:     u.lastError,
	}
	switch {
	case h.IsUnhealthy():
		h.Status = StatusUnhealthy
	case h.IsDegraded():
		h.Status = StatusDegraded
	default:
		h.Status = StatusHealthy
	}
	return h
}
