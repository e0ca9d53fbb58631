package featureflags

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository keeps flags in process memory for single-node
// deployments and tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	flags map[string]Flag
	now   func() time.Time
}

// NewInMemoryRepository creates a repository holding the default flags.
func NewInMemoryRepository() *InMemoryRepository {
	r := NewInMemoryRepositoryWith()
	for key, flag := range DefaultFlags() {
		r.flags[key] = *flag
	}
	return r
}

// NewInMemoryRepositoryWith creates a repository holding exactly flags.
func NewInMemoryRepositoryWith(flags ...Flag) *InMemoryRepository {
	r := &InMemoryRepository{flags: make(map[string]Flag, len(flags)), now: time.Now}
	for _, f := range flags {
		r.flags[f.Key] = f
	}
	return r
}

func (r *InMemoryRepository) GetFlag(_ context.Context, key string) (*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flag, ok := r.flags[key]
	if !ok {
		return nil, ErrFlagNotFound
	}
	return &flag, nil
}

func (r *InMemoryRepository) GetAllFlags(_ context.Context) (map[string]*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Flag, len(r.flags))
	for key, flag := range r.flags {
		out[key] = &flag
	}
	return out, nil
}

func (r *InMemoryRepository) SetFlags(_ context.Context, flags []*Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := r.now().UTC()
	for _, f := range flags {
		stored := *f
		stored.UpdatedAt = at
		r.flags[f.Key] = stored
	}
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
