package storage

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedStore is a read-through, write-through cache in front of another Store.
// Values are cached per process; use it only where a single writer owns the keys
// or short staleness is acceptable.
type CachedStore struct {
	next  Store
	cache *cache.Cache
}

// NewCachedStore wraps next with an in-process cache. A ttl of zero disables expiry.
func NewCachedStore(next Store, ttl time.Duration) *CachedStore {
	expiration := ttl
	if ttl == 0 {
		expiration = cache.NoExpiration
	}
	return &CachedStore{
		next:  next,
		cache: cache.New(expiration, 10*time.Minute),
	}
}

// Get implements Store.
func (s *CachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := s.cache.Get(key); ok {
		return append([]byte(nil), v.([]byte)...), nil
	}

	value, err := s.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, append([]byte(nil), value...), cache.DefaultExpiration)
	return value, nil
}

// Set implements Store.
func (s *CachedStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.next.Set(ctx, key, value); err != nil {
		s.cache.Delete(key)
		return err
	}
	s.cache.Set(key, append([]byte(nil), value...), cache.DefaultExpiration)
	return nil
}

// Delete implements Store.
func (s *CachedStore) Delete(ctx context.Context, key string) error {
	s.cache.Delete(key)
	return s.next.Delete(ctx, key)
}

var _ Store = (*CachedStore)(nil)
