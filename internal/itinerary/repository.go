package itinerary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viajejapon/planner/internal/storage"
)

// Repository persists trips.
type Repository interface {
	// Get returns the trip or ErrTripNotFound.
	Get(ctx context.Context, id string) (*Trip, error)

	// Save creates or replaces a trip.
	Save(ctx context.Context, trip *Trip) error
}

// StoreRepository keeps trips as JSON documents in a storage.Store.
type StoreRepository struct {
	store storage.Store
	now   func() time.Time
}

// NewStoreRepository creates a trip repository over store.
func NewStoreRepository(store storage.Store) *StoreRepository {
	return &StoreRepository{store: store, now: time.Now}
}

func tripKey(id string) string {
	return "trip:" + id
}

// Get implements Repository.
func (r *StoreRepository) Get(ctx context.Context, id string) (*Trip, error) {
	var trip Trip
	if err := storage.GetJSON(ctx, r.store, tripKey(id), &trip); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTripNotFound, id)
		}
		return nil, fmt.Errorf("loading trip %s: %w", id, err)
	}
	return &trip, nil
}

// Save implements Repository.
func (r *StoreRepository) Save(ctx context.Context, trip *Trip) error {
	if trip.ID == "" {
		return errors.New("trip id is required")
	}
	trip.UpdatedAt = r.now().UTC()
	if err := storage.SetJSON(ctx, r.store, tripKey(trip.ID), trip); err != nil {
		return fmt.Errorf("saving trip %s: %w", trip.ID, err)
	}
	return nil
}

var _ Repository = (*StoreRepository)(nil)
