package preference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/viajejapon/planner/internal/storage"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Store  storage.Store
	Logger zerolog.Logger
	Now    func() time.Time
}

// Service loads and trains per-user models kept in a storage.Store.
type Service struct {
	store  storage.Store
	logger zerolog.Logger
	now    func() time.Time

	// mu serialises read-modify-write of models in this process.
	mu sync.Mutex
}

// NewService creates a preference service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:  cfg.Store,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
}

func modelKey(userID string) string {
	return "ml_preference_model:" + userID
}

// Model returns the user's model, or an empty one for new users.
func (s *Service) Model(ctx context.Context, userID string) (*Model, error) {
	m := NewModel()
	if err := storage.GetJSON(ctx, s.store, modelKey(userID), m); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewModel(), nil
		}
		return nil, fmt.Errorf("loading preference model: %w", err)
	}
	m.ensureMaps()
	return m, nil
}

// Track trains the user's model with an event and persists it.
func (s *Service) Track(ctx context.Context, userID string, e Event) (*Model, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.Model(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := m.Train(e, s.now()); err != nil {
		return nil, err
	}
	if err := storage.SetJSON(ctx, s.store, modelKey(userID), m); err != nil {
		return nil, fmt.Errorf("saving preference model: %w", err)
	}

	s.logger.Debug().
		Str("user_id", userID).
		Str("event", string(e.Type)).
		Str("category", e.Activity.Category).
		Int("total_actions", m.TotalActions).
		Msg("preference model trained")

	return m, nil
}

// Reset discards the user's model.
func (s *Service) Reset(ctx context.Context, userID string) error {
	if err := s.store.Delete(ctx, modelKey(userID)); err != nil {
		return fmt.Errorf("resetting preference model: %w", err)
	}
	return nil
}
