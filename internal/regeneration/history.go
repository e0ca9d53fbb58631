package regeneration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viajejapon/planner/internal/storage"
)

// MaxHistoryEntries is the number of regenerations kept per trip.
const MaxHistoryEntries = 50

// HistoryEntry records one regeneration.
type HistoryEntry struct {
	Timestamp  time.Time   `json:"timestamp"`
	DayIndex   int         `json:"dayIndex"`
	OptionID   string      `json:"optionId"`
	Comparison *Comparison `json:"comparison,omitempty"`
}

// Stats summarises the regeneration history of a trip.
type Stats struct {
	TotalRegenerations int            `json:"totalRegenerations"`
	FavoriteOption     string         `json:"favoriteOption,omitempty"`
	OptionCounts       map[string]int `json:"optionCounts,omitempty"`
	LastRegeneration   *HistoryEntry  `json:"lastRegeneration,omitempty"`
}

// HistoryStore keeps per-trip regeneration history in a storage.Store.
type HistoryStore struct {
	store storage.Store
	now   func() time.Time

	// mu serialises read-modify-write of history documents in this process.
	mu sync.Mutex
}

// NewHistoryStore creates a history store over store.
func NewHistoryStore(store storage.Store) *HistoryStore {
	return &HistoryStore{store: store, now: time.Now}
}

func historyKey(tripID string) string {
	return "regen_history_" + tripID
}

// Append records a regeneration, dropping the oldest entries beyond
// MaxHistoryEntries.
func (h *HistoryStore) Append(ctx context.Context, tripID string, dayIndex int, optionID string, comparison *Comparison) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.load(ctx, tripID)
	if err != nil {
		return err
	}

	entries = append(entries, HistoryEntry{
		Timestamp:  h.now().UTC(),
		DayIndex:   dayIndex,
		OptionID:   optionID,
		Comparison: comparison,
	})
	if len(entries) > MaxHistoryEntries {
		entries = entries[len(entries)-MaxHistoryEntries:]
	}

	if err := storage.SetJSON(ctx, h.store, historyKey(tripID), entries); err != nil {
		return fmt.Errorf("saving regeneration history: %w", err)
	}
	return nil
}

// List returns the history of a trip, oldest first.
func (h *HistoryStore) List(ctx context.Context, tripID string) ([]HistoryEntry, error) {
	return h.load(ctx, tripID)
}

// Stats summarises the history of a trip. The favorite option is the most
// used one, ties going to the option used first.
func (h *HistoryStore) Stats(ctx context.Context, tripID string) (Stats, error) {
	entries, err := h.load(ctx, tripID)
	if err != nil {
		return Stats{}, err
	}
	if len(entries) == 0 {
		return Stats{}, nil
	}

	counts := make(map[string]int)
	var order []string
	for _, e := range entries {
		if _, seen := counts[e.OptionID]; !seen {
			order = append(order, e.OptionID)
		}
		counts[e.OptionID]++
	}

	favorite := order[0]
	for _, id := range order[1:] {
		if counts[id] > counts[favorite] {
			favorite = id
		}
	}

	last := entries[len(entries)-1]
	return Stats{
		TotalRegenerations: len(entries),
		FavoriteOption:     favorite,
		OptionCounts:       counts,
		LastRegeneration:   &last,
	}, nil
}

func (h *HistoryStore) load(ctx context.Context, tripID string) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	if err := storage.GetJSON(ctx, h.store, historyKey(tripID), &entries); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading regeneration history: %w", err)
	}
	return entries, nil
}
