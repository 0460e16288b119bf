package aigen

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// HistoryStore defines the durable storage interface for generation history.
type HistoryStore interface {
	// Insert records a new history entry.
	Insert(ctx context.Context, entry HistoryEntry) error

	// ListByUser returns the user's entries ordered by creation time
	// descending, limited to limit entries.
	ListByUser(ctx context.Context, userID string, limit int) ([]HistoryEntry, error)

	// CountByUser returns the number of entries stored for the user.
	CountByUser(ctx context.Context, userID string) (int, error)

	// DeleteByUser removes all entries for the user.
	DeleteByUser(ctx context.Context, userID string) error
}

// LibraryStore persists entries a signed-in user explicitly saved to their
// content library.
type LibraryStore interface {
	Save(ctx context.Context, userID string, entry HistoryEntry) error
}

// InMemoryHistoryStore is an in-memory implementation of HistoryStore.
type InMemoryHistoryStore struct {
	mu      sync.RWMutex
	entries map[string][]HistoryEntry
}

// NewInMemoryHistoryStore creates a new instance of InMemoryHistoryStore.
func NewInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{
		entries: make(map[string][]HistoryEntry),
	}
}

// Insert records a new history entry.
func (s *InMemoryHistoryStore) Insert(ctx context.Context, entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.UserID] = append(s.entries[entry.UserID], entry)
	return nil
}

// ListByUser returns the user's entries, most recent first.
func (s *InMemoryHistoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.entries[userID]
	out := make([]HistoryEntry, len(stored))
	copy(out, stored)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountByUser returns the number of entries stored for the user.
func (s *InMemoryHistoryStore) CountByUser(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[userID]), nil
}

// DeleteByUser removes all entries for the user.
func (s *InMemoryHistoryStore) DeleteByUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

// InMemoryLibraryStore is an in-memory implementation of LibraryStore.
type InMemoryLibraryStore struct {
	mu    sync.RWMutex
	saved map[string][]HistoryEntry
}

// NewInMemoryLibraryStore creates a new instance of InMemoryLibraryStore.
func NewInMemoryLibraryStore() *InMemoryLibraryStore {
	return &InMemoryLibraryStore{
		saved: make(map[string][]HistoryEntry),
	}
}

// Save implements LibraryStore.
func (s *InMemoryLibraryStore) Save(ctx context.Context, userID string, entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[userID] = append(s.saved[userID], entry)
	return nil
}

// Saved returns the entries saved by the user.
func (s *InMemoryLibraryStore) Saved(userID string) []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]HistoryEntry, len(s.saved[userID]))
	copy(out, s.saved[userID])
	return out
}

// entryByID finds an entry in a slice by id; used by the orchestrator.
func entryByID(entries []HistoryEntry, id uuid.UUID) (HistoryEntry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return HistoryEntry{}, false
}
