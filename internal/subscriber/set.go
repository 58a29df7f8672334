// Package subscriber keeps the set of chats that receive notifications.
package subscriber

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store persists subscriber ids across restarts.
type Store interface {
	Add(ctx context.Context, chatID int64) error
	Remove(ctx context.Context, chatID int64) error
	Load(ctx context.Context) ([]int64, error)
}

// Set is a concurrency-safe set of chat ids with optional persistence.
// Store failures are logged; the in-memory set stays authoritative.
type Set struct {
	mu    sync.RWMutex
	ids   map[int64]struct{}
	store Store
	// persist orders store writes the same way as the memory changes.
	// Readers only take mu, so a slow store never blocks Snapshot.
	persist sync.Mutex
}

// NewSet creates an empty set. store may be nil.
func NewSet(store Store) *Set {
	return &Set{ids: make(map[int64]struct{}), store: store}
}

// Load merges the persisted ids into the set.
func (s *Set) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	ids, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	s.mu.Unlock()
	log.Info().Int("count", len(ids)).Msg("subscribers loaded")
	return nil
}

// Add inserts chatID and reports whether it was new.
func (s *Set) Add(ctx context.Context, chatID int64) bool {
	s.persist.Lock()
	defer s.persist.Unlock()

	s.mu.Lock()
	_, exists := s.ids[chatID]
	s.ids[chatID] = struct{}{}
	s.mu.Unlock()

	if !exists && s.store != nil {
		if err := s.store.Add(ctx, chatID); err != nil {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("persist subscriber")
		}
	}
	return !exists
}

// Remove deletes chatID and reports whether it was present.
func (s *Set) Remove(ctx context.Context, chatID int64) bool {
	s.persist.Lock()
	defer s.persist.Unlock()

	s.mu.Lock()
	_, exists := s.ids[chatID]
	delete(s.ids, chatID)
	s.mu.Unlock()

	if exists && s.store != nil {
		if err := s.store.Remove(ctx, chatID); err != nil {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("unpersist subscriber")
		}
	}
	return exists
}

func (s *Set) Contains(chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[chatID]
	return ok
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Snapshot returns the ids in ascending order. The slice is a copy, so
// delivery can iterate it while the set changes.
func (s *Set) Snapshot() []int64 {
	s.mu.RLock()
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
