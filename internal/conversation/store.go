// Package conversation holds the ordered, append-mostly log of conversation
// entries. The store has a single writer (the orchestrator); render
// collaborators only read it.
package conversation

import (
	"sync"

	"hatbot/internal/domain"
)

// Store is the in-memory conversation log.
type Store struct {
	mu      sync.RWMutex
	entries []domain.ConversationEntry
}

func NewStore() *Store {
	return &Store{}
}

// Append adds an entry at the tail of the log.
func (s *Store) Append(e domain.ConversationEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Content == nil {
		e.Content = []domain.ContentBlock{}
	}
	s.entries = append(s.entries, e)
}

// InsertPlaceholder appends a transient entry and returns its id for later
// replacement.
func (s *Store) InsertPlaceholder(e domain.ConversationEntry) string {
	s.Append(e)
	return e.ID
}

// ReplacePlaceholder atomically swaps final into the placeholder's position.
// The placeholder is removed at most once: repeated replacement attempts for
// the same id are no-ops returning false.
func (s *Store) ReplacePlaceholder(id string, final domain.ConversationEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if final.Content == nil {
		final.Content = []domain.ContentBlock{}
	}
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries[i] = final
			return true
		}
	}
	return false
}

// All returns a copy of the ordered entry sequence.
func (s *Store) All() []domain.ConversationEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ConversationEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries in the log.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear empties the log.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}
