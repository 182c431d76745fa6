// Package session persists per-conversation backend continuation tokens.
// Each conversation owns one store scope; within it tokens are keyed by
// backend label. Three implementations are provided: in-process memory,
// Redis with TTL, and Postgres.
package session

import (
	"context"
	"sync"

	"github.com/storepulse/chatbot/genie"
)

// Store holds the continuation tokens of one conversation, keyed by backend
// label. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the token for a backend and whether one exists.
	Get(ctx context.Context, backend string) (genie.Token, bool, error)

	// Set stores or replaces the token for a backend.
	Set(ctx context.Context, backend string, token genie.Token) error

	// Clear removes the token for one backend.
	Clear(ctx context.Context, backend string) error

	// ClearAll removes every token of the conversation.
	ClearAll(ctx context.Context) error
}

// MemoryStore is an in-process Store. It is the default for CLI sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]genie.Token
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]genie.Token)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, backend string) (genie.Token, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[backend]
	return token, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, backend string, token genie.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[backend] = token
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, backend string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, backend)
	return nil
}

// ClearAll implements Store.
func (s *MemoryStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]genie.Token)
	return nil
}
