// Package session keeps per-conversation history in memory. History is a
// bounded FIFO of user/assistant exchanges; ids are opaque and unguessable.
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kailas-cloud/coursechat/internal/domain"
)

type exchange struct {
	user      string
	assistant string
}

// Store holds conversation history keyed by session id. Safe for
// concurrent use.
type Store struct {
	mu         sync.Mutex
	sessions   map[string][]exchange
	maxHistory int
}

// NewStore creates a session store keeping at most maxHistory exchanges
// per session.
func NewStore(maxHistory int) *Store {
	return &Store{
		sessions:   make(map[string][]exchange),
		maxHistory: maxHistory,
	}
}

// Create registers a new empty session and returns its id.
func (s *Store) Create() string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = nil
	return id
}

// AddExchange appends one user/assistant pair, evicting the oldest pair
// once the session exceeds the history bound. Unknown ids start a session
// implicitly.
func (s *Store) AddExchange(id, user, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[id], exchange{user: user, assistant: assistant})
	if len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}
	s.sessions[id] = history
}

// History returns the session transcript, oldest exchange first, or ""
// for an unknown or empty session.
func (s *Store) History(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.sessions[id]
	if len(history) == 0 {
		return ""
	}

	lines := make([]string, 0, len(history)*2)
	for _, e := range history {
		lines = append(lines, fmt.Sprintf("User: %s", e.user))
		lines = append(lines, fmt.Sprintf("Assistant: %s", e.assistant))
	}
	return strings.Join(lines, "\n")
}

// Clear drops the history of a session, keeping the id usable. Returns
// domain.ErrSessionNotFound for an id that was never created.
func (s *Store) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	s.sessions[id] = nil
	return nil
}
