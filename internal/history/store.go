// Package history implements the per-session conversation history store.
//
// Sessions live in process memory only: they are created on first access,
// expire a fixed idle duration after their last write, and the store holds
// at most a configured number of them at once. Losing a session degrades
// conversational context, it never corrupts it.
package history

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a message written by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a reply produced by the model.
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session's conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session owns the ordered message list for one conversation thread.
// The pointer returned by GetOrCreate stays stable until the session is
// cleared or evicted, so appends through it are visible to later lookups.
type Session struct {
	Messages []Message
}

// Store is a TTL- and capacity-bounded map from session id to history.
// All operations are safe for concurrent use. There is no per-session
// locking across a whole chat turn: two concurrent turns for the same id
// may interleave their committed messages.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	capacity int
}

type entry struct {
	session   *Session
	updatedAt time.Time
}

// New creates a Store with the given idle TTL and maximum session count.
func New(ttl time.Duration, capacity int) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		capacity: capacity,
	}
}

// GetOrCreate returns the session for id, creating an empty one if the id
// is unknown or its previous session has expired.
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, ok := s.sessions[id]; ok {
		if now.Sub(e.updatedAt) <= s.ttl {
			return e.session
		}
		// Expired but not yet swept: drop it and start fresh.
		delete(s.sessions, id)
	}

	e := &entry{session: &Session{}, updatedAt: now}
	s.sessions[id] = e
	s.evictOverCapacityLocked(id)
	return e.session
}

// RecordTurn appends one user message and one assistant message to the
// session and refreshes its expiry. The session is created if absent, so a
// turn committed after a sweep still lands somewhere.
func (s *Store) RecordTurn(id, userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.sessions[id]
	if !ok || now.Sub(e.updatedAt) > s.ttl {
		e = &entry{session: &Session{}}
		s.sessions[id] = e
	}
	e.session.Messages = append(e.session.Messages,
		Message{Role: RoleUser, Content: userText},
		Message{Role: RoleAssistant, Content: assistantText},
	)
	e.updatedAt = now
	s.evictOverCapacityLocked(id)
}

// Snapshot registers the session like GetOrCreate and returns a copy of
// its messages, taken atomically so a concurrent RecordTurn cannot be
// observed half-applied.
func (s *Store) Snapshot(id string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.sessions[id]
	if !ok || now.Sub(e.updatedAt) > s.ttl {
		e = &entry{session: &Session{}, updatedAt: now}
		s.sessions[id] = e
		s.evictOverCapacityLocked(id)
	}
	return append([]Message(nil), e.session.Messages...)
}

// Clear removes the session unconditionally. Clearing an unknown id is a
// no-op.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of currently tracked sessions, expired entries
// not yet swept included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// evictOverCapacityLocked removes least-recently-updated sessions until the
// store fits its capacity, never evicting keep. Callers hold s.mu.
func (s *Store) evictOverCapacityLocked(keep string) {
	for len(s.sessions) > s.capacity {
		oldestID := ""
		var oldestAt time.Time
		for id, e := range s.sessions {
			if id == keep {
				continue
			}
			if oldestID == "" || e.updatedAt.Before(oldestAt) {
				oldestID = id
				oldestAt = e.updatedAt
			}
		}
		if oldestID == "" {
			return
		}
		delete(s.sessions, oldestID)
	}
}

// sweep removes all sessions idle longer than the TTL and returns how many
// were dropped.
func (s *Store) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl)
	removed := 0
	for id, e := range s.sessions {
		if e.updatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs a background goroutine that periodically removes
// expired sessions until ctx is canceled.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", s.ttl)

		for {
			select {
			case <-ticker.C:
				if removed := s.sweep(); removed > 0 {
					slog.Info("Session sweeper removed expired sessions", "count", removed)
				}
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
