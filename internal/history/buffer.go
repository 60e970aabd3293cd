// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

// Package history keeps a bounded FIFO buffer of recent messages per room,
// replayed to connections on join. Eviction is count-based, never TTL-based,
// and nothing here survives a process restart.
package history

import (
	"sync"

	"github.com/mfeltz/relaygate/internal/models"
)

// DefaultLimit is the per-room capacity when none is configured.
const DefaultLimit = 100

// Store holds one bounded buffer per room. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	rooms map[string][]models.ChatMessage
	limit int
}

// NewStore creates a Store with the given per-room capacity.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		rooms: make(map[string][]models.ChatMessage),
		limit: limit,
	}
}

// Append adds a message to its room's buffer, evicting the oldest entry when
// the buffer is at capacity.
func (s *Store) Append(msg models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.rooms[msg.Room]
	if len(buf) >= s.limit {
		// Shift rather than re-slice so the backing array cannot pin
		// evicted messages indefinitely.
		copy(buf, buf[1:])
		buf = buf[:len(buf)-1]
	}
	s.rooms[msg.Room] = append(buf, msg)
}

// Recent returns a copy of the room's buffered messages, oldest first.
func (s *Store) Recent(room string) []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf := s.rooms[room]
	out := make([]models.ChatMessage, len(buf))
	copy(out, buf)
	return out
}

// Len returns the current buffer length for a room.
func (s *Store) Len(room string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[room])
}

// DropRoom discards a room's buffer entirely. Used when the last member
// leaves a non-default room.
func (s *Store) DropRoom(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, room)
}
