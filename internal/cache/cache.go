// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides the bounded durable store of finalized message
// parts.
//
// The store maps a finished message id to the cacheable subset of its Part
// sequence so tool output survives navigation and restarts. It is written
// exactly once per message, at stream finish; cancelled streams are never
// cached. Capacity is capped with oldest-inserted-first eviction (plain
// FIFO, not LRU).
//
// Caching is strictly best-effort: a failing disk never blocks or fails
// the surrounding flow.
package cache

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/relay-tui/internal/part"
	"github.com/jeranaias/relay-tui/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultMaxEntries caps the number of cached messages.
	DefaultMaxEntries = 200

	// fileName is the single durable record holding all entries.
	fileName = "output_cache.json"
)

// =============================================================================
// STORE
// =============================================================================

// Store is the bounded message-id → parts cache.
type Store struct {
	mu      sync.Mutex
	path    string
	max     int
	entries map[string]json.RawMessage
	order   []string // insertion order, oldest first
}

// diskRecord is the on-disk layout: one JSON object under a fixed path.
type diskRecord struct {
	Entries map[string]json.RawMessage `json:"entries"`
	Order   []string                   `json:"order"`
}

// NewStore opens (or creates) the cache in the given directory.
//
// A missing or corrupt record starts the store empty rather than failing:
// the cache is an accelerant, never a source of truth.
func NewStore(dir string) *Store {
	s := &Store{
		path:    filepath.Join(dir, fileName),
		max:     DefaultMaxEntries,
		entries: make(map[string]json.RawMessage),
	}
	s.loadLocked()
	return s
}

// NewStoreWithLimit opens a store with a custom entry cap. Used by tests.
func NewStoreWithLimit(dir string, max int) *Store {
	s := NewStore(dir)
	if max > 0 {
		s.max = max
	}
	return s
}

func (s *Store) loadLocked() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	var rec diskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return
	}

	// Rebuild order from the record, dropping ids without an entry.
	for _, id := range rec.Order {
		if raw, ok := rec.Entries[id]; ok {
			s.entries[id] = raw
			s.order = append(s.order, id)
		}
	}
}

// =============================================================================
// WRITE PATH
// =============================================================================

// Put stores the cacheable subset of a finished message's parts.
//
// Mid-flight tool invocations are filtered out; if nothing cacheable
// remains, no entry is created. Persistence errors are swallowed.
func (s *Store) Put(messageID string, parts []part.Part) {
	if s == nil || messageID == "" {
		return
	}

	keep := part.FilterCacheable(parts)
	if len(keep) == 0 {
		return
	}

	raw, err := part.MarshalParts(keep)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[messageID]; !exists {
		s.order = append(s.order, messageID)
	}
	s.entries[messageID] = raw

	// FIFO eviction: over the cap, the oldest-inserted entries go first.
	for len(s.order) > s.max {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}

	s.flushLocked()
}

// Remove deletes an entry, if present.
func (s *Store) Remove(messageID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[messageID]; !ok {
		return
	}
	delete(s.entries, messageID)
	for i, id := range s.order {
		if id == messageID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.flushLocked()
}

// flushLocked persists the whole record. Errors never surface to the
// chat flow; quota or disk failures get a log line and nothing more.
func (s *Store) flushLocked() {
	rec := diskRecord{Entries: s.entries, Order: s.order}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := util.AtomicWriteFile(s.path, data, 0644); err != nil {
		log.Printf("cache flush: %v", err)
	}
}

// =============================================================================
// READ PATH
// =============================================================================

// Get returns the stored part sequence for a message id.
func (s *Store) Get(messageID string) ([]part.Part, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	raw, ok := s.entries[messageID]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}

	parts, err := part.UnmarshalParts(raw)
	if err != nil || len(parts) == 0 {
		return nil, false
	}
	return parts, true
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
