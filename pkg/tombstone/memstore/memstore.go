// Package memstore is an in-memory tombstone.Store used by tests and
// local runs without store credentials.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cairnhq/cairn/pkg/tombstone"
)

// Store keeps records and events in process memory.
type Store struct {
	mu      sync.RWMutex
	records map[string]tombstone.Record
	events  []tombstone.Event
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[string]tombstone.Record)}
}

// UpsertTombstone inserts or replaces the record with the same identity.
func (s *Store) UpsertTombstone(_ context.Context, rec tombstone.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.TombstoneID] = rec
	return nil
}

// AppendEvent appends one invocation event.
func (s *Store) AppendEvent(_ context.Context, ev tombstone.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// ListTombstones returns matching records ordered by registration time,
// ties broken by identity for stable output.
func (s *Store) ListTombstones(_ context.Context, project string, status tombstone.Status, registeredBefore time.Time) ([]tombstone.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []tombstone.Record
	for _, rec := range s.records {
		if rec.ProjectName != project || rec.Status != status {
			continue
		}
		if !rec.RegisteredAt.Before(registeredBefore) {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}
		return out[i].TombstoneID < out[j].TombstoneID
	})
	return out, nil
}

// ListEvents returns all events referencing the given tombstone IDs.
func (s *Store) ListEvents(_ context.Context, tombstoneIDs []string) ([]tombstone.Event, error) {
	wanted := make(map[string]bool, len(tombstoneIDs))
	for _, id := range tombstoneIDs {
		wanted[id] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []tombstone.Event
	for _, ev := range s.events {
		if wanted[ev.TombstoneID] {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Records returns a snapshot of all stored records (test helper).
func (s *Store) Records() []tombstone.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tombstone.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TombstoneID < out[j].TombstoneID })
	return out
}

// Events returns a snapshot of all stored events (test helper).
func (s *Store) Events() []tombstone.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]tombstone.Event(nil), s.events...)
}
