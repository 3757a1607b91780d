// Package reconcile cross-references registered tombstones against
// observed invocation events to produce the confirmed-dead list.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/cairnhq/cairn/pkg/tombstone"
)

// Engine computes confirmed-dead tombstones from the external store. It
// is decoupled from the analysis pipeline: the store is its only input.
type Engine struct {
	store tombstone.Store
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over the given store.
func New(store tombstone.Store, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ConfirmedDead returns the active tombstones registered at least the
// given number of days ago that have never produced an invocation event.
// A single event at any point in history exonerates a tombstone: old
// events never expire. The result preserves the store's registration
// order.
func (e *Engine) ConfirmedDead(ctx context.Context, project string, days int) ([]tombstone.Record, error) {
	cutoff := e.now().UTC().AddDate(0, 0, -days)

	records, err := e.store.ListTombstones(ctx, project, tombstone.StatusActive, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list tombstones: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.TombstoneID
	}

	events, err := e.store.ListEvents(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	triggered := make(map[string]bool, len(events))
	for _, ev := range events {
		triggered[ev.TombstoneID] = true
	}

	var dead []tombstone.Record
	for _, rec := range records {
		if !triggered[rec.TombstoneID] {
			dead = append(dead, rec)
		}
	}
	return dead, nil
}
