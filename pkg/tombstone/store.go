package tombstone

import (
	"context"
	"time"
)

// Store is the external persistence API for tombstone records and
// invocation events. Concrete transport lives behind this interface; see
// the resthook and memstore subpackages.
type Store interface {
	// UpsertTombstone registers a candidate. Calling it again with the
	// same identity updates the existing record rather than creating a
	// second one.
	UpsertTombstone(ctx context.Context, rec Record) error

	// AppendEvent records one invocation. Events are append-only.
	AppendEvent(ctx context.Context, ev Event) error

	// ListTombstones returns records for a project filtered by status,
	// registered strictly before the given time.
	ListTombstones(ctx context.Context, project string, status Status, registeredBefore time.Time) ([]Record, error)

	// ListEvents returns all events referencing any of the given
	// tombstone IDs.
	ListEvents(ctx context.Context, tombstoneIDs []string) ([]Event, error)
}
