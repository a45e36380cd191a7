package linktracker

import (
	"context"

	"github.com/google/uuid"
)

// Queryable record fields for FindOneByField. Implementations must reject
// anything outside this set.
const (
	FieldID         = "id"
	FieldMaskedLink = "masked_link"
	FieldTarget     = "target"
)

// Repository defines the persistence operations for Link records.
// It abstracts the underlying data store; each call is individually
// consistent but no multi-call transaction is composed on top.
//
// Implementations map absent rows to errx.NotFound, unique violations on
// masked_link to errx.Conflict, and any other store failure to
// errx.Unavailable.
type Repository interface {
	// Create assigns an id and timestamps, persists the record, and returns
	// it as stored.
	Create(ctx context.Context, link Link) (Link, error)

	// FindOneByField performs a point lookup on one of the whitelisted
	// fields above.
	FindOneByField(ctx context.Context, field, value string) (Link, error)

	// UpdateByID applies the non-nil fields of upd and returns the updated
	// record.
	UpdateByID(ctx context.Context, id uuid.UUID, upd LinkUpdate) (Link, error)

	// FindAll returns every record; order is not guaranteed.
	FindAll(ctx context.Context) ([]Link, error)

	// IncrementVisited atomically adds 1 to the record's visit counter and
	// returns the updated record. This replaces a read-then-write increment
	// that would lose updates under concurrent redirects on the same link.
	IncrementVisited(ctx context.Context, id uuid.UUID) (Link, error)
}
