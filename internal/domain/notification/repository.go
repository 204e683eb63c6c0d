package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence operations for NotificationRecords.
// Implementations back FindDue with a (scheduled_for, status) index,
// FindExisting with a (reference_type, reference_id, type) index and
// ListByRecipient with a recipient-identity index.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, rec *Record) error

	// FindDue returns every SCHEDULED record with ScheduledFor <= now.
	FindDue(ctx context.Context, now time.Time) ([]*Record, error)

	// FindExisting looks up the record for a (recipient identity, business
	// reference, type) tuple, supporting idempotent create-or-skip.
	FindExisting(ctx context.Context, identity string, ref TisReference, t Type) (*Record, error)

	// ListByRecipient returns every record addressed to the given identity.
	ListByRecipient(ctx context.Context, identity string) ([]*Record, error)
}

// Gateway sends a notification through its channel's transport. The stored
// template snapshot travels with the record; rendering is the transport
// adapter's concern.
type Gateway interface {
	Send(ctx context.Context, rec *Record) error
}

// ChangePublisher publishes the new state of a record after a mutation, for
// downstream consumers (history projections, auditing).
type ChangePublisher interface {
	PublishRecordChanged(ctx context.Context, rec *Record) error
}
