package outbox

import (
	"context"

	"github.com/dmitrijs2005/pilotlog/internal/client/models"
)

// Repository is the durable FIFO of pending local mutations.
type Repository interface {
	// Append stores e after every entry already queued.
	Append(ctx context.Context, e models.OutboxEntry) error

	// List returns every entry, oldest first.
	List(ctx context.Context) ([]models.OutboxEntry, error)

	// Remove deletes the entry with the given id. Removing an absent id is not an error.
	Remove(ctx context.Context, id string) error

	// Count returns the number of queued entries.
	Count(ctx context.Context) (int, error)

	// CountForRecord returns the number of queued entries targeting one record.
	CountForRecord(ctx context.Context, c models.Collection, recordID string) (int, error)

	// CountForRecordByType is CountForRecord restricted to one mutation type.
	CountForRecordByType(ctx context.Context, c models.Collection, recordID string, t models.MutationType) (int, error)
}
