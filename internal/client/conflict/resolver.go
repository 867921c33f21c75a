// Package conflict merges server-authored records into the local store using
// last-writer-wins on the record timestamp. Ties go to the server.
//
// Timestamps are client wall-clock milliseconds. Devices are assumed to be
// NTP-synchronized; a device whose clock runs ahead wins every tie-free
// comparison against its peers.
package conflict

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/pilotlog/internal/client/models"
)

// Outcome is what the store must do with an incoming server record.
type Outcome int

const (
	// Insert: no local counterpart, store the server record.
	Insert Outcome = iota
	// Overwrite: replace the local record, keeping its local id.
	Overwrite
	// Remove: server tombstone is current, drop the local record.
	Remove
	// Discard: the local version is newer and will be pushed later.
	Discard
	// Ignore: tombstone for a record this device never had.
	Ignore
)

func (o Outcome) String() string {
	switch o {
	case Insert:
		return "insert"
	case Overwrite:
		return "overwrite"
	case Remove:
		return "remove"
	case Discard:
		return "discard"
	case Ignore:
		return "ignore"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decide applies the LWW rule. existing is nil when no local record matched.
func Decide(incoming models.Meta, existing *models.Meta, tombstone bool) Outcome {
	if existing == nil {
		if tombstone {
			return Ignore
		}
		return Insert
	}
	if incoming.Timestamp() < existing.Timestamp() {
		return Discard
	}
	if tombstone {
		return Remove
	}
	return Overwrite
}

// Merge returns the meta to store when the server version wins. The local id
// is kept, and a mongoId already linked locally is never replaced.
func Merge(incoming models.Meta, existing *models.Meta) models.Meta {
	out := incoming
	out.SyncStatus = models.SyncStatusSynced
	if existing == nil {
		return out
	}
	out.ID = existing.ID
	if existing.MongoID != "" {
		out.MongoID = existing.MongoID
	}
	return out
}

// Finder looks up local records by identifier. Both methods return (nil, nil)
// when nothing matches.
type Finder interface {
	FindByMongoID(ctx context.Context, mongoID string) (*models.Meta, error)
	FindByID(ctx context.Context, id string) (*models.Meta, error)
}

// Decision is the result of Resolve.
type Decision struct {
	Outcome  Outcome
	Existing *models.Meta
	// Meta is the identity and bookkeeping to persist for Insert and Overwrite.
	Meta models.Meta
}

// Resolve finds the local counterpart of incoming, first by mongoId and then
// by local id, and decides the merge.
func Resolve(ctx context.Context, incoming models.Meta, tombstone bool, f Finder) (Decision, error) {
	existing, err := lookup(ctx, incoming, f)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Outcome:  Decide(incoming, existing, tombstone),
		Existing: existing,
		Meta:     Merge(incoming, existing),
	}, nil
}

func lookup(ctx context.Context, incoming models.Meta, f Finder) (*models.Meta, error) {
	if incoming.MongoID != "" {
		m, err := f.FindByMongoID(ctx, incoming.MongoID)
		if err != nil {
			return nil, fmt.Errorf("lookup by mongoId %s: %w", incoming.MongoID, err)
		}
		if m != nil {
			return m, nil
		}
	}
	if incoming.ID != "" {
		m, err := f.FindByID(ctx, incoming.ID)
		if err != nil {
			return nil, fmt.Errorf("lookup by id %s: %w", incoming.ID, err)
		}
		return m, nil
	}
	return nil, nil
}
