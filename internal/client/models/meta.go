// Package models defines the logbook records kept in the local store and the
// outbox entries that carry local mutations to the remote store.
package models

import (
	"fmt"

	"github.com/dmitrijs2005/pilotlog/internal/common"
)

// SyncStatus tags a record with its delivery state.
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusError   SyncStatus = "error"
)

// Collection names one of the four synchronized entity tables. The values
// double as URL path segments of the pull endpoint.
type Collection string

const (
	CollectionFlights   Collection = "flights"
	CollectionAircraft  Collection = "aircraft"
	CollectionAirports  Collection = "airports"
	CollectionPersonnel Collection = "personnel"
)

// Collections lists every collection in pull order.
var Collections = []Collection{
	CollectionFlights,
	CollectionAircraft,
	CollectionAirports,
	CollectionPersonnel,
}

// ParseCollection validates s against the known collections.
func ParseCollection(s string) (Collection, error) {
	for _, c := range Collections {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownCollection, s)
}

// Meta is the identity and sync bookkeeping shared by every record.
// It is embedded in each entity so its fields serialize at the top level.
type Meta struct {
	// ID is generated on this device and never changes.
	ID string `json:"id"`

	// MongoID is the server identifier, empty until the first acknowledged push.
	// Once set it is never replaced.
	MongoID string `json:"mongoId,omitempty"`

	SyncStatus SyncStatus `json:"syncStatus"`

	// CreatedAt and UpdatedAt are client-clock milliseconds since the epoch.
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// Timestamp is the instant used for last-writer-wins comparison:
// UpdatedAt when present, otherwise CreatedAt.
func (m Meta) Timestamp() int64 {
	if m.UpdatedAt != 0 {
		return m.UpdatedAt
	}
	return m.CreatedAt
}

// Entity is implemented by the pointer types of the four record kinds.
type Entity interface {
	// EntityMeta exposes the embedded Meta for in-place updates by the store.
	EntityMeta() *Meta
	// Collection reports which table the record belongs to.
	Collection() Collection
	// Normalize fills defaults for optional fields and canonicalizes natural keys.
	Normalize()
}
