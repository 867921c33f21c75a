// Package models defines the server-side sync data models.
package models

import (
	"encoding/json"
	"fmt"
)

// SyncEntry is the body of a push request: one client outbox entry.
type SyncEntry struct {
	ID         string          `json:"id" validate:"required,max=64"`
	Type       string          `json:"type" validate:"required,oneof=create update delete"`
	Collection string          `json:"collection" validate:"required,oneof=flights aircraft airports personnel"`
	Data       json.RawMessage `json:"data" validate:"required"`
	Timestamp  int64           `json:"timestamp" validate:"gte=0"`
}

// RecordMeta is the identity part of a pushed snapshot or tombstone.
type RecordMeta struct {
	ID        string `json:"id" validate:"required,max=64"`
	MongoID   string `json:"mongoId,omitempty"`
	CreatedAt int64  `json:"createdAt" validate:"gte=0"`
	UpdatedAt int64  `json:"updatedAt" validate:"gte=0"`
}

// Timestamp is UpdatedAt when set, otherwise CreatedAt.
func (m RecordMeta) Timestamp() int64 {
	if m.UpdatedAt != 0 {
		return m.UpdatedAt
	}
	return m.CreatedAt
}

// Record is one stored row of the records table.
//
// CreatedAt and UpdatedAt are the client timestamps used for last-writer-wins.
// ModifiedAt is the server clock at the last write and drives incremental pulls.
type Record struct {
	MongoID    string
	Collection string
	ClientID   string
	Data       json.RawMessage
	CreatedAt  int64
	UpdatedAt  int64
	ModifiedAt int64
	Deleted    bool
}

// Timestamp is UpdatedAt when set, otherwise CreatedAt.
func (r *Record) Timestamp() int64 {
	if r.UpdatedAt != 0 {
		return r.UpdatedAt
	}
	return r.CreatedAt
}

// Wire renders the record as served to pull requests: the stored snapshot
// with the server identity and timestamps filled in and the client-only
// syncStatus removed. Tombstones carry "deleted": true.
func (r *Record) Wire() (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &fields); err != nil {
			return nil, fmt.Errorf("record %s: %w", r.MongoID, err)
		}
	}
	delete(fields, "syncStatus")

	set := func(k string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fields[k] = b
		return nil
	}
	for k, v := range map[string]any{
		"id":        r.ClientID,
		"mongoId":   r.MongoID,
		"createdAt": r.CreatedAt,
		"updatedAt": r.UpdatedAt,
	} {
		if err := set(k, v); err != nil {
			return nil, err
		}
	}
	if r.Deleted {
		if err := set("deleted", true); err != nil {
			return nil, err
		}
	}
	return json.Marshal(fields)
}

// Ack is the success body of a push request.
type Ack struct {
	MongoID string `json:"mongoId,omitempty"`
}

// PullResponse is the body of a pull request.
type PullResponse struct {
	Records []json.RawMessage `json:"records"`
}
