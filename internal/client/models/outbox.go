package models

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/pilotlog/internal/common"
)

// MutationType is the kind of local change an outbox entry carries.
type MutationType string

const (
	MutationCreate MutationType = "create"
	MutationUpdate MutationType = "update"
	MutationDelete MutationType = "delete"
)

// Payload is the closed set of outbox payloads: CreatePayload, UpdatePayload
// and DeletePayload. Consumers switch on the concrete type.
type Payload interface {
	Type() MutationType
	RecordID() string
	isPayload()
}

// CreatePayload carries the full snapshot of a newly added record.
type CreatePayload struct {
	ID     string
	Record json.RawMessage
}

// UpdatePayload carries the full snapshot of a record after the change was merged.
type UpdatePayload struct {
	ID     string
	Record json.RawMessage
}

// DeletePayload is the tombstone of a removed record. MongoID is kept so the
// remote copy can still be targeted after the local row is gone.
type DeletePayload struct {
	ID      string `json:"id"`
	MongoID string `json:"mongoId,omitempty"`
}

func (CreatePayload) Type() MutationType { return MutationCreate }
func (UpdatePayload) Type() MutationType { return MutationUpdate }
func (DeletePayload) Type() MutationType { return MutationDelete }

func (p CreatePayload) RecordID() string { return p.ID }
func (p UpdatePayload) RecordID() string { return p.ID }
func (p DeletePayload) RecordID() string { return p.ID }

func (CreatePayload) isPayload() {}
func (UpdatePayload) isPayload() {}
func (DeletePayload) isPayload() {}

// OutboxEntry is one not-yet-acknowledged local mutation.
// Its JSON form is the push request body: {id, type, collection, data, timestamp}.
type OutboxEntry struct {
	// Seq is the local append order. It is not part of the wire form.
	Seq        int64      `json:"-"`
	ID         string     `json:"id"`
	Collection Collection `json:"collection"`
	Payload    Payload    `json:"-"`
	Timestamp  int64      `json:"timestamp"`
}

// Type returns the mutation type of the payload.
func (e OutboxEntry) Type() MutationType {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Type()
}

// RecordID returns the local id of the record the entry targets.
func (e OutboxEntry) RecordID() string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.RecordID()
}

type wireEntry struct {
	ID         string          `json:"id"`
	Type       MutationType    `json:"type"`
	Collection Collection      `json:"collection"`
	Data       json.RawMessage `json:"data"`
	Timestamp  int64           `json:"timestamp"`
}

// EncodePayload returns the "data" member for p.
func EncodePayload(p Payload) (json.RawMessage, error) {
	switch v := p.(type) {
	case CreatePayload:
		return v.Record, nil
	case UpdatePayload:
		return v.Record, nil
	case DeletePayload:
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: %T", common.ErrUnknownMutation, p)
	}
}

// DecodePayload rebuilds a typed payload from its mutation type and raw data.
func DecodePayload(t MutationType, data json.RawMessage) (Payload, error) {
	switch t {
	case MutationCreate, MutationUpdate:
		var ident struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &ident); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrMalformedRecord, err)
		}
		if ident.ID == "" {
			return nil, fmt.Errorf("%w: snapshot without id", common.ErrMalformedRecord)
		}
		if t == MutationCreate {
			return CreatePayload{ID: ident.ID, Record: data}, nil
		}
		return UpdatePayload{ID: ident.ID, Record: data}, nil
	case MutationDelete:
		var d DeletePayload
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrMalformedRecord, err)
		}
		if d.ID == "" {
			return nil, fmt.Errorf("%w: tombstone without id", common.ErrMalformedRecord)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownMutation, t)
	}
}

func (e OutboxEntry) MarshalJSON() ([]byte, error) {
	data, err := EncodePayload(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEntry{
		ID:         e.ID,
		Type:       e.Payload.Type(),
		Collection: e.Collection,
		Data:       data,
		Timestamp:  e.Timestamp,
	})
}

func (e *OutboxEntry) UnmarshalJSON(b []byte) error {
	var w wireEntry
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	p, err := DecodePayload(w.Type, w.Data)
	if err != nil {
		return err
	}
	e.ID = w.ID
	e.Collection = w.Collection
	e.Payload = p
	e.Timestamp = w.Timestamp
	return nil
}

// WithMongoID returns a copy of e whose payload names mongoID, unless the
// payload already carries one. Entries queued before the first acknowledged
// push lack the server id.
func (e OutboxEntry) WithMongoID(mongoID string) (OutboxEntry, error) {
	if mongoID == "" {
		return e, nil
	}
	switch p := e.Payload.(type) {
	case DeletePayload:
		if p.MongoID == "" {
			p.MongoID = mongoID
			e.Payload = p
		}
		return e, nil
	case CreatePayload:
		rec, err := setMongoID(p.Record, mongoID)
		if err != nil {
			return e, err
		}
		p.Record = rec
		e.Payload = p
		return e, nil
	case UpdatePayload:
		rec, err := setMongoID(p.Record, mongoID)
		if err != nil {
			return e, err
		}
		p.Record = rec
		e.Payload = p
		return e, nil
	default:
		return e, fmt.Errorf("%w: %T", common.ErrUnknownMutation, e.Payload)
	}
}

func setMongoID(record json.RawMessage, mongoID string) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(record, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedRecord, err)
	}
	if raw, ok := fields["mongoId"]; ok {
		var existing string
		if json.Unmarshal(raw, &existing) == nil && existing != "" {
			return record, nil
		}
	}
	v, err := json.Marshal(mongoID)
	if err != nil {
		return nil, err
	}
	fields["mongoId"] = v
	return json.Marshal(fields)
}

// PushAck is the success body of a push call.
type PushAck struct {
	MongoID string `json:"mongoId,omitempty"`
}

// PullResponse is the body of a pull call. Records stay raw so that one
// malformed record can be skipped on its own.
type PullResponse struct {
	Records []json.RawMessage `json:"records"`
}

// Snapshot is the full contents of the local store, used by backups.
type Snapshot struct {
	TakenAt   int64        `json:"takenAt"`
	Flights   []*FlightLog `json:"flights"`
	Aircraft  []*Aircraft  `json:"aircraft"`
	Airports  []*Airport   `json:"airports"`
	Personnel []*Personnel `json:"personnel"`
	Outbox    int          `json:"outbox"`
}
