// Package services implements the server side of the sync protocol: applying
// pushed outbox entries and serving incremental pulls.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dmitrijs2005/pilotlog/internal/common"
	"github.com/dmitrijs2005/pilotlog/internal/dbx"
	"github.com/dmitrijs2005/pilotlog/internal/logging"
	"github.com/dmitrijs2005/pilotlog/internal/metrics"
	sc "github.com/dmitrijs2005/pilotlog/internal/server/config"
	"github.com/dmitrijs2005/pilotlog/internal/server/models"
	"github.com/dmitrijs2005/pilotlog/internal/server/repositories/records"
	"github.com/dmitrijs2005/pilotlog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pilotlog/internal/timex"
)

// Apply outcomes, also used as metric label values.
const (
	OutcomeInserted = "inserted"
	OutcomeUpdated  = "updated"
	OutcomeDeleted  = "deleted"
	OutcomeStale    = "stale"
	OutcomeMissing  = "missing"
)

const collectionRule = "required,oneof=flights aircraft airports personnel"

type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	validate    *validator.Validate
	applied     *expirable.LRU[string, models.Ack]
	log         logging.Logger

	clock timex.Clock
	newID func() string
}

func NewSyncService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config, log logging.Logger) *SyncService {
	if log == nil {
		log = logging.Nop()
	}
	return &SyncService{
		db:          db,
		repomanager: repomanager,
		validate:    validator.New(),
		applied:     expirable.NewLRU[string, models.Ack](config.IdempotencyCacheSize, nil, config.IdempotencyTTL),
		log:         log,
		newID:       func() string { return primitive.NewObjectID().Hex() },
	}
}

// Apply stores one pushed entry and returns the server id of its record.
// Entries already applied within the idempotency window return the cached
// ack without touching the database. An entry older than the stored record
// is acknowledged but not applied.
func (s *SyncService) Apply(ctx context.Context, e *models.SyncEntry) (models.Ack, error) {
	if err := s.validate.Struct(e); err != nil {
		return models.Ack{}, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	if ack, ok := s.applied.Get(e.ID); ok {
		metrics.ReplayedEntries.Inc()
		s.log.Debug(ctx, "replayed entry", "entry", e.ID)
		return ack, nil
	}

	var meta models.RecordMeta
	if err := json.Unmarshal(e.Data, &meta); err != nil {
		return models.Ack{}, fmt.Errorf("%w: data: %v", common.ErrorValidation, err)
	}
	if err := s.validate.Struct(meta); err != nil {
		return models.Ack{}, fmt.Errorf("%w: data: %v", common.ErrorValidation, err)
	}

	var outcome string
	ack, err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (models.Ack, error) {
		repo := s.repomanager.Records(tx)
		existing, err := find(ctx, repo, e.Collection, meta)
		if err != nil {
			return models.Ack{}, err
		}
		var ack models.Ack
		if e.Type == "delete" {
			ack, outcome, err = s.applyDelete(ctx, repo, e, meta, existing)
		} else {
			ack, outcome, err = s.applyWrite(ctx, repo, e, meta, existing)
		}
		return ack, err
	})
	if err != nil {
		return models.Ack{}, fmt.Errorf("apply entry %s: %w", e.ID, err)
	}

	s.applied.Add(e.ID, ack)
	metrics.AppliedMutations.WithLabelValues(e.Collection, e.Type, outcome).Inc()
	s.log.Info(ctx, "applied entry", "entry", e.ID, "collection", e.Collection,
		"type", e.Type, "outcome", outcome, "mongoId", ack.MongoID)
	return ack, nil
}

// find locates the stored record by server id first, then by client id.
func find(ctx context.Context, repo records.Repository, collection string, meta models.RecordMeta) (*models.Record, error) {
	if meta.MongoID != "" {
		rec, err := repo.FindByMongoID(ctx, collection, meta.MongoID)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
	}
	rec, err := repo.FindByClientID(ctx, collection, meta.ID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	return rec, err
}

func (s *SyncService) applyWrite(ctx context.Context, repo records.Repository, e *models.SyncEntry,
	meta models.RecordMeta, existing *models.Record) (models.Ack, string, error) {

	if existing == nil {
		rec := &models.Record{
			MongoID:    s.newID(),
			Collection: e.Collection,
			ClientID:   meta.ID,
			Data:       e.Data,
			CreatedAt:  meta.CreatedAt,
			UpdatedAt:  meta.UpdatedAt,
			ModifiedAt: s.clock.Millis(),
		}
		if err := repo.Insert(ctx, rec); err != nil {
			return models.Ack{}, "", err
		}
		return models.Ack{MongoID: rec.MongoID}, OutcomeInserted, nil
	}

	ack := models.Ack{MongoID: existing.MongoID}
	if meta.Timestamp() <= existing.Timestamp() {
		return ack, OutcomeStale, nil
	}
	existing.Data = e.Data
	existing.CreatedAt = meta.CreatedAt
	existing.UpdatedAt = meta.UpdatedAt
	existing.ModifiedAt = s.clock.Millis()
	existing.Deleted = false
	if err := repo.Update(ctx, existing); err != nil {
		return models.Ack{}, "", err
	}
	return ack, OutcomeUpdated, nil
}

// applyDelete turns the record into a tombstone stamped with the entry time.
// A delete wins a tie with the stored version.
func (s *SyncService) applyDelete(ctx context.Context, repo records.Repository, e *models.SyncEntry,
	meta models.RecordMeta, existing *models.Record) (models.Ack, string, error) {

	if existing == nil {
		return models.Ack{MongoID: meta.MongoID}, OutcomeMissing, nil
	}
	ack := models.Ack{MongoID: existing.MongoID}
	if existing.Deleted || e.Timestamp < existing.Timestamp() {
		return ack, OutcomeStale, nil
	}
	existing.Deleted = true
	existing.UpdatedAt = e.Timestamp
	existing.ModifiedAt = s.clock.Millis()
	if err := repo.Update(ctx, existing); err != nil {
		return models.Ack{}, "", err
	}
	return ack, OutcomeDeleted, nil
}

// Pull returns the wire form of every record of collection written after
// since, tombstones included.
func (s *SyncService) Pull(ctx context.Context, collection string, since int64) ([]json.RawMessage, error) {
	if err := s.validate.Var(collection, collectionRule); err != nil {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownCollection, collection)
	}
	if since < 0 {
		return nil, fmt.Errorf("%w: negative since", common.ErrorValidation)
	}

	recs, err := s.repomanager.Records(s.db).SelectUpdated(ctx, collection, since)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(recs))
	for _, r := range recs {
		raw, err := r.Wire()
		if err != nil {
			s.log.Warn(ctx, "skipping unreadable record", "collection", collection, "mongoId", r.MongoID, "error", err)
			continue
		}
		out = append(out, raw)
	}
	return out, nil
}

// Ping checks the database connection.
func (s *SyncService) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
