// Package outbox persists the client mutation log.
//
// Entries are appended inside the same transaction as the entity write that
// produced them (pass the *sql.Tx as dbx.DBTX) and are drained oldest-first by
// the sync orchestrator. Append order is kept in an AUTOINCREMENT sequence, so
// entries for the same record are always listed in the order they were made.
//
// Typical Usage
//
//	repo := outbox.NewSQLiteRepository(tx)
//	_ = repo.Append(ctx, entry)
//	pending, _ := repo.List(ctx)
//	_ = repo.Remove(ctx, pending[0].ID)
package outbox
