package syncmeta

import (
	"context"
)

// LastSyncKey is the row holding the pull watermark.
const LastSyncKey = "lastSync"

// Repository stores sync watermarks keyed by name.
type Repository interface {
	// Get returns the stored timestamp and whether the key exists.
	Get(ctx context.Context, key string) (int64, bool, error)
	Set(ctx context.Context, key string, ts int64) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]int64, error)
}
