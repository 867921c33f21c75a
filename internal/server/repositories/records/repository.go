package records

import (
	"context"

	"github.com/dmitrijs2005/pilotlog/internal/server/models"
)

// Repository stores synced records. Find methods return common.ErrorNotFound
// when no row matches.
type Repository interface {
	FindByMongoID(ctx context.Context, collection, mongoID string) (*models.Record, error)
	FindByClientID(ctx context.Context, collection, clientID string) (*models.Record, error)
	Insert(ctx context.Context, r *models.Record) error
	Update(ctx context.Context, r *models.Record) error
	SelectUpdated(ctx context.Context, collection string, since int64) ([]*models.Record, error)
}
