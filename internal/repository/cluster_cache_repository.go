package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"opinion-engine/internal/model"
)

type ClusterCacheRepository struct {
	db *gorm.DB
}

func NewClusterCacheRepository(db *gorm.DB) *ClusterCacheRepository {
	return &ClusterCacheRepository{db: db}
}

// Upsert writes the entry under (owner, key); the last write wins.
func (r *ClusterCacheRepository) Upsert(ctx context.Context, entry *model.ClusterCacheEntry) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_type"}, {Name: "owner_id"}, {Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"item_type", "method", "n_clusters", "kind", "payload", "updated_at",
		}),
	}).Create(entry).Error
	if err != nil {
		return errors.Wrap(err, "upsert cluster cache entry failed")
	}
	return nil
}

func (r *ClusterCacheRepository) ListByOwner(ctx context.Context, ownerType model.OwnerType, ownerID string) ([]model.ClusterCacheEntry, error) {
	var entries []model.ClusterCacheEntry
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Order("cache_key ASC").
		Find(&entries).Error
	if err != nil {
		return nil, errors.Wrap(err, "list cluster cache entries failed")
	}
	return entries, nil
}
