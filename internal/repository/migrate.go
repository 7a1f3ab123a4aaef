package repository

import (
	"github.com/cockroachdb/errors"
	"gorm.io/gorm"

	"opinion-engine/internal/model"
)

// AutoMigrate creates or updates every table the engine reads or writes.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Theme{},
		&model.SharpQuestion{},
		&model.Problem{},
		&model.Solution{},
		&model.QuestionLink{},
		&model.EmbeddingRecord{},
		&model.ClusterCacheEntry{},
	)
	if err != nil {
		return errors.Wrap(err, "auto migrate tables failed")
	}
	return nil
}
