package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"opinion-engine/internal/model"
)

var errAlreadyEmbedded = errors.New("item already embedded")

type EmbeddingRepository struct {
	db *gorm.DB
}

func NewEmbeddingRepository(db *gorm.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// MarkEmbedded flips the item's flag from not-embedded to embedded and stores
// its record in one transaction. It returns false, nil without writing anything
// when the item is missing or already embedded.
func (r *EmbeddingRepository) MarkEmbedded(ctx context.Context, record *model.EmbeddingRecord) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Table(record.ItemType.Table()).
			Where("id = ? AND embedding_generated = ?", record.ItemID, false).
			Update("embedding_generated", true)
		if res.Error != nil {
			return errors.Wrap(res.Error, "flag item embedded failed")
		}
		if res.RowsAffected == 0 {
			return errAlreadyEmbedded
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error; err != nil {
			return errors.Wrap(err, "save embedding record failed")
		}
		return nil
	})
	if errors.Is(err, errAlreadyEmbedded) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByScope returns every record of itemType under topicID. A non-nil
// questionID narrows to items linked to that question.
func (r *EmbeddingRepository) ListByScope(ctx context.Context, topicID string, questionID *string, itemType model.ItemType) ([]model.EmbeddingRecord, error) {
	q := r.db.WithContext(ctx).Model(&model.EmbeddingRecord{}).
		Where("embedding_records.topic_id = ? AND embedding_records.item_type = ?", topicID, itemType)
	if questionID != nil {
		q = q.Joins("JOIN question_links ql ON ql.linked_item_id = embedding_records.item_id AND ql.linked_item_type = embedding_records.item_type").
			Where("ql.question_id = ?", *questionID)
	}

	var records []model.EmbeddingRecord
	if err := q.Order("embedding_records.item_id ASC").Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "list embedding records failed")
	}
	return records, nil
}

// Invalidate drops the item's record and clears its flag in one transaction,
// so the next generation run embeds it again. Both writes are restricted to
// topicID. It reports whether a record was removed; a deleted item only loses
// its record.
func (r *EmbeddingRepository) Invalidate(ctx context.Context, topicID string, itemType model.ItemType, itemID string) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("item_type = ? AND item_id = ? AND topic_id = ?", itemType, itemID, topicID).
			Delete(&model.EmbeddingRecord{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete embedding record failed")
		}
		removed = res.RowsAffected > 0

		err := tx.Table(itemType.Table()).
			Where("id = ? AND theme_id = ?", itemID, topicID).
			Update("embedding_generated", false).Error
		if err != nil {
			return errors.Wrap(err, "clear item embedded flag failed")
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}
