package repository

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"

	"opinion-engine/internal/model"
)

// OpinionRepository reads problems and solutions. The engine never writes
// statement text; Create and Link exist for the owning application and tests.
type OpinionRepository struct {
	db *gorm.DB
}

func NewOpinionRepository(db *gorm.DB) *OpinionRepository {
	return &OpinionRepository{db: db}
}

type opinionRow struct {
	ID                 string
	ThemeID            string
	Statement          string
	EmbeddingGenerated bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (row opinionRow) item(itemType model.ItemType, questionID *string) model.OpinionItem {
	return model.OpinionItem{
		ID:                 row.ID,
		Text:               row.Statement,
		ItemType:           itemType,
		TopicID:            row.ThemeID,
		QuestionID:         questionID,
		EmbeddingGenerated: row.EmbeddingGenerated,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

func toItems(rows []opinionRow, itemType model.ItemType, questionID *string) []model.OpinionItem {
	items := make([]model.OpinionItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.item(itemType, questionID))
	}
	return items
}

// Create inserts a problem or solution for the given theme.
func (r *OpinionRepository) Create(ctx context.Context, itemType model.ItemType, themeID, statement string) (string, error) {
	base := model.Opinion{ThemeID: themeID, Statement: statement}
	var err error
	switch itemType {
	case model.ItemTypeSolution:
		s := &model.Solution{Opinion: base}
		err = r.db.WithContext(ctx).Create(s).Error
		base = s.Opinion
	default:
		p := &model.Problem{Opinion: base}
		err = r.db.WithContext(ctx).Create(p).Error
		base = p.Opinion
	}
	if err != nil {
		return "", errors.Wrapf(err, "create %s failed", itemType)
	}
	return base.ID, nil
}

// Link attaches an item to a question.
func (r *OpinionRepository) Link(ctx context.Context, questionID, itemID string, itemType model.ItemType) error {
	link := &model.QuestionLink{QuestionID: questionID, LinkedItemID: itemID, LinkedItemType: itemType}
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		return errors.Wrap(err, "create question link failed")
	}
	return nil
}

// ListUnembeddedByTheme returns the theme's items of itemType not yet embedded.
func (r *OpinionRepository) ListUnembeddedByTheme(ctx context.Context, themeID string, itemType model.ItemType) ([]model.OpinionItem, error) {
	var rows []opinionRow
	err := r.db.WithContext(ctx).Table(itemType.Table()).
		Where("theme_id = ? AND embedding_generated = ?", themeID, false).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list unembedded items by theme failed")
	}
	return toItems(rows, itemType, nil), nil
}

// ListUnembeddedByQuestion returns items of itemType linked to the question,
// restricted to the question's theme, that are not yet embedded.
func (r *OpinionRepository) ListUnembeddedByQuestion(ctx context.Context, themeID, questionID string, itemType model.ItemType) ([]model.OpinionItem, error) {
	table := itemType.Table()
	var rows []opinionRow
	err := r.db.WithContext(ctx).Table(table).
		Select(table+".*").
		Joins("JOIN question_links ql ON ql.linked_item_id = "+table+".id AND ql.linked_item_type = ?", itemType).
		Where("ql.question_id = ? AND "+table+".theme_id = ? AND "+table+".embedding_generated = ?", questionID, themeID, false).
		Order(table + ".created_at ASC").Order(table + ".id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list unembedded items by question failed")
	}
	qid := questionID
	return toItems(rows, itemType, &qid), nil
}

// ListByIDs returns the items that still exist among ids, keyed by id.
func (r *OpinionRepository) ListByIDs(ctx context.Context, itemType model.ItemType, ids []string) (map[string]model.OpinionItem, error) {
	out := make(map[string]model.OpinionItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []opinionRow
	if err := r.db.WithContext(ctx).Table(itemType.Table()).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list items by ids failed")
	}
	for _, row := range rows {
		out[row.ID] = row.item(itemType, nil)
	}
	return out, nil
}
