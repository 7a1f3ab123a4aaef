package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"

	"opinion-engine/internal/model"
)

type ThemeRepository struct {
	db *gorm.DB
}

func NewThemeRepository(db *gorm.DB) *ThemeRepository {
	return &ThemeRepository{db: db}
}

func (r *ThemeRepository) Create(ctx context.Context, theme *model.Theme) error {
	if err := r.db.WithContext(ctx).Create(theme).Error; err != nil {
		return errors.Wrap(err, "create theme failed")
	}
	return nil
}

// GetByID returns nil, nil when the theme does not exist.
func (r *ThemeRepository) GetByID(ctx context.Context, id string) (*model.Theme, error) {
	var theme model.Theme
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&theme).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get theme failed")
	}
	return &theme, nil
}

type QuestionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

func (r *QuestionRepository) Create(ctx context.Context, question *model.SharpQuestion) error {
	if err := r.db.WithContext(ctx).Create(question).Error; err != nil {
		return errors.Wrap(err, "create question failed")
	}
	return nil
}

// GetByID returns nil, nil when the question does not exist.
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*model.SharpQuestion, error) {
	var question model.SharpQuestion
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&question).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get question failed")
	}
	return &question, nil
}
