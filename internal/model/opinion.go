package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ItemType distinguishes the two kinds of opinion statements.
type ItemType string

const (
	ItemTypeProblem  ItemType = "problem"
	ItemTypeSolution ItemType = "solution"
)

// ParseItemType maps the wire value to an ItemType.
func ParseItemType(s string) (ItemType, bool) {
	switch ItemType(s) {
	case ItemTypeProblem, ItemTypeSolution:
		return ItemType(s), true
	}
	return "", false
}

// Table returns the table holding statements of this type.
func (t ItemType) Table() string {
	if t == ItemTypeSolution {
		return "solutions"
	}
	return "problems"
}

// Opinion holds the columns shared by problems and solutions.
// EmbeddingGenerated is written only by the embedding store.
type Opinion struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	ThemeID            string    `gorm:"size:36;not null;index" json:"themeId"`
	Statement          string    `gorm:"type:text;not null" json:"statement"`
	EmbeddingGenerated bool      `gorm:"not null;default:false;index" json:"embeddingGenerated"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (s *Opinion) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type Problem struct {
	Opinion
}

type Solution struct {
	Opinion
}

// QuestionLink attaches a problem or solution to a sharp question.
type QuestionLink struct {
	ID             uint     `gorm:"primaryKey" json:"id"`
	QuestionID     string   `gorm:"size:36;not null;uniqueIndex:idx_question_link" json:"questionId"`
	LinkedItemID   string   `gorm:"size:36;not null;uniqueIndex:idx_question_link" json:"linkedItemId"`
	LinkedItemType ItemType `gorm:"size:16;not null;uniqueIndex:idx_question_link" json:"linkedItemType"`
}

// OpinionItem is the engine's read-only view of a statement within a scope.
type OpinionItem struct {
	ID                 string
	Text               string
	ItemType           ItemType
	TopicID            string
	QuestionID         *string
	EmbeddingGenerated bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
