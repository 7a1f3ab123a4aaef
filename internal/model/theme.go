package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Theme is a consultation topic. Owned by the surrounding application.
type Theme struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Title       string    `gorm:"size:256;not null" json:"title"`
	Slug        string    `gorm:"size:128;index" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (t *Theme) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// SharpQuestion narrows a theme to one question.
type SharpQuestion struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	ThemeID      string    `gorm:"size:36;not null;index" json:"themeId"`
	QuestionText string    `gorm:"type:text;not null" json:"questionText"`
	TagLine      string    `gorm:"size:256" json:"tagLine"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (q *SharpQuestion) BeforeCreate(*gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}
