package model

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

// EmbeddingRecord stores one vector per opinion item.
// Vector is a JSON array of L2-normalized float32 values.
// A record exists for an item iff the item's EmbeddingGenerated flag is set.
type EmbeddingRecord struct {
	ItemType    ItemType  `gorm:"primaryKey;size:16" json:"itemType"`
	ItemID      string    `gorm:"primaryKey;size:36" json:"itemId"`
	TopicID     string    `gorm:"size:36;not null;index:idx_embedding_scope" json:"topicId"`
	QuestionID  *string   `gorm:"size:36" json:"questionId,omitempty"`
	Model       string    `gorm:"size:128;not null" json:"model"`
	Dimensions  int       `gorm:"not null" json:"dimensions"`
	Vector      string    `gorm:"type:longtext;not null" json:"-"`
	GeneratedAt time.Time `gorm:"not null" json:"generatedAt"`
}

// EmbeddingVector returns the parsed vector; nil on parse error.
func (r *EmbeddingRecord) EmbeddingVector() []float32 {
	if r.Vector == "" {
		return nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(r.Vector), &v); err != nil {
		return nil
	}
	return v
}

// SetVector stores vec as JSON and records its dimension. NaN and infinite
// components cannot be encoded and leave the record unchanged.
func (r *EmbeddingRecord) SetVector(vec []float32) error {
	if len(vec) == 0 {
		r.Vector = "[]"
		r.Dimensions = 0
		return nil
	}
	b, err := json.Marshal(vec)
	if err != nil {
		return errors.Wrap(err, "encode embedding vector failed")
	}
	r.Vector = string(b)
	r.Dimensions = len(vec)
	return nil
}
