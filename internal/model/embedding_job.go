package model

import "time"

// EmbeddingJob asks the worker to run embedding generation for an owner.
// An empty ItemTypes list means every item type.
type EmbeddingJob struct {
	ID          string     `json:"id"`
	OwnerType   OwnerType  `json:"ownerType"`
	OwnerID     string     `json:"ownerId"`
	ItemTypes   []ItemType `json:"itemTypes,omitempty"`
	RequestedAt time.Time  `json:"requestedAt"`
}
