package model

import "time"

// OwnerType names the record a clustering result is cached on.
type OwnerType string

const (
	OwnerTheme    OwnerType = "theme"
	OwnerQuestion OwnerType = "question"
)

// ClusterCacheEntry is one slot of an owner's clustering results map.
// Payload holds the result in its wire shape.
type ClusterCacheEntry struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	OwnerType OwnerType `gorm:"size:16;not null;uniqueIndex:idx_cluster_cache_key" json:"ownerType"`
	OwnerID   string    `gorm:"size:36;not null;uniqueIndex:idx_cluster_cache_key" json:"ownerId"`
	CacheKey  string    `gorm:"size:128;not null;uniqueIndex:idx_cluster_cache_key" json:"cacheKey"`
	ItemType  ItemType  `gorm:"size:16;not null" json:"itemType"`
	Method    string    `gorm:"size:32;not null" json:"method"`
	NClusters *int      `gorm:"column:n_clusters" json:"nClusters,omitempty"`
	Kind      string    `gorm:"size:16;not null" json:"kind"`
	Payload   string    `gorm:"type:longtext;not null" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
