package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"opinion-engine/internal/model"
	"opinion-engine/internal/platform/sqlite"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newRecord(t *testing.T, itemType model.ItemType, itemID, topicID string, vec []float32) *model.EmbeddingRecord {
	t.Helper()
	r := &model.EmbeddingRecord{
		ItemType:    itemType,
		ItemID:      itemID,
		TopicID:     topicID,
		Model:       "test-model",
		GeneratedAt: time.Now().UTC(),
	}
	require.NoError(t, r.SetVector(vec))
	return r
}

func findRecord(t *testing.T, db *gorm.DB, itemType model.ItemType, itemID string) *model.EmbeddingRecord {
	t.Helper()
	var records []model.EmbeddingRecord
	require.NoError(t, db.Where("item_type = ? AND item_id = ?", itemType, itemID).Find(&records).Error)
	if len(records) == 0 {
		return nil
	}
	return &records[0]
}

func embeddedFlag(t *testing.T, db *gorm.DB, itemType model.ItemType, id string) bool {
	t.Helper()
	var flags []bool
	require.NoError(t, db.Table(itemType.Table()).Where("id = ?", id).Pluck("embedding_generated", &flags).Error)
	return len(flags) == 1 && flags[0]
}

func TestThemeRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	repo := NewThemeRepository(newTestDB(t))

	theme := &model.Theme{Title: "Transit"}
	require.NoError(t, repo.Create(ctx, theme))
	require.NotEmpty(t, theme.ID)

	got, err := repo.GetByID(ctx, theme.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Transit", got.Title)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestQuestionRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	repo := NewQuestionRepository(newTestDB(t))

	q := &model.SharpQuestion{ThemeID: "theme-1", QuestionText: "How do we shorten waits?"}
	require.NoError(t, repo.Create(ctx, q))

	got, err := repo.GetByID(ctx, q.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "theme-1", got.ThemeID)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOpinionRepository_ListUnembeddedByTheme(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	opinions := NewOpinionRepository(db)
	embeddings := NewEmbeddingRepository(db)

	p1, err := opinions.Create(ctx, model.ItemTypeProblem, "theme-a", "buses are late")
	require.NoError(t, err)
	p2, err := opinions.Create(ctx, model.ItemTypeProblem, "theme-a", "stops are far")
	require.NoError(t, err)
	_, err = opinions.Create(ctx, model.ItemTypeProblem, "theme-b", "buses are late")
	require.NoError(t, err)
	_, err = opinions.Create(ctx, model.ItemTypeSolution, "theme-a", "more buses")
	require.NoError(t, err)

	ok, err := embeddings.MarkEmbedded(ctx, newRecord(t, model.ItemTypeProblem, p1, "theme-a", []float32{1, 0}))
	require.NoError(t, err)
	require.True(t, ok)

	items, err := opinions.ListUnembeddedByTheme(ctx, "theme-a", model.ItemTypeProblem)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, p2, items[0].ID)
	assert.Equal(t, "stops are far", items[0].Text)
	assert.Equal(t, "theme-a", items[0].TopicID)
	assert.Equal(t, model.ItemTypeProblem, items[0].ItemType)
	assert.Nil(t, items[0].QuestionID)
}

func TestOpinionRepository_ListUnembeddedByQuestion(t *testing.T) {
	ctx := context.Background()
	opinions := NewOpinionRepository(newTestDB(t))

	linked, err := opinions.Create(ctx, model.ItemTypeSolution, "theme-a", "night buses")
	require.NoError(t, err)
	_, err = opinions.Create(ctx, model.ItemTypeSolution, "theme-a", "unlinked idea")
	require.NoError(t, err)
	foreign, err := opinions.Create(ctx, model.ItemTypeSolution, "theme-b", "linked but elsewhere")
	require.NoError(t, err)

	require.NoError(t, opinions.Link(ctx, "q-1", linked, model.ItemTypeSolution))
	require.NoError(t, opinions.Link(ctx, "q-1", foreign, model.ItemTypeSolution))

	items, err := opinions.ListUnembeddedByQuestion(ctx, "theme-a", "q-1", model.ItemTypeSolution)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, linked, items[0].ID)
	require.NotNil(t, items[0].QuestionID)
	assert.Equal(t, "q-1", *items[0].QuestionID)

	none, err := opinions.ListUnembeddedByQuestion(ctx, "theme-a", "q-1", model.ItemTypeProblem)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOpinionRepository_ListByIDs(t *testing.T) {
	ctx := context.Background()
	opinions := NewOpinionRepository(newTestDB(t))

	id, err := opinions.Create(ctx, model.ItemTypeProblem, "theme-a", "noise at night")
	require.NoError(t, err)

	items, err := opinions.ListByIDs(ctx, model.ItemTypeProblem, []string{id, "gone"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "noise at night", items[id].Text)
	assert.False(t, items[id].CreatedAt.IsZero())

	empty, err := opinions.ListByIDs(ctx, model.ItemTypeProblem, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEmbeddingRepository_MarkEmbeddedOnlyOnce(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	opinions := NewOpinionRepository(db)
	embeddings := NewEmbeddingRepository(db)

	id, err := opinions.Create(ctx, model.ItemTypeProblem, "theme-a", "potholes")
	require.NoError(t, err)

	ok, err := embeddings.MarkEmbedded(ctx, newRecord(t, model.ItemTypeProblem, id, "theme-a", []float32{0.6, 0.8}))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, embeddedFlag(t, db, model.ItemTypeProblem, id))

	ok, err = embeddings.MarkEmbedded(ctx, newRecord(t, model.ItemTypeProblem, id, "theme-a", []float32{1, 0}))
	require.NoError(t, err)
	assert.False(t, ok, "second flip must be a no-op")

	record := findRecord(t, db, model.ItemTypeProblem, id)
	require.NotNil(t, record)
	assert.Equal(t, []float32{0.6, 0.8}, record.EmbeddingVector())
	assert.Equal(t, 2, record.Dimensions)
}

func TestEmbeddingRepository_MarkEmbeddedMissingItem(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	embeddings := NewEmbeddingRepository(db)

	ok, err := embeddings.MarkEmbedded(ctx, newRecord(t, model.ItemTypeProblem, "ghost", "theme-a", []float32{1}))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, findRecord(t, db, model.ItemTypeProblem, "ghost"), "no record without a flag flip")
}

func TestEmbeddingRepository_ListByScope(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	opinions := NewOpinionRepository(db)
	embeddings := NewEmbeddingRepository(db)

	embed := func(itemType model.ItemType, themeID, text string) string {
		id, err := opinions.Create(ctx, itemType, themeID, text)
		require.NoError(t, err)
		ok, err := embeddings.MarkEmbedded(ctx, newRecord(t, itemType, id, themeID, []float32{1, 0}))
		require.NoError(t, err)
		require.True(t, ok)
		return id
	}

	a1 := embed(model.ItemTypeProblem, "theme-a", "same text")
	a2 := embed(model.ItemTypeProblem, "theme-a", "other text")
	b1 := embed(model.ItemTypeProblem, "theme-b", "same text")
	embed(model.ItemTypeSolution, "theme-a", "a solution")
	require.NoError(t, opinions.Link(ctx, "q-1", a2, model.ItemTypeProblem))

	records, err := embeddings.ListByScope(ctx, "theme-a", nil, model.ItemTypeProblem)
	require.NoError(t, err)
	ids := []string{}
	for _, r := range records {
		ids = append(ids, r.ItemID)
	}
	assert.ElementsMatch(t, []string{a1, a2}, ids)
	assert.NotContains(t, ids, b1)

	q := "q-1"
	records, err = embeddings.ListByScope(ctx, "theme-a", &q, model.ItemTypeProblem)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, a2, records[0].ItemID)

	records, err = embeddings.ListByScope(ctx, "theme-b", &q, model.ItemTypeProblem)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEmbeddingRepository_Invalidate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	opinions := NewOpinionRepository(db)
	embeddings := NewEmbeddingRepository(db)

	id, err := opinions.Create(ctx, model.ItemTypeSolution, "theme-a", "bike lanes")
	require.NoError(t, err)
	ok, err := embeddings.MarkEmbedded(ctx, newRecord(t, model.ItemTypeSolution, id, "theme-a", []float32{1}))
	require.NoError(t, err)
	require.True(t, ok)

	removed, err := embeddings.Invalidate(ctx, "theme-a", model.ItemTypeSolution, id)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Nil(t, findRecord(t, db, model.ItemTypeSolution, id))
	assert.False(t, embeddedFlag(t, db, model.ItemTypeSolution, id), "flag cleared with the record")

	pending, err := opinions.ListUnembeddedByTheme(ctx, "theme-a", model.ItemTypeSolution)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)

	removed, err = embeddings.Invalidate(ctx, "theme-a", model.ItemTypeSolution, id)
	require.NoError(t, err)
	assert.False(t, removed, "second call is a no-op")
}

func TestEmbeddingRepository_InvalidateStaysInTopic(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	opinions := NewOpinionRepository(db)
	embeddings := NewEmbeddingRepository(db)

	id, err := opinions.Create(ctx, model.ItemTypeProblem, "theme-a", "noise at night")
	require.NoError(t, err)
	_, err = embeddings.MarkEmbedded(ctx, newRecord(t, model.ItemTypeProblem, id, "theme-a", []float32{1}))
	require.NoError(t, err)

	removed, err := embeddings.Invalidate(ctx, "theme-b", model.ItemTypeProblem, id)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NotNil(t, findRecord(t, db, model.ItemTypeProblem, id))
	assert.True(t, embeddedFlag(t, db, model.ItemTypeProblem, id))
}

func TestEmbeddingRepository_InvalidateDeletedItem(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	opinions := NewOpinionRepository(db)
	embeddings := NewEmbeddingRepository(db)

	id, err := opinions.Create(ctx, model.ItemTypeProblem, "theme-a", "closed library")
	require.NoError(t, err)
	_, err = embeddings.MarkEmbedded(ctx, newRecord(t, model.ItemTypeProblem, id, "theme-a", []float32{1}))
	require.NoError(t, err)
	require.NoError(t, db.Exec("DELETE FROM problems WHERE id = ?", id).Error)

	removed, err := embeddings.Invalidate(ctx, "theme-a", model.ItemTypeProblem, id)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Nil(t, findRecord(t, db, model.ItemTypeProblem, id))
}

func TestClusterCacheRepository_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	repo := NewClusterCacheRepository(newTestDB(t))

	n := 2
	first := &model.ClusterCacheEntry{
		OwnerType: model.OwnerTheme, OwnerID: "theme-a", CacheKey: "problem_kmeans_2",
		ItemType: model.ItemTypeProblem, Method: "kmeans", NClusters: &n, Kind: "flat",
		Payload: `{"clusters":[]}`,
	}
	require.NoError(t, repo.Upsert(ctx, first))

	second := &model.ClusterCacheEntry{
		OwnerType: model.OwnerTheme, OwnerID: "theme-a", CacheKey: "problem_kmeans_2",
		ItemType: model.ItemTypeProblem, Method: "kmeans", NClusters: &n, Kind: "flat",
		Payload: `{"clusters":[{"clusterIndex":0,"items":[]}]}`,
	}
	require.NoError(t, repo.Upsert(ctx, second))

	other := &model.ClusterCacheEntry{
		OwnerType: model.OwnerQuestion, OwnerID: "theme-a", CacheKey: "problem_kmeans_2",
		ItemType: model.ItemTypeProblem, Method: "kmeans", NClusters: &n, Kind: "flat",
		Payload: `{"clusters":[]}`,
	}
	require.NoError(t, repo.Upsert(ctx, other))

	entries, err := repo.ListByOwner(ctx, model.OwnerTheme, "theme-a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, second.Payload, entries[0].Payload)
	require.NotNil(t, entries[0].NClusters)
	assert.Equal(t, 2, *entries[0].NClusters)
}
