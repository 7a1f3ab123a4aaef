package app

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"opinion-engine/internal/ai"
	"opinion-engine/internal/model"
	"opinion-engine/internal/platform/sqlite"
	"opinion-engine/internal/repository"
)

const testDims = 8

// fakeProvider returns a pseudo-random vector seeded by the text, so equal
// texts embed identically and distinct texts almost never collide.
type fakeProvider struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
	nan   map[string]bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{calls: map[string]int{}, fail: map[string]bool{}, nan: map[string]bool{}}
}

func (f *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls[text]++
	failing, nan := f.fail[text], f.nan[text]
	f.mu.Unlock()
	if failing {
		return nil, &ai.ProviderError{Op: "create embeddings", Err: errors.New("quota exceeded")}
	}
	if nan {
		vec := make([]float32, testDims)
		vec[0] = float32(math.NaN())
		return vec, nil
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	vec := make([]float32, testDims)
	for i := range vec {
		vec[i] = float32(rng.NormFloat64())
	}
	return vec, nil
}

func (f *fakeProvider) Model() string { return "fake-embedding" }

func (f *fakeProvider) setFailing(text string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[text] = failing
}

func (f *fakeProvider) setNaN(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nan[text] = true
}

func (f *fakeProvider) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]float32
}

func (c *mapCache) Get(_ context.Context, model, text string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[model+"|"+text]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, model, text string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[model+"|"+text] = vec
	return nil
}

type recordingPublisher struct {
	jobs []model.EmbeddingJob
}

func (p *recordingPublisher) PublishEmbeddingJob(_ context.Context, job model.EmbeddingJob) error {
	p.jobs = append(p.jobs, job)
	return nil
}

type testEnv struct {
	ctx        context.Context
	db         *gorm.DB
	provider   *fakeProvider
	cache      *mapCache
	publisher  *recordingPublisher
	themes     *repository.ThemeRepository
	questions  *repository.QuestionRepository
	opinions   *repository.OpinionRepository
	embeddings *repository.EmbeddingRepository
	clusters   *repository.ClusterCacheRepository
	store      *EmbeddingStore
	generator  *EmbeddingService
	search     *SearchService
	cluster    *ClusterService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := zaptest.NewLogger(t)
	env := &testEnv{
		ctx:        ctx,
		db:         db,
		provider:   newFakeProvider(),
		cache:      &mapCache{data: map[string][]float32{}},
		publisher:  &recordingPublisher{},
		themes:     repository.NewThemeRepository(db),
		questions:  repository.NewQuestionRepository(db),
		opinions:   repository.NewOpinionRepository(db),
		embeddings: repository.NewEmbeddingRepository(db),
		clusters:   repository.NewClusterCacheRepository(db),
	}
	resolver := NewScopeResolver(env.themes, env.questions)
	env.store = NewEmbeddingStore(env.provider, env.embeddings, 3, log)
	env.generator = NewEmbeddingService(resolver, env.opinions, env.store, env.publisher, log)
	env.search = NewSearchService(resolver, env.embeddings, env.opinions, env.store, env.cache, log)
	env.cluster = NewClusterService(resolver, env.embeddings, env.opinions, env.clusters, 5, log)
	return env
}

func (e *testEnv) theme(t *testing.T, title string) string {
	t.Helper()
	theme := &model.Theme{Title: title}
	require.NoError(t, e.themes.Create(e.ctx, theme))
	return theme.ID
}

func (e *testEnv) question(t *testing.T, themeID string) string {
	t.Helper()
	q := &model.SharpQuestion{ThemeID: themeID, QuestionText: "what should change first?"}
	require.NoError(t, e.questions.Create(e.ctx, q))
	return q.ID
}

func (e *testEnv) item(t *testing.T, itemType model.ItemType, themeID, text string) string {
	t.Helper()
	id, err := e.opinions.Create(e.ctx, itemType, themeID, text)
	require.NoError(t, err)
	return id
}

func (e *testEnv) record(t *testing.T, itemType model.ItemType, id string) *model.EmbeddingRecord {
	t.Helper()
	var records []model.EmbeddingRecord
	require.NoError(t, e.db.Where("item_type = ? AND item_id = ?", itemType, id).Find(&records).Error)
	if len(records) == 0 {
		return nil
	}
	return &records[0]
}

func (e *testEnv) flagged(t *testing.T, itemType model.ItemType, id string) bool {
	t.Helper()
	var flags []bool
	require.NoError(t, e.db.Table(itemType.Table()).Where("id = ?", id).Pluck("embedding_generated", &flags).Error)
	return len(flags) == 1 && flags[0]
}
