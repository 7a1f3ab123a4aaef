package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"opinion-engine/internal/logger"
	"opinion-engine/internal/repository"
	"opinion-engine/internal/vector"
)

// QueryVectorCache memoizes transient query vectors per model and text.
type QueryVectorCache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool, error)
	Set(ctx context.Context, model, text string, vec []float32) error
}

// SearchResult is one hit joined with the item it refers to.
type SearchResult struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Similarity float64   `json:"similarity"`
}

// SearchRequest carries the raw query parameters.
type SearchRequest struct {
	QueryText string
	ItemType  string
	K         int
}

type SearchService struct {
	resolver   *ScopeResolver
	embeddings *repository.EmbeddingRepository
	opinions   *repository.OpinionRepository
	store      *EmbeddingStore
	cache      QueryVectorCache
	logger     *zap.Logger
}

func NewSearchService(
	resolver *ScopeResolver,
	embeddings *repository.EmbeddingRepository,
	opinions *repository.OpinionRepository,
	store *EmbeddingStore,
	cache QueryVectorCache,
	log *zap.Logger,
) *SearchService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SearchService{
		resolver:   resolver,
		embeddings: embeddings,
		opinions:   opinions,
		store:      store,
		cache:      cache,
		logger:     log.With(zap.String(logger.FieldComponent, "search_service")),
	}
}

// Search returns up to K items in the owner's scope ordered by cosine
// similarity to the query text, ties broken by ascending id.
// An empty scope yields an empty slice.
func (s *SearchService) Search(ctx context.Context, owner OwnerRef, req SearchRequest) ([]SearchResult, error) {
	queryText := strings.TrimSpace(req.QueryText)
	if queryText == "" {
		return nil, invalidf("queryText", "queryText is required")
	}
	itemType, err := parseItemType(req.ItemType)
	if err != nil {
		return nil, err
	}
	if req.K <= 0 {
		return nil, invalidf("k", "k must be a positive integer")
	}

	scope, err := s.resolver.Resolve(ctx, owner, itemType)
	if err != nil {
		return nil, err
	}

	records, err := s.embeddings.ListByScope(ctx, scope.TopicID, scope.QuestionID, scope.ItemType)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, min(req.K, len(records)))
	if len(records) == 0 {
		return results, nil
	}

	query, err := s.queryVector(ctx, queryText)
	if err != nil {
		return nil, err
	}

	candidates := make([]vector.Candidate, 0, len(records))
	for i := range records {
		vec := records[i].EmbeddingVector()
		if len(vec) == 0 {
			continue
		}
		candidates = append(candidates, vector.Candidate{ID: records[i].ItemID, Vector: vec})
	}
	hits := vector.TopK(query, candidates, req.K)

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	items, err := s.opinions.ListByIDs(ctx, scope.ItemType, ids)
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		item, ok := items[h.ID]
		if !ok {
			continue
		}
		results = append(results, SearchResult{
			ID:         h.ID,
			Text:       item.Text,
			CreatedAt:  item.CreatedAt,
			UpdatedAt:  item.UpdatedAt,
			Similarity: h.Similarity,
		})
	}

	s.logger.Debug("search finished",
		owner.logField(),
		zap.String(logger.FieldItemType, string(itemType)),
		zap.Int(logger.FieldCount, len(results)),
	)
	return results, nil
}

func (s *SearchService) queryVector(ctx context.Context, text string) ([]float32, error) {
	model := s.store.Model()
	if s.cache != nil {
		vec, ok, err := s.cache.Get(ctx, model, text)
		if err != nil {
			s.logger.Warn("query vector cache read failed", zap.Error(err))
		} else if ok {
			return vec, nil
		}
	}

	vec, err := s.store.GenerateTransient(ctx, text)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, model, text, vec); err != nil {
			s.logger.Warn("query vector cache write failed", zap.Error(err))
		}
	}
	return vec, nil
}
