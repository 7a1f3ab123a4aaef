package app

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"opinion-engine/internal/ai"
	"opinion-engine/internal/logger"
	"opinion-engine/internal/model"
	"opinion-engine/internal/repository"
	"opinion-engine/internal/vector"
)

const (
	StatusSuccess      = "success"
	StatusNoItems      = "no items to process"
	defaultConcurrency = 4
)

// BatchResult summarizes one generation run. Failed lists the ids whose
// provider call failed; they stay unflagged and can be retried. Skipped lists
// pending items with a blank statement, which are never sent to the provider.
type BatchResult struct {
	Status    string
	Processed int
	Failed    []string
	Skipped   []string
}

// EmbeddingStore is the only writer of the embedding flag. Each item moves
// NotEmbedded -> Embedded together with its record, or not at all.
type EmbeddingStore struct {
	provider    ai.EmbeddingProvider
	embeddings  *repository.EmbeddingRepository
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

func NewEmbeddingStore(provider ai.EmbeddingProvider, embeddings *repository.EmbeddingRepository, concurrency int, log *zap.Logger) *EmbeddingStore {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EmbeddingStore{
		provider:    provider,
		embeddings:  embeddings,
		concurrency: concurrency,
		logger:      log.With(zap.String(logger.FieldComponent, "embedding_store")),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// GenerateForBatch embeds every item that is not yet embedded. Provider
// failures are isolated per item; when every pending item fails the result is
// returned together with a *ai.ProviderError. Storage errors abort the batch.
// Items with a blank statement stay pending and are reported as skipped.
func (s *EmbeddingStore) GenerateForBatch(ctx context.Context, items []model.OpinionItem) (BatchResult, error) {
	pending := make([]model.OpinionItem, 0, len(items))
	var skipped []string
	for _, item := range items {
		if item.EmbeddingGenerated {
			continue
		}
		if strings.TrimSpace(item.Text) == "" {
			s.logger.Warn("skipped item with blank statement",
				zap.String(logger.FieldItemID, item.ID),
				zap.String(logger.FieldItemType, string(item.ItemType)),
			)
			skipped = append(skipped, item.ID)
			continue
		}
		pending = append(pending, item)
	}
	sort.Strings(skipped)
	if len(pending) == 0 {
		return BatchResult{Status: StatusNoItems, Skipped: skipped}, nil
	}

	var (
		mu        sync.Mutex
		processed int
		failed    []string
		firstErr  error
	)
	fail := func(item model.OpinionItem, err error) {
		s.logger.Warn("embed item failed",
			zap.String(logger.FieldItemID, item.ID),
			zap.String(logger.FieldItemType, string(item.ItemType)),
			zap.Error(err),
		)
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, item.ID)
		if firstErr == nil {
			firstErr = err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, item := range pending {
		g.Go(func() error {
			vec, err := s.provider.Embed(gctx, item.Text)
			if err != nil {
				fail(item, err)
				return nil
			}

			record := &model.EmbeddingRecord{
				ItemType:    item.ItemType,
				ItemID:      item.ID,
				TopicID:     item.TopicID,
				QuestionID:  item.QuestionID,
				Model:       s.provider.Model(),
				GeneratedAt: s.now(),
			}
			if err := record.SetVector(vector.Normalize(vec)); err != nil {
				fail(item, &ai.ProviderError{Op: "decode", Err: err})
				return nil
			}

			stored, err := s.embeddings.MarkEmbedded(gctx, record)
			if err != nil {
				return errors.Wrapf(err, "store embedding for %s %s", item.ItemType, item.ID)
			}
			if stored {
				mu.Lock()
				processed++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}

	sort.Strings(failed)
	result := BatchResult{Status: StatusSuccess, Processed: processed, Failed: failed, Skipped: skipped}
	if len(failed) == len(pending) {
		var perr *ai.ProviderError
		if !errors.As(firstErr, &perr) {
			perr = &ai.ProviderError{Op: "embed", Err: firstErr}
		}
		return result, perr
	}
	return result, nil
}

// Invalidate returns an item to NotEmbedded by dropping its record and
// clearing its flag. It reports whether a record existed.
func (s *EmbeddingStore) Invalidate(ctx context.Context, topicID string, itemType model.ItemType, itemID string) (bool, error) {
	removed, err := s.embeddings.Invalidate(ctx, topicID, itemType, itemID)
	if err != nil {
		return false, err
	}
	s.logger.Info("embedding invalidated",
		zap.String(logger.FieldThemeID, topicID),
		zap.String(logger.FieldItemID, itemID),
		zap.String(logger.FieldItemType, string(itemType)),
		zap.Bool("removed", removed),
	)
	return removed, nil
}

// GenerateTransient embeds a one-off text such as a search query. Nothing is stored.
func (s *EmbeddingStore) GenerateTransient(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return vector.Normalize(vec), nil
}

// Model names the provider model the stored vectors come from.
func (s *EmbeddingStore) Model() string {
	return s.provider.Model()
}
