package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"opinion-engine/internal/logger"
	"opinion-engine/internal/model"
	"opinion-engine/internal/repository"
)

// EmbeddingJobPublisher hands generation jobs to a background worker.
type EmbeddingJobPublisher interface {
	PublishEmbeddingJob(ctx context.Context, job model.EmbeddingJob) error
}

// EmbeddingService collects the unembedded items of a theme or question and
// runs them through the embedding store, either inline or via the job queue.
type EmbeddingService struct {
	resolver  *ScopeResolver
	opinions  *repository.OpinionRepository
	store     *EmbeddingStore
	publisher EmbeddingJobPublisher
	logger    *zap.Logger
}

func NewEmbeddingService(
	resolver *ScopeResolver,
	opinions *repository.OpinionRepository,
	store *EmbeddingStore,
	publisher EmbeddingJobPublisher,
	log *zap.Logger,
) *EmbeddingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmbeddingService{
		resolver:  resolver,
		opinions:  opinions,
		store:     store,
		publisher: publisher,
		logger:    log.With(zap.String(logger.FieldComponent, "embedding_service")),
	}
}

// Generate embeds the owner's pending items of the given type, or of both
// types when rawItemType is empty.
func (s *EmbeddingService) Generate(ctx context.Context, owner OwnerRef, rawItemType string) (BatchResult, error) {
	itemTypes, err := parseItemTypes(rawItemType)
	if err != nil {
		return BatchResult{}, err
	}
	return s.generate(ctx, owner, itemTypes)
}

// Enqueue validates the request and the owner, then publishes a job for the worker.
func (s *EmbeddingService) Enqueue(ctx context.Context, owner OwnerRef, rawItemType string) (model.EmbeddingJob, error) {
	if s.publisher == nil {
		return model.EmbeddingJob{}, ErrAsyncUnavailable
	}
	itemTypes, err := parseItemTypes(rawItemType)
	if err != nil {
		return model.EmbeddingJob{}, err
	}
	if err := s.resolver.Check(ctx, owner); err != nil {
		return model.EmbeddingJob{}, err
	}

	job := model.EmbeddingJob{
		ID:          uuid.NewString(),
		OwnerType:   owner.Type,
		OwnerID:     owner.ID,
		ItemTypes:   itemTypes,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishEmbeddingJob(ctx, job); err != nil {
		return model.EmbeddingJob{}, err
	}
	s.logger.Info("embedding job queued",
		zap.String(logger.FieldJobID, job.ID),
		owner.logField(),
	)
	return job, nil
}

// RunJob executes a queued job with the same path as Generate.
func (s *EmbeddingService) RunJob(ctx context.Context, job model.EmbeddingJob) (BatchResult, error) {
	itemTypes := job.ItemTypes
	if len(itemTypes) == 0 {
		itemTypes = []model.ItemType{model.ItemTypeProblem, model.ItemTypeSolution}
	}
	for _, t := range itemTypes {
		if _, ok := model.ParseItemType(string(t)); !ok {
			return BatchResult{}, invalidf("itemType", "unknown item type %q in job %s", t, job.ID)
		}
	}
	return s.generate(ctx, OwnerRef{Type: job.OwnerType, ID: job.OwnerID}, itemTypes)
}

// Invalidate drops the stored vector of one item in the owner's theme and
// marks it pending again. The owning application calls it when an item is
// edited or deleted.
func (s *EmbeddingService) Invalidate(ctx context.Context, owner OwnerRef, rawItemType, itemID string) (bool, error) {
	itemType, err := parseItemType(rawItemType)
	if err != nil {
		return false, err
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return false, invalidf("itemId", "itemId is required")
	}
	scope, err := s.resolver.Resolve(ctx, owner, itemType)
	if err != nil {
		return false, err
	}
	return s.store.Invalidate(ctx, scope.TopicID, itemType, itemID)
}

func (s *EmbeddingService) generate(ctx context.Context, owner OwnerRef, itemTypes []model.ItemType) (BatchResult, error) {
	start := time.Now()

	var items []model.OpinionItem
	for _, itemType := range itemTypes {
		scope, err := s.resolver.Resolve(ctx, owner, itemType)
		if err != nil {
			return BatchResult{}, err
		}
		batch, err := s.pendingItems(ctx, scope)
		if err != nil {
			return BatchResult{}, err
		}
		items = append(items, batch...)
	}

	result, err := s.store.GenerateForBatch(ctx, items)
	s.logger.Info("embedding generation finished",
		owner.logField(),
		zap.Int(logger.FieldCount, len(items)),
		zap.Int(logger.FieldProcessed, result.Processed),
		zap.Int(logger.FieldFailed, len(result.Failed)),
		zap.Int(logger.FieldSkipped, len(result.Skipped)),
		zap.Int64(logger.FieldDurationMS, time.Since(start).Milliseconds()),
		zap.Error(err),
	)
	return result, err
}

func (s *EmbeddingService) pendingItems(ctx context.Context, scope Scope) ([]model.OpinionItem, error) {
	if scope.QuestionID != nil {
		return s.opinions.ListUnembeddedByQuestion(ctx, scope.TopicID, *scope.QuestionID, scope.ItemType)
	}
	return s.opinions.ListUnembeddedByTheme(ctx, scope.TopicID, scope.ItemType)
}
