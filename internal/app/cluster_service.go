package app

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"opinion-engine/internal/cluster"
	"opinion-engine/internal/logger"
	"opinion-engine/internal/model"
	"opinion-engine/internal/repository"
)

const defaultNClusters = 5

// CacheKey identifies one slot of an owner's clustering results. It renders
// as "<itemType>_<method>_<n_clusters|custom>" only at the storage boundary.
type CacheKey struct {
	ItemType  model.ItemType
	Method    cluster.Method
	NClusters *int
}

func (k CacheKey) String() string {
	suffix := "custom"
	if k.NClusters != nil {
		suffix = strconv.Itoa(*k.NClusters)
	}
	return string(k.ItemType) + "_" + string(k.Method) + "_" + suffix
}

// ClusterParams mirrors the request params object. DistanceThreshold is
// accepted but reserved: the hierarchical result is always the full tree.
type ClusterParams struct {
	NClusters         *int     `json:"n_clusters,omitempty"`
	DistanceThreshold *float64 `json:"distance_threshold,omitempty"`
}

// ClusterRequest carries the raw cluster request body.
type ClusterRequest struct {
	ItemType string
	Method   string
	Params   *ClusterParams
}

// ClusterSpec is a validated ClusterRequest.
type ClusterSpec struct {
	ItemType  model.ItemType
	Method    cluster.Method
	NClusters int
}

func (s ClusterSpec) cacheKey() CacheKey {
	key := CacheKey{ItemType: s.ItemType, Method: s.Method}
	if s.Method == cluster.MethodKMeans {
		n := s.NClusters
		key.NClusters = &n
	}
	return key
}

type ClusterService struct {
	resolver         *ScopeResolver
	embeddings       *repository.EmbeddingRepository
	opinions         *repository.OpinionRepository
	cacheRepo        *repository.ClusterCacheRepository
	defaultNClusters int
	logger           *zap.Logger
}

func NewClusterService(
	resolver *ScopeResolver,
	embeddings *repository.EmbeddingRepository,
	opinions *repository.OpinionRepository,
	cacheRepo *repository.ClusterCacheRepository,
	defaultN int,
	log *zap.Logger,
) *ClusterService {
	if defaultN <= 0 {
		defaultN = defaultNClusters
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ClusterService{
		resolver:         resolver,
		embeddings:       embeddings,
		opinions:         opinions,
		cacheRepo:        cacheRepo,
		defaultNClusters: defaultN,
		logger:           log.With(zap.String(logger.FieldComponent, "cluster_service")),
	}
}

// ParseSpec validates a request and fills in defaults: method kmeans and
// n_clusters from configuration.
func (s *ClusterService) ParseSpec(req ClusterRequest) (ClusterSpec, error) {
	itemType, err := parseItemType(req.ItemType)
	if err != nil {
		return ClusterSpec{}, err
	}

	rawMethod := strings.TrimSpace(req.Method)
	if rawMethod == "" {
		rawMethod = string(cluster.MethodKMeans)
	}
	method, ok := cluster.ParseMethod(rawMethod)
	if !ok {
		return ClusterSpec{}, invalidf("method", "method must be 'kmeans' or 'hierarchical'")
	}

	spec := ClusterSpec{ItemType: itemType, Method: method}
	if method == cluster.MethodKMeans {
		spec.NClusters = s.defaultNClusters
		if req.Params != nil && req.Params.NClusters != nil {
			spec.NClusters = *req.Params.NClusters
		}
		if spec.NClusters < 1 {
			return ClusterSpec{}, invalidf("params.n_clusters", "params.n_clusters must be an integer >= 1")
		}
	}
	if req.Params != nil && req.Params.DistanceThreshold != nil && *req.Params.DistanceThreshold < 0 {
		return ClusterSpec{}, invalidf("params.distance_threshold", "params.distance_threshold must not be negative")
	}
	return spec, nil
}

// Cluster groups every embedded item in the owner's scope and, when the
// result is non-empty, stores it on the owner under its cache key.
func (s *ClusterService) Cluster(ctx context.Context, owner OwnerRef, req ClusterRequest) (*cluster.Result, error) {
	spec, err := s.ParseSpec(req)
	if err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(ctx, owner, spec.ItemType)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	points, err := s.points(ctx, scope)
	if err != nil {
		return nil, err
	}

	var result *cluster.Result
	switch spec.Method {
	case cluster.MethodHierarchical:
		result = cluster.Agglomerative(points)
	default:
		result = cluster.KMeans(points, spec.NClusters)
	}

	key := spec.cacheKey()
	fields := []zap.Field{
		owner.logField(),
		zap.String(logger.FieldMethod, string(spec.Method)),
		zap.String(logger.FieldCacheKey, key.String()),
		zap.Int(logger.FieldCount, result.ItemCount()),
		zap.Int64(logger.FieldDurationMS, time.Since(start).Milliseconds()),
	}
	if result.IsEmpty() {
		s.logger.Info("nothing to cluster", fields...)
		return result, nil
	}

	if err := s.store(ctx, owner, spec, key, result); err != nil {
		return nil, err
	}
	s.logger.Info("clustering finished", fields...)
	return result, nil
}

// Results returns the owner's cached clustering results keyed by cache key.
func (s *ClusterService) Results(ctx context.Context, owner OwnerRef) (map[string]json.RawMessage, error) {
	if err := s.resolver.Check(ctx, owner); err != nil {
		return nil, err
	}
	entries, err := s.cacheRepo.ListByOwner(ctx, owner.Type, owner.ID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(entries))
	for _, e := range entries {
		out[e.CacheKey] = json.RawMessage(e.Payload)
	}
	return out, nil
}

func (s *ClusterService) store(ctx context.Context, owner OwnerRef, spec ClusterSpec, key CacheKey, result *cluster.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "marshal cluster result failed")
	}
	return s.cacheRepo.Upsert(ctx, &model.ClusterCacheEntry{
		OwnerType: owner.Type,
		OwnerID:   owner.ID,
		CacheKey:  key.String(),
		ItemType:  spec.ItemType,
		Method:    string(spec.Method),
		NClusters: key.NClusters,
		Kind:      string(result.Kind),
		Payload:   string(payload),
	})
}

// points loads the scope's vectors joined with item text. Items deleted since
// embedding are skipped, as are vectors whose dimension differs from the
// most common one (left over from an earlier model).
func (s *ClusterService) points(ctx context.Context, scope Scope) ([]cluster.Point, error) {
	records, err := s.embeddings.ListByScope(ctx, scope.TopicID, scope.QuestionID, scope.ItemType)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(records))
	for i := range records {
		ids = append(ids, records[i].ItemID)
	}
	items, err := s.opinions.ListByIDs(ctx, scope.ItemType, ids)
	if err != nil {
		return nil, err
	}

	points := make([]cluster.Point, 0, len(records))
	dimCount := map[int]int{}
	for i := range records {
		item, ok := items[records[i].ItemID]
		if !ok {
			continue
		}
		vec := records[i].EmbeddingVector()
		if len(vec) == 0 {
			continue
		}
		points = append(points, cluster.Point{ID: item.ID, Text: item.Text, Vector: vec})
		dimCount[len(vec)]++
	}
	if len(dimCount) <= 1 {
		return points, nil
	}

	dim, best := 0, 0
	for d, c := range dimCount {
		if c > best || (c == best && d < dim) {
			dim, best = d, c
		}
	}
	kept := points[:0]
	for _, p := range points {
		if len(p.Vector) == dim {
			kept = append(kept, p)
		}
	}
	s.logger.Warn("skipped vectors with mismatched dimension",
		zap.Int("dimension", dim),
		zap.Int("skipped", len(points)-len(kept)),
	)
	return kept, nil
}
