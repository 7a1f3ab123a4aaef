package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	redisv9 "github.com/redis/go-redis/v9"
)

// QueryEmbeddingCache keeps transient query vectors so repeated searches with
// the same text skip the provider. Persisted item vectors never go through it.
type QueryEmbeddingCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewQueryEmbeddingCache(client *redisv9.Client, ttl time.Duration) *QueryEmbeddingCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &QueryEmbeddingCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *QueryEmbeddingCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, c.key(model, text)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get query embedding failed")
	}

	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, false, errors.Wrap(err, "unmarshal cached query embedding failed")
	}
	return vec, true, nil
}

func (c *QueryEmbeddingCache) Set(ctx context.Context, model, text string, vec []float32) error {
	payload, err := json.Marshal(vec)
	if err != nil {
		return errors.Wrap(err, "marshal query embedding failed")
	}
	if err := c.client.Set(ctx, c.key(model, text), payload, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set query embedding failed")
	}
	return nil
}

func (c *QueryEmbeddingCache) key(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:query:%s:%s", model, hex.EncodeToString(sum[:]))
}
