package ai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// EmbeddingProvider turns text into a fixed-dimension vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model names the upstream model; vectors from different models are not comparable.
	Model() string
}

// EmbeddingConfig holds API settings for an OpenAI-compatible embeddings endpoint.
type EmbeddingConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	Dimensions        int // 0 accepts whatever the provider returns
	Timeout           time.Duration
	RequestsPerSecond float64 // <= 0 disables rate limiting
}

// ProviderError reports a failed embedding call. It is never retried here.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return "embedding provider " + e.Op + " failed: " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// OpenAICompatibleClient calls CreateEmbeddings on any OpenAI-compatible API
// (OpenAI, Gemini's compatibility layer, SiliconFlow, ...).
type OpenAICompatibleClient struct {
	client     *openai.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
}

func NewOpenAICompatibleClient(cfg EmbeddingConfig) (*OpenAICompatibleClient, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("embedding model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &OpenAICompatibleClient{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		limiter:    rate.NewLimiter(limit, burst),
	}, nil
}

func (c *OpenAICompatibleClient) Model() string {
	return c.model
}

// Embed returns the embedding vector for the given text.
func (c *OpenAICompatibleClient) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ProviderError{Op: "embed", Err: errors.New("embedding input is empty")}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Op: "rate limit", Err: err}
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, &ProviderError{Op: "create embeddings", Err: err}
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &ProviderError{Op: "decode", Err: errors.New("empty embedding in response")}
	}

	vec := resp.Data[0].Embedding
	if c.dimensions > 0 && len(vec) != c.dimensions {
		return nil, &ProviderError{
			Op:  "decode",
			Err: errors.Newf("embedding dimension %d, expected %d", len(vec), c.dimensions),
		}
	}
	return vec, nil
}
