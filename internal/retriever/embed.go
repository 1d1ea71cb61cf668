package retriever

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Embedder turns a query into the vector space of the index.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DefaultEmbeddingTTL is how long a cached query embedding is kept.
const DefaultEmbeddingTTL = 7 * 24 * time.Hour

// NewOpenAIEmbedder builds a langchaingo embedder backed by the OpenAI
// embeddings API.
func NewOpenAIEmbedder(apiKey, model string) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	client, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai embedding client: %w", err)
	}
	e, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &langchainEmbedder{inner: e}, nil
}

type langchainEmbedder struct {
	inner embeddings.Embedder
}

func (l *langchainEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	raw, err := l.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out, nil
}

// CachedEmbedder memoises query embeddings in Redis. Concurrent misses for
// the same query share one upstream call. Cache failures are logged and
// never fail the embedding.
type CachedEmbedder struct {
	inner  Embedder
	rdb    redis.Cmdable
	model  string
	ttl    time.Duration
	log    *zap.Logger
	flight singleflight.Group
}

// NewCachedEmbedder wraps inner with a Redis cache keyed by model and query.
func NewCachedEmbedder(inner Embedder, rdb redis.Cmdable, model string, ttl time.Duration, log *zap.Logger) *CachedEmbedder {
	if ttl <= 0 {
		ttl = DefaultEmbeddingTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedEmbedder{inner: inner, rdb: rdb, model: model, ttl: ttl, log: log}
}

// CacheKey returns the Redis key for a query embedding.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "dsatutor:embedding:" + model + ":" + hex.EncodeToString(sum[:])
}

// EmbedQuery returns the cached embedding or computes and stores it.
func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}
	key := CacheKey(c.model, text)

	cached, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float32
		decErr := gob.NewDecoder(bytes.NewReader(cached)).Decode(&vec)
		if decErr == nil {
			return vec, nil
		}
		c.log.Warn("discarding undecodable cached embedding", zap.String("key", key), zap.Error(decErr))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("embedding cache read failed", zap.String("key", key), zap.Error(err))
	}

	res, err, _ := c.flight.Do(key, func() (any, error) {
		vec, err := c.inner.EmbedQuery(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("embed query: empty embedding")
		}

		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(vec); err != nil {
			c.log.Warn("encode embedding for cache", zap.Error(err))
			return vec, nil
		}
		if err := c.rdb.Set(ctx, key, buf.Bytes(), c.ttl).Err(); err != nil {
			c.log.Warn("embedding cache write failed", zap.String("key", key), zap.Error(err))
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]float32), nil
}
