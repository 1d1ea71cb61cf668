package retriever

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// QdrantConfig locates the passage collection.
type QdrantConfig struct {
	Host       string
	Port       int // gRPC port, default 6334
	APIKey     string
	UseTLS     bool
	Collection string
	Lambda     float64 // MMR balance, default 0.5
}

// pointQuerier is the part of *qdrant.Client the retriever uses.
type pointQuerier interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// Qdrant retrieves passages from a Qdrant collection whose points carry a
// "content" and "source_id" payload. It over-fetches 2k candidates with
// their vectors and narrows them to k by MMR selection.
type Qdrant struct {
	client     pointQuerier
	closer     func() error
	embedder   Embedder
	collection string
	lambda     float64
	log        *zap.Logger
}

// NewQdrant connects to Qdrant over gRPC.
func NewQdrant(cfg QdrantConfig, embedder Embedder, log *zap.Logger) (*Qdrant, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	q := newQdrant(client, embedder, cfg.Collection, cfg.Lambda, log)
	q.closer = client.Close
	return q, nil
}

func newQdrant(client pointQuerier, embedder Embedder, collection string, lambda float64, log *zap.Logger) *Qdrant {
	if lambda <= 0 || lambda > 1 {
		lambda = DefaultLambda
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Qdrant{
		client:     client,
		embedder:   embedder,
		collection: collection,
		lambda:     lambda,
		log:        log.Named("retriever"),
	}
}

// Retrieve embeds query and returns up to k MMR-selected passages.
func (q *Qdrant) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		k = DefaultK
	}
	vec, err := q.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	fetchK := uint64(2 * k)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &fetchK,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	cands := make([]candidate, 0, len(points))
	for _, p := range points {
		text := p.GetPayload()["content"].GetStringValue()
		if text == "" {
			continue
		}
		cands = append(cands, candidate{
			passage: Passage{
				Text:     text,
				SourceID: p.GetPayload()["source_id"].GetStringValue(),
				Score:    p.GetScore(),
			},
			vector: p.GetVectors().GetVector().GetData(),
		})
	}

	out := selectMMR(vec, cands, k, q.lambda)
	q.log.Debug("retrieved passages",
		zap.Int("candidates", len(cands)),
		zap.Int("selected", len(out)),
	)
	return out, nil
}

// Close releases the gRPC connection.
func (q *Qdrant) Close() error {
	if q.closer == nil {
		return nil
	}
	return q.closer()
}

var _ Retriever = (*Qdrant)(nil)
