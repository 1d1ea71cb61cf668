// Package retriever returns grounding passages for a tutoring question from
// a pre-built vector index.
package retriever

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultK is the number of passages a retrieval-path turn asks for.
const DefaultK = 10

// Passage is one grounding chunk from the index.
type Passage struct {
	Text     string
	SourceID string
	Score    float32
}

// Retriever returns up to k passages ordered by relevance.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Passage, error)
}

// Nop is used when no index is configured. It never returns passages.
type Nop struct{}

// Retrieve returns no passages.
func (Nop) Retrieve(context.Context, string, int) ([]Passage, error) {
	return nil, nil
}

// TotalChars sums the text length of passages.
func TotalChars(passages []Passage) int {
	n := 0
	for _, p := range passages {
		n += len(p.Text)
	}
	return n
}

type timeoutRetriever struct {
	inner   Retriever
	timeout time.Duration
	log     *zap.Logger
}

// WithTimeout bounds every call to r. A call that runs out of time yields
// zero passages and no error, so the caller falls back to a direct answer.
// Cancellation by the caller still surfaces as an error.
func WithTimeout(r Retriever, timeout time.Duration, log *zap.Logger) Retriever {
	if timeout <= 0 {
		return r
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &timeoutRetriever{inner: r, timeout: timeout, log: log}
}

func (t *timeoutRetriever) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	passages, err := t.inner.Retrieve(callCtx, query, k)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		t.log.Warn("retrieval timed out", zap.Duration("timeout", t.timeout), zap.String("query", query))
		return nil, nil
	}
	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, err
}
