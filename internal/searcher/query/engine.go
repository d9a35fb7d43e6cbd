// Package query answers single-term lookups against the inverted index.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/resilience"
)

// Engine runs normalized single-term lookups with an optional deadline and
// records every outcome in the search metrics.
type Engine struct {
	querier   index.Querier
	tokenizer *tokenizer.Tokenizer
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New returns an Engine over q. The tokenizer must match the one used at
// index time; nil means the default. A zero timeout disables the deadline.
func New(q index.Querier, tok *tokenizer.Tokenizer, m *metrics.Metrics, timeout time.Duration) *Engine {
	if tok == nil {
		tok = tokenizer.New(nil)
	}
	if m == nil {
		m = metrics.New()
	}
	return &Engine{
		querier:   q,
		tokenizer: tok,
		timeout:   timeout,
		metrics:   m,
		logger:    slog.Default().With("component", "query-engine"),
	}
}

// Search normalizes req.Query and looks it up in every namespace of req, in
// order. An empty term or namespace list yields no hits and no lookup.
func (e *Engine) Search(ctx context.Context, req index.SearchRequest) (index.SearchHits, error) {
	start := time.Now()
	term := e.tokenizer.NormalizeQuery(req.Query)
	if term == "" || len(req.Namespaces) == 0 {
		e.observe("zero_result", start, 0)
		return index.SearchHits{}, nil
	}

	hits, err := resilience.Call(ctx, e.timeout, "search", func(ctx context.Context) (index.SearchHits, error) {
		return e.querier.Query(ctx, index.SearchRequest{Namespaces: req.Namespaces, Query: term})
	})
	if err != nil {
		e.observe("error", start, 0)
		e.logger.Warn("query failed", "term", term, "namespaces", req.Namespaces, "error", err)
		return nil, fmt.Errorf("searching %q: %w", term, err)
	}

	resultType := "hit"
	if len(hits) == 0 {
		resultType = "zero_result"
	}
	e.observe(resultType, start, len(hits))
	e.logger.Debug("query executed",
		"term", term,
		"namespaces", len(req.Namespaces),
		"hits", len(hits),
		"duration", time.Since(start),
	)
	return hits, nil
}

func (e *Engine) observe(resultType string, start time.Time, n int) {
	e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	e.metrics.SearchLatency.Observe(time.Since(start).Seconds())
	e.metrics.SearchResultsCount.Observe(float64(n))
}
