package store

import (
	"context"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/keys"
	apperrors "github.com/Adithya-Monish-Kumar-K/hugin/pkg/errors"
)

// Memory is an in-process index with the same key schema and merge-append
// semantics as Store. It backs dry runs and tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]string
	closed  bool
	inserts int64
	gets    int64
}

// NewMemory returns an empty, open Memory.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]string)}
}

// InsertBatch appends every token of docs. The batch is validated first,
// so a rejected batch leaves nothing behind.
func (m *Memory) InsertBatch(ctx context.Context, docs []index.DocumentWithTokens) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := keys.ValidateBatch(docs); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return apperrors.ErrStoreClosed
	}
	for _, d := range docs {
		for _, it := range keys.FromDocument(d) {
			k := string(it.Key)
			m.entries[k] = append(m.entries[k], string(it.Value))
			m.inserts++
		}
	}
	return nil
}

// Query looks req.Query up in each namespace in order.
func (m *Memory) Query(ctx context.Context, req index.SearchRequest) (index.SearchHits, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, apperrors.ErrStoreClosed
	}
	hits := index.SearchHits{}
	for _, ns := range req.Namespaces {
		if err := keys.ValidateNamespace(ns); err != nil {
			return nil, err
		}
		m.gets++
		for _, id := range m.entries[string(keys.Encode(req.Query, ns))] {
			hits = append(hits, index.SearchHit{DocID: id, NamespaceID: ns, Token: req.Query})
		}
	}
	return hits, nil
}

// Keys returns the number of distinct namespace|token keys.
func (m *Memory) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Inserts: m.inserts, Gets: m.gets}
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return apperrors.ErrStoreClosed
	}
	return nil
}

// Close marks the index closed; later calls fail with ErrStoreClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
