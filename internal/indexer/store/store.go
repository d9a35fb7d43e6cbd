// Package store implements the online inverted index on Pebble.
//
// Every write is a Pebble merge of a docId onto namespace|token, applied by
// one writer goroutine; every lookup is served by one reader goroutine. A
// cross-process file lock keeps a second process out of the directory.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/gofrs/flock"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/keys"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/hugin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
)

// BatchError reports a batch that could not be committed. None of its
// documents were written.
type BatchError struct {
	Documents int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("committing batch of %d documents: %v", e.Documents, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Stats are lifetime counters for one Store.
type Stats struct {
	Inserts int64
	Gets    int64
}

// writeOp is the closed set of operations the writer goroutine applies.
type writeOp interface{ writeOp() }

type mergeBatch struct{ docs []index.DocumentWithTokens }

type ingestFiles struct{ paths []string }

func (mergeBatch) writeOp()  {}
func (ingestFiles) writeOp() {}

type writeRequest struct {
	op     writeOp
	result chan error
}

type readResult struct {
	hits index.SearchHits
	err  error
}

type readRequest struct {
	req    index.SearchRequest
	result chan readResult
}

// Store is the Pebble-backed online index.
type Store struct {
	db      *pebble.DB
	lock    *flock.Flock
	cfg     config.StorageConfig
	metrics *metrics.Metrics
	logger  *slog.Logger

	writes chan writeRequest
	reads  chan readRequest
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	inserts atomic.Int64
	gets    atomic.Int64
}

// Open takes the directory lock and opens the Pebble database under
// cfg.IndexDir. A nil m gets a private collector.
func Open(cfg config.StorageConfig, m *metrics.Metrics) (*Store, error) {
	if m == nil {
		m = metrics.New()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring %s: %w", cfg.LockPath(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", cfg.DataDir, apperrors.ErrStoreLocked)
	}

	log := slog.Default().With("component", "index-store")
	db, err := pebble.Open(cfg.IndexDir(), NewOptions(log))
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("opening index at %s: %w: %w", cfg.IndexDir(), apperrors.ErrStorageIO, err)
	}

	depth := cfg.QueueDepth
	if depth < 0 {
		depth = 0
	}
	s := &Store{
		db:      db,
		lock:    lock,
		cfg:     cfg,
		metrics: m,
		logger:  log,
		// Unbuffered: a write is accepted only when the writer takes it.
		writes: make(chan writeRequest),
		reads:  make(chan readRequest, depth),
	}
	s.wg.Add(2)
	go s.writeLoop()
	go s.readLoop()
	log.Info("index store opened",
		"dir", cfg.IndexDir(),
		"sync_writes", cfg.SyncWrites,
		"flush_on_commit", cfg.FlushOnCommit,
	)
	return s, nil
}

// InsertBatch merge-appends every token of docs in one atomic Pebble batch.
// ctx bounds only the wait for the writer; once accepted the batch runs to
// completion. A failed commit returns a *BatchError.
func (s *Store) InsertBatch(ctx context.Context, docs []index.DocumentWithTokens) error {
	if len(docs) == 0 {
		return nil
	}
	if err := keys.ValidateBatch(docs); err != nil {
		return err
	}
	return s.submit(ctx, mergeBatch{docs: docs})
}

// Ingest links bulk artifacts into the database. Their records merge with
// existing data exactly like online inserts.
func (s *Store) Ingest(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return s.submit(ctx, ingestFiles{paths: paths})
}

// Query looks the term up in each namespace in order. Missing keys
// contribute no hits; duplicates within a stored value are kept.
func (s *Store) Query(ctx context.Context, req index.SearchRequest) (index.SearchHits, error) {
	for _, ns := range req.Namespaces {
		if err := keys.ValidateNamespace(ns); err != nil {
			return nil, err
		}
	}
	r := readRequest{req: req, result: make(chan readResult, 1)}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, apperrors.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	select {
	case s.reads <- r:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return nil, ctx.Err()
	}

	select {
	case res := <-r.result:
		return res.hits, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats returns the lifetime insert and lookup counts.
func (s *Store) Stats() Stats {
	return Stats{Inserts: s.inserts.Load(), Gets: s.gets.Load()}
}

// Ping reports whether the store still accepts work.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return apperrors.ErrStoreClosed
	}
	return nil
}

// Close stops accepting work, waits for the in-flight write and read, then
// closes Pebble and releases the lock. Calling it again is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.writes)
	close(s.reads)
	s.mu.Unlock()

	s.wg.Wait()
	var errs []error
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing pebble: %w", err))
	}
	if err := s.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("releasing lock: %w", err))
	}
	s.logger.Info("index store closed", "inserts", s.inserts.Load(), "gets", s.gets.Load())
	return errors.Join(errs...)
}

func (s *Store) submit(ctx context.Context, op writeOp) error {
	req := writeRequest{op: op, result: make(chan error, 1)}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return apperrors.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		s.mu.RUnlock()
		return err
	}
	select {
	case s.writes <- req:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	return <-req.result
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for req := range s.writes {
		req.result <- s.apply(req.op)
	}
}

func (s *Store) readLoop() {
	defer s.wg.Done()
	for r := range s.reads {
		hits, err := s.lookup(r.req)
		r.result <- readResult{hits: hits, err: err}
	}
}

func (s *Store) apply(op writeOp) error {
	switch op := op.(type) {
	case mergeBatch:
		return s.commit(op.docs)
	case ingestFiles:
		return s.ingest(op.paths)
	default:
		panic(fmt.Sprintf("store: unhandled write op %T", op))
	}
}

func (s *Store) commit(docs []index.DocumentWithTokens) error {
	start := time.Now()
	n, err := s.commitBatch(docs)
	if err != nil {
		s.metrics.StoreBatchesTotal.WithLabelValues("error").Inc()
		s.logger.Error("batch commit failed", "documents", len(docs), "error", err)
		return &BatchError{Documents: len(docs), Err: fmt.Errorf("%w: %w", apperrors.ErrStorageIO, err)}
	}
	s.inserts.Add(int64(n))
	s.metrics.StoreInsertsTotal.Add(float64(n))
	s.metrics.StoreBatchesTotal.WithLabelValues("ok").Inc()
	s.metrics.StoreCommitDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug("batch committed",
		"documents", len(docs),
		"merges", n,
		"duration", time.Since(start),
	)
	return nil
}

func (s *Store) commitBatch(docs []index.DocumentWithTokens) (int, error) {
	b := s.db.NewBatch()
	defer b.Close()
	n := 0
	for _, d := range docs {
		for _, it := range keys.FromDocument(d) {
			if err := b.Merge(it.Key, it.Value, nil); err != nil {
				return 0, fmt.Errorf("staging merge for %q: %w", it.Key, err)
			}
			n++
		}
	}
	wo := pebble.NoSync
	if s.cfg.SyncWrites {
		wo = pebble.Sync
	}
	if err := b.Commit(wo); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	if s.cfg.FlushOnCommit {
		if err := s.db.Flush(); err != nil {
			return 0, fmt.Errorf("flushing memtable: %w", err)
		}
	}
	return n, nil
}

func (s *Store) ingest(paths []string) error {
	if err := s.db.Ingest(paths); err != nil {
		s.metrics.StoreIngestsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("ingesting %d files: %w: %w", len(paths), apperrors.ErrStorageIO, err)
	}
	s.metrics.StoreIngestsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("bulk files ingested", "files", len(paths))
	return nil
}

func (s *Store) lookup(req index.SearchRequest) (index.SearchHits, error) {
	hits := index.SearchHits{}
	for _, ns := range req.Namespaces {
		ids, err := s.get(keys.Encode(req.Query, ns))
		if err != nil {
			return nil, fmt.Errorf("looking up %q in namespace %q: %w: %w", req.Query, ns, apperrors.ErrStorageIO, err)
		}
		for _, id := range ids {
			hits = append(hits, index.SearchHit{DocID: id, NamespaceID: ns, Token: req.Query})
		}
	}
	return hits, nil
}

func (s *Store) get(key []byte) ([]string, error) {
	s.gets.Add(1)
	s.metrics.StoreGetsTotal.Inc()
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return keys.SplitValue(value), nil
}
