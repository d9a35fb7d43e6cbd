// Package pipeline drives crawling, extraction, tokenization, batching and commits.
//
// A single crawler goroutine feeds a fixed pool of workers. Each dispatched
// item gets a one-shot result channel that is queued in discovery order, so
// the batcher sees results in the order they were found no matter which
// worker finishes first. Batches go to one committer through a channel of
// capacity one: at most one InsertBatch runs at a time and at most one more
// batch waits behind it.
package pipeline

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/hugin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/resilience"
)

// Crawler emits items found under root.
type Crawler interface {
	Walk(ctx context.Context, root string, out chan<- crawler.Item) error
}

// CommitObserver is told about every batch after it has been committed.
// Observer errors are logged and never fail the batch.
type CommitObserver interface {
	Committed(ctx context.Context, docs []index.DocumentWithTokens) error
}

// Options are the tunables of one pipeline.
type Options struct {
	Owner           string
	Namespace       string
	Workers         int
	QueueSize       int
	BatchSize       int
	FlushInterval   time.Duration
	MaxExtractBytes int64
	CommitRetries   int
	RetryDelay      time.Duration
}

// OptionsFromConfig collects the pipeline settings spread over cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Owner:           cfg.Index.Owner,
		Namespace:       cfg.Index.Namespace,
		Workers:         cfg.Crawler.Workers,
		QueueSize:       cfg.Crawler.QueueSize,
		BatchSize:       cfg.Pipeline.BatchSize,
		FlushInterval:   cfg.Pipeline.FlushInterval,
		MaxExtractBytes: cfg.Crawler.MaxExtractBytes,
		CommitRetries:   cfg.Pipeline.CommitRetries,
		RetryDelay:      cfg.Pipeline.RetryDelay,
	}
}

// Deps are the collaborators of one pipeline. Metrics may be nil.
type Deps struct {
	Crawler   Crawler
	Detector  extract.Detector
	Extractor extract.Extractor
	Tokenizer *tokenizer.Tokenizer
	Sink      index.Sink
	Observers []CommitObserver
	Metrics   *metrics.Metrics
}

// Stats summarizes one Run.
type Stats struct {
	Discovered    int
	Indexed       int
	Fallbacks     int
	Failed        int
	Batches       int
	FailedBatches int
}

// Pipeline is one crawl-to-commit run configuration. Run may be called
// repeatedly, but not concurrently.
type Pipeline struct {
	opts    Options
	deps    Deps
	open    func(path string) (io.ReadCloser, error)
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New validates deps and fills in defaults for zero-valued opts.
func New(opts Options, deps Deps) (*Pipeline, error) {
	if deps.Crawler == nil || deps.Detector == nil || deps.Extractor == nil || deps.Sink == nil {
		return nil, fmt.Errorf("pipeline: crawler, detector, extractor and sink are required: %w", apperrors.ErrInvalidInput)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.QueueSize < opts.Workers {
		opts.QueueSize = opts.Workers
	}
	if deps.Tokenizer == nil {
		deps.Tokenizer = tokenizer.New(nil)
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Pipeline{
		opts:    opts,
		deps:    deps,
		open:    func(path string) (io.ReadCloser, error) { return os.Open(path) },
		metrics: m,
		logger:  slog.Default().With("component", "pipeline", "namespace", opts.Namespace),
	}, nil
}

// DocID derives a stable identifier from an item's path.
func DocID(path string) string {
	id := uuid.NewMD5(uuid.NameSpaceURL, []byte("file://"+path))
	return hex.EncodeToString(id[:])
}

type job struct {
	item   crawler.Item
	result chan<- result
}

type result struct {
	item     crawler.Item
	doc      index.DocumentWithTokens
	fallback string
	err      error
	skipped  bool
}

// Run indexes everything under roots. Cancelling ctx stops discovery and
// dispatch; items already resolved are still committed before Run returns
// ctx.Err(). A missing root is reported but does not stop the others.
func (p *Pipeline) Run(ctx context.Context, roots ...string) (Stats, error) {
	var (
		stats    Stats
		rootErrs []error
		g        errgroup.Group
	)
	start := time.Now()
	items := make(chan crawler.Item, p.opts.QueueSize)
	jobs := make(chan job)
	ordered := make(chan chan result, p.opts.QueueSize)
	commits := make(chan []index.DocumentWithTokens, 1)

	g.Go(func() error {
		defer close(items)
		for _, root := range roots {
			if err := p.deps.Crawler.Walk(ctx, root, items); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.Error("crawl failed", "root", root, "error", err)
				rootErrs = append(rootErrs, err)
			}
		}
		return nil
	})

	g.Go(func() error {
		defer close(ordered)
		defer close(jobs)
		for item := range items {
			if ctx.Err() != nil {
				continue
			}
			res := make(chan result, 1)
			select {
			case jobs <- job{item: item, result: res}:
			case <-ctx.Done():
				continue
			}
			stats.Discovered++
			ordered <- res
		}
		return nil
	})

	for i := 0; i < p.opts.Workers; i++ {
		g.Go(func() error {
			for j := range jobs {
				if ctx.Err() != nil {
					j.result <- result{item: j.item, skipped: true}
					continue
				}
				j.result <- p.resolve(j.item)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(commits)
		p.batch(ordered, commits, &stats)
		return nil
	})

	g.Go(func() error {
		commitCtx := context.WithoutCancel(ctx)
		for docs := range commits {
			p.commit(commitCtx, docs, &stats)
		}
		return nil
	})

	g.Wait()
	p.logger.Info("pipeline finished",
		"discovered", stats.Discovered,
		"indexed", stats.Indexed,
		"fallbacks", stats.Fallbacks,
		"failed", stats.Failed,
		"batches", stats.Batches,
		"failed_batches", stats.FailedBatches,
		"duration", time.Since(start),
	)
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, errors.Join(rootErrs...)
}

// batch drains results in discovery order into fixed-size batches. A
// partial batch is flushed when FlushInterval elapses and at the end.
func (p *Pipeline) batch(ordered <-chan chan result, commits chan<- []index.DocumentWithTokens, stats *Stats) {
	var tick <-chan time.Time
	if p.opts.FlushInterval > 0 {
		t := time.NewTicker(p.opts.FlushInterval)
		defer t.Stop()
		tick = t.C
	}
	pending := make([]index.DocumentWithTokens, 0, p.opts.BatchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		commits <- pending
		pending = make([]index.DocumentWithTokens, 0, p.opts.BatchSize)
	}

	for {
		select {
		case future, ok := <-ordered:
			if !ok {
				flush()
				return
			}
			p.metrics.PipelineQueueLength.Set(float64(len(ordered)))
			res := <-future
			kind := kindOf(res.item)
			switch {
			case res.skipped:
				p.metrics.ItemsTotal.WithLabelValues(kind, "skipped").Inc()
				continue
			case res.err != nil:
				stats.Failed++
				p.metrics.ItemsTotal.WithLabelValues(kind, "failed").Inc()
				p.logger.Warn("item dropped", "path", res.item.Meta().Path, "error", res.err)
				continue
			}
			if res.fallback != "" {
				stats.Fallbacks++
				p.metrics.FallbacksTotal.WithLabelValues(res.fallback).Inc()
			}
			p.metrics.ItemsTotal.WithLabelValues(kind, "indexed").Inc()
			pending = append(pending, res.doc)
			if len(pending) >= p.opts.BatchSize {
				flush()
			}
		case <-tick:
			flush()
		}
	}
}

func (p *Pipeline) commit(ctx context.Context, docs []index.DocumentWithTokens, stats *Stats) {
	insert := func() error { return p.deps.Sink.InsertBatch(ctx, docs) }
	var err error
	if p.opts.CommitRetries > 0 {
		err = resilience.Retry(ctx, "insert-batch", resilience.RetryConfig{
			MaxAttempts:  p.opts.CommitRetries + 1,
			InitialDelay: p.opts.RetryDelay,
			ShouldRetry:  func(err error) bool { return errors.Is(err, apperrors.ErrStorageIO) },
		}, insert)
	} else {
		err = insert()
	}
	if err != nil {
		stats.FailedBatches++
		p.logger.Error("batch failed", "documents", len(docs), "first_doc", docs[0].Doc.URI, "error", err)
		return
	}
	stats.Batches++
	stats.Indexed += len(docs)
	p.metrics.DocsIndexedTotal.Add(float64(len(docs)))
	for _, o := range p.deps.Observers {
		if err := o.Committed(ctx, docs); err != nil {
			p.logger.Warn("commit observer failed", "observer", fmt.Sprintf("%T", o), "error", err)
		}
	}
}

func kindOf(item crawler.Item) string {
	switch item.(type) {
	case crawler.File:
		return "file"
	case crawler.Folder:
		return "folder"
	default:
		return "unknown"
	}
}

// resolve turns one item into a tokenized document.
func (p *Pipeline) resolve(item crawler.Item) result {
	var (
		content  string
		fallback string
		err      error
	)
	switch it := item.(type) {
	case crawler.Folder:
		content = tokenizer.ExpandName(it.Name)
	case crawler.File:
		content, fallback, err = p.fileContent(it)
	default:
		err = fmt.Errorf("unsupported item %T", item)
	}
	if err != nil {
		return result{item: item, err: err}
	}
	meta := item.Meta()
	return result{
		item:     item,
		fallback: fallback,
		doc: index.DocumentWithTokens{
			Doc: index.IndexDocument{
				Owner:       p.opts.Owner,
				NamespaceID: p.opts.Namespace,
				DocID:       DocID(meta.Path),
				DocName:     meta.Name,
				URI:         meta.Path,
			},
			Tokens: p.deps.Tokenizer.DocumentTokens(meta.Name, content),
		},
	}
}

// fileContent returns the text to tokenize for f and, when that text is
// derived from the name instead, the reason why.
func (p *Pipeline) fileContent(f crawler.File) (string, string, error) {
	nameOnly := tokenizer.ExpandName(f.Name)
	if p.opts.MaxExtractBytes > 0 && f.Size > p.opts.MaxExtractBytes {
		p.logger.Info("file above extraction limit, indexing name only",
			"path", f.Path, "size", f.Size, "limit", p.opts.MaxExtractBytes)
		return nameOnly, "too_large", nil
	}
	if f.Size == 0 {
		return nameOnly, "empty", nil
	}

	r, err := p.open(f.Path)
	if err != nil {
		return "", "", fmt.Errorf("opening %s: %w: %w", f.Path, apperrors.ErrParseFailure, err)
	}
	defer r.Close()

	head := make([]byte, extract.SniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", "", fmt.Errorf("reading %s: %w: %w", f.Path, apperrors.ErrParseFailure, err)
	}
	head = head[:n]

	mt, err := p.deps.Detector.Detect(f.Name, f.Size, bytes.NewReader(head))
	if err == nil {
		var text string
		text, err = p.deps.Extractor.Extract(f.Name, io.MultiReader(bytes.NewReader(head), r), mt)
		if err == nil {
			return text, "", nil
		}
	}
	if apperrors.IsFallback(err) {
		p.logger.Debug("no usable content, indexing name only", "path", f.Path, "reason", err)
		return nameOnly, "unreadable", nil
	}
	return "", "", err
}
