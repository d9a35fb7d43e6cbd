package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/notify"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/hugin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
)

func newTokenizer(cfg *config.Config) (*tokenizer.Tokenizer, error) {
	stemmer, err := tokenizer.StemmerByName(cfg.Tokenizer.Stemmer)
	if err != nil {
		return nil, err
	}
	return tokenizer.New(stemmer), nil
}

func openStore(cfg *config.Config, m *metrics.Metrics) (*store.Store, error) {
	s, err := store.Open(cfg.Storage, m)
	if errors.Is(err, apperrors.ErrStoreLocked) {
		return nil, fmt.Errorf("%w (is 'hugin serve' or another indexer running?)", err)
	}
	return s, err
}

// openCatalog returns nil when the catalog is disabled.
func openCatalog(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*catalog.Catalog, error) {
	switch cfg.Catalog.Driver {
	case "", "none":
		return nil, nil
	}
	c, err := catalog.Open(ctx, cfg.Catalog, m)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	return c, nil
}

// openNotifier returns a nil notifier and a no-op closer when Kafka is
// disabled.
func openNotifier(cfg *config.Config, m *metrics.Metrics) (*notify.Notifier, func() error) {
	if !cfg.Kafka.Enabled {
		return nil, func() error { return nil }
	}
	producer := kafka.NewProducer(cfg.Kafka)
	slog.Info("commit notifications enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	return notify.New(producer, m, cfg.Server.WriteTimeout), producer.Close
}

// buildPipeline assembles a pipeline writing to sink. A non-nil catalog and
// notifier are attached as commit observers.
func buildPipeline(cfg *config.Config, sink index.Sink, m *metrics.Metrics, cat *catalog.Catalog, n *notify.Notifier) (*pipeline.Pipeline, error) {
	tok, err := newTokenizer(cfg)
	if err != nil {
		return nil, err
	}
	parser := extract.NewParser(cfg.Extract)
	deps := pipeline.Deps{
		Crawler:   crawler.NewWalker(cfg.Crawler, cfg.Storage.DataDir),
		Detector:  parser,
		Extractor: parser,
		Tokenizer: tok,
		Sink:      sink,
		Metrics:   m,
	}
	if cat != nil {
		deps.Observers = append(deps.Observers, cat)
	}
	if n != nil {
		deps.Observers = append(deps.Observers, n)
	}
	return pipeline.New(pipeline.OptionsFromConfig(cfg), deps)
}

// startMetrics serves metrics for the duration of a batch command. A busy
// port is logged and indexing continues without the endpoint.
func startMetrics(cfg *config.Config, m *metrics.Metrics) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !cfg.Metrics.Enabled {
		return noop
	}
	stop, err := m.Serve(fmt.Sprintf(":%d", cfg.Metrics.Port))
	if err != nil {
		slog.Warn("metrics endpoint disabled", "error", err)
		return noop
	}
	return stop
}
