package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/searcher/provider"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/middleware"
)

type serveOptions struct {
	index    bool
	interval time.Duration
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search-provider API over HTTP",
		Long: `Serve hit lookup, the search-provider operations, health checks and
Prometheus metrics on server.port. The server owns the index directory while it
runs, so indexing happens in-process with --index.

Entries are only ever appended. Every --reindex-every pass appends each
unchanged document's id to its keys again, so stored values and query hit
lists grow with every pass.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.index, "index", false, "Crawl crawler.roots in the background after startup")
	cmd.Flags().DurationVar(&opts.interval, "reindex-every", 0, "With --index, crawl again at this interval (each pass re-appends every document)")
	return cmd
}

func runServe(ctx context.Context, a *app, opts serveOptions) error {
	cfg := a.cfg
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Storage.DataDir)
	m := metrics.New()

	s, err := openStore(cfg, m)
	if err != nil {
		return err
	}
	defer s.Close()
	cat, err := openCatalog(ctx, cfg, m)
	if err != nil {
		return err
	}
	var metas provider.MetaSource
	if cat != nil {
		defer cat.Close()
		metas = cat
	}
	tok, err := newTokenizer(cfg)
	if err != nil {
		return err
	}

	engine := query.New(s, tok, m, cfg.Search.QueryTimeout)
	h := handler.New(engine, provider.New(engine, metas, cfg.Search.Namespaces), cfg.Search.Namespaces)

	checker := health.NewChecker()
	checker.Register("index_store", health.PingCheck(s, true))
	if cat != nil {
		checker.Register("catalog", health.PingCheck(cat, false))
	}

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", m.Handler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var wg sync.WaitGroup
	if opts.index {
		notifier, closeNotifier := openNotifier(cfg, m)
		defer closeNotifier()
		p, err := buildPipeline(cfg, s, m, cat, notifier)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				stats, err := p.Run(ctx, cfg.Crawler.Roots...)
				if err != nil && ctx.Err() == nil {
					slog.Error("background indexing failed", "error", err)
				}
				slog.Info("background indexing finished", "indexed", stats.Indexed, "failed", stats.Failed)
				if opts.interval <= 0 {
					return
				}
				select {
				case <-time.After(opts.interval):
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	err = server.ListenAndServe()
	cancel()
	// The store must outlive the last background commit.
	wg.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	slog.Info("search service stopped")
	return nil
}
