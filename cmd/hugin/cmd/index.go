package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
)

type indexOptions struct {
	dryRun    bool
	workers   int
	batchSize int
}

func newIndexCmd(a *app) *cobra.Command {
	var opts indexOptions
	cmd := &cobra.Command{
		Use:   "index [roots...]",
		Short: "Crawl directories into the online index",
		Long: `Crawl the given directories (or crawler.roots from the config) and
merge every file and folder found into the online index.

Examples:
  hugin index
  hugin index ~/Documents ~/Desktop --workers 4
  hugin index ~/src --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, a, args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Index into memory only and report what would be written")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Extraction workers (default crawler.workers)")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Documents per commit (default pipeline.batchSize)")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, a *app, args []string, opts indexOptions) error {
	cfg := a.cfg
	if opts.workers > 0 {
		cfg.Crawler.Workers = opts.workers
	}
	if opts.batchSize > 0 {
		cfg.Pipeline.BatchSize = opts.batchSize
	}
	roots := args
	if len(roots) == 0 {
		roots = cfg.Crawler.Roots
	}
	m := metrics.New()
	stopMetrics := startMetrics(cfg, m)
	defer stopMetrics(context.Background())

	start := time.Now()
	if opts.dryRun {
		mem := store.NewMemory()
		defer mem.Close()
		p, err := buildPipeline(cfg, mem, m, nil, nil)
		if err != nil {
			return err
		}
		stats, runErr := p.Run(ctx, roots...)
		printStats(cmd, stats, time.Since(start))
		fmt.Fprintf(cmd.OutOrStdout(), "distinct keys: %d\n", mem.Keys())
		return runErr
	}

	s, err := openStore(cfg, m)
	if err != nil {
		return err
	}
	defer s.Close()
	cat, err := openCatalog(ctx, cfg, m)
	if err != nil {
		return err
	}
	if cat != nil {
		defer cat.Close()
	}
	notifier, closeNotifier := openNotifier(cfg, m)
	defer closeNotifier()

	p, err := buildPipeline(cfg, s, m, cat, notifier)
	if err != nil {
		return err
	}
	slog.Info("indexing started", "roots", roots, "namespace", cfg.Index.Namespace, "workers", cfg.Crawler.Workers)
	stats, err := p.Run(ctx, roots...)
	printStats(cmd, stats, time.Since(start))
	return err
}

func printStats(cmd *cobra.Command, s pipeline.Stats, elapsed time.Duration) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "discovered %d, indexed %d (%d by name only), dropped %d\n", s.Discovered, s.Indexed, s.Fallbacks, s.Failed)
	fmt.Fprintf(out, "batches committed %d, failed %d, in %s\n", s.Batches, s.FailedBatches, elapsed.Round(time.Millisecond))
}
