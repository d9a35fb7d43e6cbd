package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/hugin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
)

func newBulkCmd(a *app) *cobra.Command {
	var ingest bool
	cmd := &cobra.Command{
		Use:   "bulk [roots...]",
		Short: "Build a sorted bulk index file from a crawl",
		Long: `Crawl the given directories and write everything found to one sorted
bulk file under bulk.outputDir instead of the online index. With --ingest the
file is linked into the online index afterwards; its entries merge with what
is already there. Without it the file waits for 'hugin ingest'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(cmd.Context(), cmd, a, args, ingest)
		},
	}
	cmd.Flags().BoolVar(&ingest, "ingest", false, "Ingest the finished file into the online index")
	return cmd
}

func runBulk(ctx context.Context, cmd *cobra.Command, a *app, args []string, ingest bool) error {
	cfg := a.cfg
	roots := args
	if len(roots) == 0 {
		roots = cfg.Crawler.Roots
	}
	m := metrics.New()
	start := time.Now()

	cat, err := openCatalog(ctx, cfg, m)
	if err != nil {
		return err
	}
	if cat != nil {
		defer cat.Close()
	}

	collector := segment.NewCollector(segment.NewWriter(cfg.Bulk.OutputDir, m))
	p, err := buildPipeline(cfg, collector, m, cat, nil)
	if err != nil {
		return err
	}
	stats, err := p.Run(ctx, roots...)
	printStats(cmd, stats, time.Since(start))
	if ctx.Err() != nil {
		return fmt.Errorf("bulk build interrupted, no file written: %w", ctx.Err())
	}
	if err != nil {
		slog.Warn("some roots could not be crawled", "error", err)
	}

	path, err := collector.Finish()
	if errors.Is(err, apperrors.ErrEmptySegment) {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to write")
		return nil
	}
	if err != nil {
		return fmt.Errorf("building bulk file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	if !ingest {
		return nil
	}

	s, err := openStore(cfg, m)
	if err != nil {
		return err
	}
	defer s.Close()
	return ingestArtifacts(ctx, cmd, s, []string{path})
}
