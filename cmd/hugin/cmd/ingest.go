package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
)

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest bulk files into the online index",
		Long: `Link bulk files into the online index in one atomic step. Without arguments
every pending file under bulk.outputDir is taken, oldest first. Ingested files
are removed so running the command again cannot add their entries twice.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, a, args)
		},
	}
}

func runIngest(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	cfg := a.cfg
	paths := args
	if len(paths) == 0 {
		var err error
		if paths, err = segment.List(cfg.Bulk.OutputDir); err != nil {
			return fmt.Errorf("listing bulk files: %w", err)
		}
	}
	if len(paths) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to ingest")
		return nil
	}

	s, err := openStore(cfg, metrics.New())
	if err != nil {
		return err
	}
	defer s.Close()
	return ingestArtifacts(ctx, cmd, s, paths)
}

// ingestArtifacts ingests paths as one unit and then removes them.
func ingestArtifacts(ctx context.Context, cmd *cobra.Command, s *store.Store, paths []string) error {
	if err := s.Ingest(ctx, paths); err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "ingested %s\n", p)
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing ingested file: %w", err)
		}
	}
	return nil
}
