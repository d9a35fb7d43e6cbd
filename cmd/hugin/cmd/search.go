package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/searcher/provider"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
)

type searchOptions struct {
	namespaces []string
	format     string
}

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Look a term up in the online index",
		Long: `Look one exact term up in the given namespaces (search.namespaces by default).

Examples:
  hugin search invoice
  hugin search invoice --ns ingrid --ns shared --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, a, args[0], opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.namespaces, "ns", nil, "Namespaces to search (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, a *app, term string, opts searchOptions) error {
	cfg := a.cfg
	namespaces := opts.namespaces
	if len(namespaces) == 0 {
		namespaces = cfg.Search.Namespaces
	}
	m := metrics.New()
	s, err := openStore(cfg, m)
	if err != nil {
		return err
	}
	defer s.Close()
	tok, err := newTokenizer(cfg)
	if err != nil {
		return err
	}
	engine := query.New(s, tok, m, cfg.Search.QueryTimeout)
	hits, err := engine.Search(ctx, index.SearchRequest{Namespaces: namespaces, Query: term})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	if len(hits) == 0 {
		fmt.Fprintln(out, "no results")
		return nil
	}

	cat, err := openCatalog(ctx, cfg, m)
	if err != nil {
		return err
	}
	var metas provider.MetaSource
	if cat != nil {
		defer cat.Close()
		metas = cat
	}
	described, err := provider.New(engine, metas, namespaces).ResultMetas(ctx, hits.DocIDs())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAMESPACE\tNAME\tLOCATION")
	for i, hit := range hits {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", hit.NamespaceID, described[i].Name, described[i].Description)
	}
	return tw.Flush()
}
