// Package provider implements the desktop search-provider contract on top
// of the query engine: multi-term AND queries, narrowing of a previous
// result set and result metadata.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
)

type Searcher interface {
	Search(ctx context.Context, req index.SearchRequest) (index.SearchHits, error)
}

// MetaSource resolves docIds to catalogued documents. *catalog.Catalog
// implements it.
type MetaSource interface {
	Lookup(ctx context.Context, ids []string) (map[string]catalog.Document, error)
}

// ResultMeta is what the desktop shell displays for one result.
type ResultMeta struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Provider answers the search-provider operations over a Searcher and a
// metadata source.
type Provider struct {
	searcher   Searcher
	metas      MetaSource
	namespaces []string
	logger     *slog.Logger
}

// New returns a Provider reading namespaces. metas may be nil, in which
// case every result is described by its id alone.
func New(s Searcher, metas MetaSource, namespaces []string) *Provider {
	return &Provider{
		searcher:   s,
		metas:      metas,
		namespaces: namespaces,
		logger:     slog.Default().With("component", "search-provider"),
	}
}

// InitialResults returns the ids matching every term, deduplicated in the
// order the first term found them.
func (p *Provider) InitialResults(ctx context.Context, terms []string) ([]string, error) {
	return p.intersect(ctx, nil, terms)
}

// SubsearchResults narrows previous to the ids that also match every term,
// preserving the order of previous.
func (p *Provider) SubsearchResults(ctx context.Context, previous, terms []string) ([]string, error) {
	if len(previous) == 0 {
		return []string{}, nil
	}
	return p.intersect(ctx, dedup(previous), terms)
}

func (p *Provider) intersect(ctx context.Context, current, terms []string) ([]string, error) {
	searched := 0
	for _, term := range terms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		hits, err := p.searcher.Search(ctx, index.SearchRequest{Namespaces: p.namespaces, Query: term})
		if err != nil {
			return nil, fmt.Errorf("term %q: %w", term, err)
		}
		ids := dedup(hits.DocIDs())
		if current == nil {
			current = ids
		} else {
			current = keep(current, ids)
		}
		searched++
		if len(current) == 0 {
			break
		}
	}
	if searched == 0 || current == nil {
		return []string{}, nil
	}
	p.logger.Debug("provider query", "terms", terms, "results", len(current))
	return current, nil
}

// ResultMetas describes ids in the order given. Ids the catalog does not
// know are named after themselves.
func (p *Provider) ResultMetas(ctx context.Context, ids []string) ([]ResultMeta, error) {
	known := map[string]catalog.Document{}
	if p.metas != nil && len(ids) > 0 {
		var err error
		known, err = p.metas.Lookup(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("resolving result metadata: %w", err)
		}
	}
	out := make([]ResultMeta, 0, len(ids))
	for _, id := range ids {
		d, ok := known[id]
		if !ok {
			out = append(out, ResultMeta{ID: id, Name: id})
			continue
		}
		out = append(out, ResultMeta{ID: id, Name: d.Name, Description: d.URI})
	}
	return out, nil
}

func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// keep returns the elements of ordered that are also in other.
func keep(ordered, other []string) []string {
	set := make(map[string]struct{}, len(other))
	for _, id := range other {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(ordered))
	for _, id := range ordered {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
