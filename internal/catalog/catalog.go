// Package catalog records the metadata of indexed documents so search
// results can be shown with their names and locations. The inverted index
// only stores docIds.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
)

// Document is one catalog row. The latest indexing of a docId wins.
type Document struct {
	DocID       string    `json:"doc_id"`
	Owner       string    `json:"owner"`
	NamespaceID string    `json:"namespace_id"`
	Name        string    `json:"name"`
	URI         string    `json:"uri"`
	IndexedAt   time.Time `json:"indexed_at"`
}

const schema = `CREATE TABLE IF NOT EXISTS documents (
	doc_id       TEXT PRIMARY KEY,
	owner        TEXT NOT NULL,
	namespace_id TEXT NOT NULL,
	name         TEXT NOT NULL,
	uri          TEXT NOT NULL,
	indexed_at   BIGINT NOT NULL
)`

const upsertSQL = `INSERT INTO documents (doc_id, owner, namespace_id, name, uri, indexed_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (doc_id) DO UPDATE SET
	owner = excluded.owner,
	namespace_id = excluded.namespace_id,
	name = excluded.name,
	uri = excluded.uri,
	indexed_at = excluded.indexed_at`

const selectSQL = `SELECT doc_id, owner, namespace_id, name, uri, indexed_at FROM documents WHERE doc_id = ?`

// Catalog stores the metadata of indexed documents and serves lookups
// through an LRU cache.
type Catalog struct {
	client  *database.Client
	cache   *lru.Cache[string, Document]
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Open connects to the configured database and creates the schema.
func Open(ctx context.Context, cfg config.CatalogConfig, m *metrics.Metrics) (*Catalog, error) {
	client, err := database.New(cfg)
	if err != nil {
		return nil, err
	}
	c, err := New(ctx, client, cfg.CacheSize, m)
	if err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an open client. A cacheSize below one disables caching.
func New(ctx context.Context, client *database.Client, cacheSize int, m *metrics.Metrics) (*Catalog, error) {
	if m == nil {
		m = metrics.New()
	}
	if _, err := client.DB.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}
	c := &Catalog{
		client:  client,
		metrics: m,
		logger:  slog.Default().With("component", "catalog"),
		now:     time.Now,
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, Document](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating catalog cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// Committed records the documents of a committed batch.
func (c *Catalog) Committed(ctx context.Context, docs []index.DocumentWithTokens) error {
	plain := make([]index.IndexDocument, len(docs))
	for i, d := range docs {
		plain[i] = d.Doc
	}
	return c.Record(ctx, plain)
}

// Record upserts docs in one transaction.
func (c *Catalog) Record(ctx context.Context, docs []index.IndexDocument) error {
	if len(docs) == 0 {
		return nil
	}
	at := c.now().UTC()
	err := c.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, c.client.Rebind(upsertSQL))
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, d := range docs {
			if _, err := stmt.ExecContext(ctx, d.DocID, d.Owner, d.NamespaceID, d.DocName, d.URI, at.UnixNano()); err != nil {
				return fmt.Errorf("recording %s: %w", d.DocID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if c.cache != nil {
		for _, d := range docs {
			c.cache.Remove(d.DocID)
		}
	}
	c.logger.Debug("documents recorded", "count", len(docs))
	return nil
}

// Lookup returns the documents known for ids. Unknown ids are absent from
// the result.
func (c *Catalog) Lookup(ctx context.Context, ids []string) (map[string]Document, error) {
	found := make(map[string]Document, len(ids))
	var stmt *sql.Stmt
	defer func() {
		if stmt != nil {
			stmt.Close()
		}
	}()
	for _, id := range ids {
		if _, ok := found[id]; ok {
			continue
		}
		if c.cache != nil {
			if d, ok := c.cache.Get(id); ok {
				c.metrics.CatalogCacheTotal.WithLabelValues("hit").Inc()
				found[id] = d
				continue
			}
			c.metrics.CatalogCacheTotal.WithLabelValues("miss").Inc()
		}
		if stmt == nil {
			var err error
			stmt, err = c.client.DB.PrepareContext(ctx, c.client.Rebind(selectSQL))
			if err != nil {
				return nil, fmt.Errorf("preparing lookup: %w", err)
			}
		}
		d, err := scan(stmt.QueryRowContext(ctx, id))
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", id, err)
		}
		if c.cache != nil {
			c.cache.Add(id, d)
		}
		found[id] = d
	}
	return found, nil
}

func scan(row *sql.Row) (Document, error) {
	var (
		d  Document
		at int64
	)
	if err := row.Scan(&d.DocID, &d.Owner, &d.NamespaceID, &d.Name, &d.URI, &at); err != nil {
		return Document{}, err
	}
	d.IndexedAt = time.Unix(0, at).UTC()
	return d, nil
}

// Count returns the number of catalogued documents.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.client.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

func (c *Catalog) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

func (c *Catalog) Close() error {
	return c.client.Close()
}
