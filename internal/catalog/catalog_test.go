package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
)

func openCatalog(t *testing.T, cacheSize int) (*Catalog, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	c, err := Open(context.Background(), config.CatalogConfig{
		Driver:    "sqlite",
		DSN:       filepath.Join(t.TempDir(), "catalog.db"),
		CacheSize: cacheSize,
	}, m)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, m
}

func doc(id, name string) index.IndexDocument {
	return index.IndexDocument{Owner: "ingrid", NamespaceID: "home", DocID: id, DocName: name, URI: "/home/ingrid/" + name}
}

func TestRecordAndLookup(t *testing.T) {
	c, _ := openCatalog(t, 16)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	require.NoError(t, c.Record(ctx, []index.IndexDocument{doc("d1", "notes.txt"), doc("d2", "todo.md")}))

	got, err := c.Lookup(ctx, []string{"d2", "missing", "d1", "d2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Document{
		DocID:       "d1",
		Owner:       "ingrid",
		NamespaceID: "home",
		Name:        "notes.txt",
		URI:         "/home/ingrid/notes.txt",
		IndexedAt:   fixed,
	}, got["d1"])
	assert.NotContains(t, got, "missing")

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecordUpsertsLatest(t *testing.T) {
	c, _ := openCatalog(t, 16)
	ctx := context.Background()
	require.NoError(t, c.Record(ctx, []index.IndexDocument{doc("d1", "old.txt")}))
	_, err := c.Lookup(ctx, []string{"d1"})
	require.NoError(t, err)

	require.NoError(t, c.Record(ctx, []index.IndexDocument{doc("d1", "new.txt")}))
	got, err := c.Lookup(ctx, []string{"d1"})
	require.NoError(t, err)
	assert.Equal(t, "new.txt", got["d1"].Name, "recording must invalidate the cached row")

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLookupCaches(t *testing.T) {
	c, m := openCatalog(t, 16)
	ctx := context.Background()
	require.NoError(t, c.Record(ctx, []index.IndexDocument{doc("d1", "a.txt")}))

	_, err := c.Lookup(ctx, []string{"d1"})
	require.NoError(t, err)
	_, err = c.Lookup(ctx, []string{"d1"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogCacheTotal.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogCacheTotal.WithLabelValues("hit")))
}

func TestLookupWithoutCache(t *testing.T) {
	c, m := openCatalog(t, 0)
	ctx := context.Background()
	require.NoError(t, c.Record(ctx, []index.IndexDocument{doc("d1", "a.txt")}))
	got, err := c.Lookup(ctx, []string{"d1"})
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got["d1"].Name)
	assert.Zero(t, testutil.ToFloat64(m.CatalogCacheTotal.WithLabelValues("miss")))
}

func TestCommittedObserver(t *testing.T) {
	c, _ := openCatalog(t, 16)
	ctx := context.Background()
	err := c.Committed(ctx, []index.DocumentWithTokens{{Doc: doc("d9", "x.txt")}})
	require.NoError(t, err)
	got, err := c.Lookup(ctx, []string{"d9"})
	require.NoError(t, err)
	assert.Equal(t, "/home/ingrid/x.txt", got["d9"].URI)
}

func TestReopenKeepsRows(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "catalog.db")
	cfg := config.CatalogConfig{Driver: "sqlite", DSN: dsn}
	ctx := context.Background()

	c, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, c.Record(ctx, []index.IndexDocument{doc("d1", "a.txt")}))
	require.NoError(t, c.Close())

	c, err = Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Ping(ctx))
	got, err := c.Lookup(ctx, []string{"d1"})
	require.NoError(t, err)
	assert.Contains(t, got, "d1")
}
