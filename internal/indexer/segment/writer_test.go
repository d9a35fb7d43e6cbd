package segment

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/keys"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/hugin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
)

func doc(ns, id string, terms ...string) index.DocumentWithTokens {
	tokens := make([]tokenizer.Token, len(terms))
	for i, v := range terms {
		tokens[i] = tokenizer.Token{Value: v, Positions: []int{i}}
	}
	return index.DocumentWithTokens{Doc: index.IndexDocument{NamespaceID: ns, DocID: id, DocName: id}, Tokens: tokens}
}

func it(key, value string) keys.InsertionToken {
	return keys.InsertionToken{Key: []byte(key), Value: []byte(value)}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriteRejectsUnsortedInputWithoutArtifact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bulk")
	m := metrics.New()
	w := NewWriter(dir, m)

	_, err := w.Write([]keys.InsertionToken{it("ns|b", "d1"), it("ns|a", "d2")})
	require.ErrorIs(t, err, apperrors.ErrOrderingViolation)

	var oe *OrderingError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, 1, oe.Index)
	assert.Equal(t, []byte("ns|a"), oe.Key)

	assert.Empty(t, dirEntries(t, dir))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BulkFilesTotal.WithLabelValues("rejected")))
}

func TestWriteRejectsEqualAdjacentKeys(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(dir, nil).Write([]keys.InsertionToken{it("ns|a", "d1"), it("ns|a", "d2")})
	assert.ErrorIs(t, err, apperrors.ErrOrderingViolation)
	assert.Empty(t, dirEntries(t, dir))
}

func TestWriteEmpty(t *testing.T) {
	_, err := NewWriter(t.TempDir(), nil).Write(nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptySegment)
}

func TestWriteProducesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)
	w.now = func() time.Time { return time.Unix(0, 1700000000000000000) }

	path, err := w.Write([]keys.InsertionToken{it("ns|a", "d1"), it("ns|b", "d2")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "1700000000000000000.sst"), path)
	assert.Equal(t, []string{"1700000000000000000.sst"}, dirEntries(t, dir))

	listed, err := List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, listed)
}

func TestCoalesce(t *testing.T) {
	got := Coalesce([]keys.InsertionToken{
		it("ns|a", "d1"), it("ns|a", "d2"), it("ns|b", "d3"), it("ns|c", "d4"), it("ns|c", "d4"),
	})
	assert.Equal(t, []keys.InsertionToken{it("ns|a", "d1,d2"), it("ns|b", "d3"), it("ns|c", "d4,d4")}, got)
	assert.NoError(t, CheckOrder(got))
}

func TestCoalesceDoesNotAliasInput(t *testing.T) {
	in := []keys.InsertionToken{it("ns|a", "d1"), it("ns|a", "d2")}
	Coalesce(in)
	assert.Equal(t, "d1", string(in[0].Value))
}

func TestBuildAndIngestIntoStore(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	w := NewWriter(filepath.Join(base, "bulk"), nil)

	path, err := w.Build([]index.DocumentWithTokens{
		doc("ns2", "doc3", "løk", "rødgrøt"),
		doc("ns1", "doc1", "pølse"),
		doc("ns1", "doc2", "saft", "suse"),
		doc("ns1", "doc4", "saft"),
	})
	require.NoError(t, err)

	s, err := store.Open(config.StorageConfig{DataDir: filepath.Join(base, "data")}, nil)
	require.NoError(t, err)
	defer s.Close()

	// Existing online data merges with ingested records.
	require.NoError(t, s.InsertBatch(ctx, []index.DocumentWithTokens{doc("ns1", "doc0", "saft")}))
	require.NoError(t, s.Ingest(ctx, []string{path}))

	hits, err := s.Query(ctx, index.SearchRequest{Namespaces: []string{"ns1", "ns2"}, Query: "løk"})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc3"}, hits.DocIDs())

	hits, err = s.Query(ctx, index.SearchRequest{Namespaces: []string{"ns1"}, Query: "saft"})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc0", "doc2", "doc4"}, hits.DocIDs())
}

func TestCollectorBuildsOneArtifact(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := NewCollector(NewWriter(dir, nil))

	require.NoError(t, c.InsertBatch(ctx, []index.DocumentWithTokens{doc("ns", "d1", "beta")}))
	require.NoError(t, c.InsertBatch(ctx, []index.DocumentWithTokens{doc("ns", "d2", "alpha", "beta")}))
	assert.ErrorIs(t, c.InsertBatch(ctx, []index.DocumentWithTokens{doc("n|s", "d3", "x")}), apperrors.ErrDelimiterCollision)
	assert.Equal(t, 2, c.Len())

	path, err := c.Finish()
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, 0, c.Len())

	_, err = c.Finish()
	assert.ErrorIs(t, err, apperrors.ErrEmptySegment)
}
