// Package segment builds sorted bulk artifacts: Pebble sstables holding one
// merge record per namespace|token key, ready to be ingested by the online
// store.
package segment

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/pebble/objstorage/objstorageprovider"
	"github.com/cockroachdb/pebble/sstable"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/keys"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/hugin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
)

// Extension names finished artifacts. In-progress files carry an extra
// ".tmp" suffix and are never ingested.
const Extension = ".sst"

// OrderingError reports the first record that is not strictly greater than
// its predecessor.
type OrderingError struct {
	Index int
	Prev  []byte
	Key   []byte
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("record %d: key %q does not sort after %q", e.Index, e.Key, e.Prev)
}

func (e *OrderingError) Unwrap() error { return apperrors.ErrOrderingViolation }

// Writer turns sorted InsertionTokens into sstable files.
type Writer struct {
	dataDir string
	fs      vfs.FS
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Writer that writes artifacts into dataDir.
func NewWriter(dataDir string, m *metrics.Metrics) *Writer {
	if m == nil {
		m = metrics.New()
	}
	return &Writer{
		dataDir: dataDir,
		fs:      vfs.Default,
		now:     time.Now,
		metrics: m,
		logger:  slog.Default().With("component", "bulk-writer"),
	}
}

// CheckOrder verifies that tokens are strictly ascending by key.
func CheckOrder(tokens []keys.InsertionToken) error {
	for i := 1; i < len(tokens); i++ {
		if keys.Compare(tokens[i-1].Key, tokens[i].Key) >= 0 {
			return &OrderingError{Index: i, Prev: tokens[i-1].Key, Key: tokens[i].Key}
		}
	}
	return nil
}

// Coalesce joins runs of equal adjacent keys into one record whose value is
// the ValueDelimiter-joined list of their values, in input order. Input must
// already be sorted.
func Coalesce(sorted []keys.InsertionToken) []keys.InsertionToken {
	out := make([]keys.InsertionToken, 0, len(sorted))
	for _, it := range sorted {
		if n := len(out); n > 0 && bytes.Equal(out[n-1].Key, it.Key) {
			v := append(bytes.Clone(out[n-1].Value), keys.ValueDelimiter)
			out[n-1].Value = append(v, it.Value...)
			continue
		}
		out = append(out, keys.InsertionToken{Key: it.Key, Value: it.Value})
	}
	return out
}

// Build prepares, coalesces and writes docs as one artifact.
func (w *Writer) Build(docs []index.DocumentWithTokens) (string, error) {
	if err := keys.ValidateBatch(docs); err != nil {
		return "", err
	}
	return w.Write(Coalesce(keys.PrepareBatch(docs)))
}

// Write atomically creates a new artifact from strictly ascending tokens.
// The order is checked before any file is created, and a failed write
// leaves nothing behind. It returns the artifact's full path.
func (w *Writer) Write(tokens []keys.InsertionToken) (string, error) {
	if len(tokens) == 0 {
		return "", apperrors.ErrEmptySegment
	}
	if err := CheckOrder(tokens); err != nil {
		w.metrics.BulkFilesTotal.WithLabelValues("rejected").Inc()
		return "", err
	}
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating bulk directory: %w", err)
	}

	finalPath := filepath.Join(w.dataDir, fmt.Sprintf("%d%s", w.now().UnixNano(), Extension))
	tmpPath := finalPath + ".tmp"
	if err := w.writeTable(tmpPath, tokens); err != nil {
		w.fs.Remove(tmpPath)
		w.metrics.BulkFilesTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %w", apperrors.ErrStorageIO, err)
	}
	if err := w.fs.Rename(tmpPath, finalPath); err != nil {
		w.fs.Remove(tmpPath)
		w.metrics.BulkFilesTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: renaming bulk file: %w", apperrors.ErrStorageIO, err)
	}

	w.metrics.BulkFilesTotal.WithLabelValues("ok").Inc()
	w.metrics.BulkRecordsTotal.Add(float64(len(tokens)))
	w.logger.Info("bulk file written", "path", finalPath, "records", len(tokens))
	return finalPath, nil
}

func (w *Writer) writeTable(path string, tokens []keys.InsertionToken) error {
	f, err := w.fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating temp bulk file: %w", err)
	}
	opts := store.NewOptions(w.logger)
	tw := sstable.NewWriter(
		objstorageprovider.NewFileWritable(f),
		opts.MakeWriterOptions(0, opts.FormatMajorVersion.MaxTableFormat()),
	)
	for _, it := range tokens {
		if err := tw.Merge(it.Key, it.Value); err != nil {
			tw.Close()
			return fmt.Errorf("writing record %q: %w", it.Key, err)
		}
	}
	// Close finishes the table, syncs and closes f.
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finishing bulk file: %w", err)
	}
	return nil
}

// List returns finished artifacts in dataDir, oldest first.
func List(dataDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dataDir, "*"+Extension))
	if err != nil {
		return nil, err
	}
	return matches, nil
}
