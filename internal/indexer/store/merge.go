package store

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/cockroachdb/pebble"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/keys"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/logger"
)

// MergeName is persisted in every table; changing it makes existing data
// unreadable.
const MergeName = "hugin.append.v1"

// AppendMerger joins merge operands oldest-first with keys.ValueDelimiter.
// It never removes or deduplicates docIds.
var AppendMerger = &pebble.Merger{
	Name: MergeName,
	Merge: func(key, value []byte) (pebble.ValueMerger, error) {
		return &appendValueMerger{newer: [][]byte{bytes.Clone(value)}}, nil
	},
}

// appendValueMerger keeps operands newer than the first in arrival order and
// older ones in reverse arrival order.
type appendValueMerger struct {
	older [][]byte
	newer [][]byte
}

func (m *appendValueMerger) MergeNewer(value []byte) error {
	m.newer = append(m.newer, bytes.Clone(value))
	return nil
}

func (m *appendValueMerger) MergeOlder(value []byte) error {
	m.older = append(m.older, bytes.Clone(value))
	return nil
}

func (m *appendValueMerger) Finish(includesBase bool) ([]byte, io.Closer, error) {
	size := len(m.older) + len(m.newer)
	for _, v := range m.older {
		size += len(v)
	}
	for _, v := range m.newer {
		size += len(v)
	}
	out := make([]byte, 0, size)
	for i := len(m.older) - 1; i >= 0; i-- {
		out = appendOperand(out, m.older[i])
	}
	for _, v := range m.newer {
		out = appendOperand(out, v)
	}
	return out, nil, nil
}

func appendOperand(dst, v []byte) []byte {
	if len(v) == 0 {
		return dst
	}
	if len(dst) > 0 {
		dst = append(dst, keys.ValueDelimiter)
	}
	return append(dst, v...)
}

// NewOptions returns the Pebble options shared by the online store and the
// bulk builder. Tables written with one are ingestible by the other.
func NewOptions(log *slog.Logger) *pebble.Options {
	if log == nil {
		log = slog.Default()
	}
	opts := &pebble.Options{
		Merger:             AppendMerger,
		FormatMajorVersion: pebble.FormatNewest,
		Logger:             logger.Printf{Logger: log.With("subsystem", "pebble")},
	}
	return opts.EnsureDefaults()
}
