package segment

import (
	"context"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/keys"
)

// Collector is a pipeline sink that gathers every batch of a run so the
// whole run can be written as a single artifact.
type Collector struct {
	writer *Writer
	mu     sync.Mutex
	docs   []index.DocumentWithTokens
}

// NewCollector returns a Collector that builds through w on Finish.
func NewCollector(w *Writer) *Collector {
	return &Collector{writer: w}
}

// InsertBatch validates docs and holds them until Finish.
func (c *Collector) InsertBatch(ctx context.Context, docs []index.DocumentWithTokens) error {
	if err := keys.ValidateBatch(docs); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, docs...)
	return nil
}

// Len is the number of documents gathered so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

// Finish builds the artifact and resets the collector.
func (c *Collector) Finish() (string, error) {
	c.mu.Lock()
	docs := c.docs
	c.docs = nil
	c.mu.Unlock()
	return c.writer.Build(docs)
}
