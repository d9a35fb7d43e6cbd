// Package crawler walks filesystem roots and emits the files and folders to
// be indexed.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/config"
)

// Item is a discovered File or Folder.
type Item interface {
	isItem()
	Meta() Entry
}

// Entry is what every item has.
type Entry struct {
	Name string
	Path string
}

// File is a regular file found by the walk.
type File struct {
	Entry
	Size    int64
	ModTime time.Time
}

// Folder is a directory found by the walk, including the root.
type Folder struct {
	Entry
}

func (File) isItem()   {}
func (Folder) isItem() {}

func (f File) Meta() Entry   { return f.Entry }
func (f Folder) Meta() Entry { return f.Entry }

// Walker traverses directory trees in lexical order.
type Walker struct {
	includeHidden bool
	skip          map[string]struct{}
	logger        *slog.Logger
}

// NewWalker returns a Walker that prunes every directory in skip, typically
// the index's own data directory.
func NewWalker(cfg config.CrawlerConfig, skip ...string) *Walker {
	w := &Walker{
		includeHidden: cfg.IncludeHidden,
		skip:          make(map[string]struct{}, len(skip)),
		logger:        slog.Default().With("component", "crawler"),
	}
	for _, p := range skip {
		if abs, err := filepath.Abs(p); err == nil {
			w.skip[abs] = struct{}{}
		}
	}
	return w
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// Walk sends every item under root, root included, to out. Unreadable
// entries are logged and skipped; only a missing root or a cancelled ctx
// stops the walk early.
func (w *Walker) Walk(ctx context.Context, root string, out chan<- Item) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root %s: %w", root, err)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("walking %s: %w", root, err)
			}
			w.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if path != root {
			if _, ok := w.skip[path]; ok {
				w.logger.Debug("pruning excluded directory", "path", path)
				return skipEntry(d)
			}
			if !w.includeHidden && isHidden(d.Name()) {
				return skipEntry(d)
			}
		}

		item, ok := w.classify(path, d)
		if !ok {
			return nil
		}
		select {
		case out <- item:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func skipEntry(d fs.DirEntry) error {
	if d.IsDir() {
		return filepath.SkipDir
	}
	return nil
}

func (w *Walker) classify(path string, d fs.DirEntry) (Item, bool) {
	entry := Entry{Name: d.Name(), Path: path}
	if d.IsDir() {
		return Folder{Entry: entry}, true
	}
	if !d.Type().IsRegular() {
		w.logger.Debug("unsupported entry type", "path", path, "mode", d.Type().String())
		return nil, false
	}
	info, err := d.Info()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("cannot read attributes", "path", path, "error", err)
		}
		return nil, false
	}
	return File{Entry: entry, Size: info.Size(), ModTime: info.ModTime()}, true
}
