package crawler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/config"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func collect(t *testing.T, w *Walker, root string) []Item {
	t.Helper()
	out := make(chan Item, 64)
	require.NoError(t, w.Walk(context.Background(), root, out))
	close(out)
	var items []Item
	for it := range out {
		items = append(items, it)
	}
	return items
}

func relPaths(t *testing.T, root string, items []Item) []string {
	var paths []string
	for _, it := range items {
		rel, err := filepath.Rel(root, it.Meta().Path)
		require.NoError(t, err)
		paths = append(paths, rel)
	}
	return paths
}

func TestWalkSkipsHiddenAndExcluded(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"docs/a.txt":       "alpha",
		"docs/.secret":     "x",
		".config/app.yaml": "k: v",
		"data/index/LOCK":  "",
		"empty.txt":        "",
	})

	w := NewWalker(config.CrawlerConfig{}, filepath.Join(root, "data"))
	items := collect(t, w, root)

	assert.Equal(t, []string{".", "docs", "docs/a.txt", "empty.txt"}, relPaths(t, root, items))

	file, ok := items[2].(File)
	require.True(t, ok)
	assert.Equal(t, "a.txt", file.Name)
	assert.Equal(t, int64(5), file.Size)
	_, ok = items[1].(Folder)
	assert.True(t, ok)
}

func TestWalkIncludeHidden(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{".profile": "x", "b.txt": "y"})

	items := collect(t, NewWalker(config.CrawlerConfig{IncludeHidden: true}), root)
	assert.Equal(t, []string{".", ".profile", "b.txt"}, relPaths(t, root, items))
}

func TestWalkSkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"real.txt": "x"})
	if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	items := collect(t, NewWalker(config.CrawlerConfig{}), root)
	assert.Equal(t, []string{".", "real.txt"}, relPaths(t, root, items))
}

func TestWalkMissingRoot(t *testing.T) {
	out := make(chan Item, 1)
	err := NewWalker(config.CrawlerConfig{}).Walk(context.Background(), filepath.Join(t.TempDir(), "nope"), out)
	assert.Error(t, err)
}

func TestWalkStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "", "b.txt": ""})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewWalker(config.CrawlerConfig{}).Walk(ctx, root, make(chan Item))
	assert.ErrorIs(t, err, context.Canceled)
}
