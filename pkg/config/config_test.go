package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("USER", "ingrid")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Crawler.Workers)
	assert.Equal(t, 100, cfg.Pipeline.BatchSize)
	assert.Equal(t, int64(10<<20), cfg.Crawler.MaxExtractBytes)
	assert.True(t, cfg.Storage.SyncWrites)
	assert.True(t, cfg.Storage.FlushOnCommit)
	assert.Equal(t, "ingrid", cfg.Index.Namespace)
	assert.Equal(t, []string{"ingrid"}, cfg.Search.Namespaces)
	assert.False(t, cfg.Crawler.IncludeHidden)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hugin.yaml")
	yaml := `
storage:
  dataDir: /srv/hugin
  flushOnCommit: false
crawler:
  workers: 4
pipeline:
  batchSize: 10
  flushInterval: 2s
catalog:
  driver: none
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("HUGIN_BATCH_SIZE", "25")
	t.Setenv("HUGIN_NAMESPACE", "team")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/hugin", cfg.Storage.DataDir)
	assert.Equal(t, "/srv/hugin/index", cfg.Storage.IndexDir())
	assert.False(t, cfg.Storage.FlushOnCommit)
	assert.Equal(t, 4, cfg.Crawler.Workers)
	assert.Equal(t, 25, cfg.Pipeline.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.FlushInterval)
	assert.Equal(t, "team", cfg.Index.Namespace)
	assert.Equal(t, "none", cfg.Catalog.Driver)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Crawler.Workers = 0 }},
		{"zero batch", func(c *Config) { c.Pipeline.BatchSize = 0 }},
		{"empty namespace", func(c *Config) { c.Index.Namespace = "" }},
		{"namespace delimiter", func(c *Config) { c.Index.Namespace = "a|b" }},
		{"bad stemmer", func(c *Config) { c.Tokenizer.Stemmer = "porter2" }},
		{"bad driver", func(c *Config) { c.Catalog.Driver = "mysql" }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestValidateAcceptsEveryStemmer(t *testing.T) {
	for _, name := range []string{"", "none", "identity", "suffix"} {
		cfg := Default()
		cfg.Tokenizer.Stemmer = name
		assert.NoError(t, cfg.Validate(), name)
	}
}
