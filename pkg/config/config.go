// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Storage, Crawler, Pipeline, Catalog, Kafka, Server, etc.).
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Bulk      BulkConfig      `yaml:"bulk"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Extract   ExtractConfig   `yaml:"extract"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// StorageConfig controls where the online index lives and how hard each
// commit pushes data to disk.
type StorageConfig struct {
	DataDir       string `yaml:"dataDir"`
	SyncWrites    bool   `yaml:"syncWrites"`
	FlushOnCommit bool   `yaml:"flushOnCommit"`
	QueueDepth    int    `yaml:"queueDepth"`
}

// IndexDir is the Pebble directory inside DataDir.
func (s StorageConfig) IndexDir() string {
	return filepath.Join(s.DataDir, "index")
}

// LockPath is the cross-process lock guarding IndexDir.
func (s StorageConfig) LockPath() string {
	return filepath.Join(s.DataDir, "index.lock")
}

// BulkConfig controls the sorted-file builder.
type BulkConfig struct {
	OutputDir string `yaml:"outputDir"`
}

// CrawlerConfig controls filesystem traversal.
type CrawlerConfig struct {
	Roots           []string `yaml:"roots"`
	IncludeHidden   bool     `yaml:"includeHidden"`
	Workers         int      `yaml:"workers"`
	QueueSize       int      `yaml:"queueSize"`
	MaxExtractBytes int64    `yaml:"maxExtractBytes"`
}

// PipelineConfig controls batching and commit behaviour.
type PipelineConfig struct {
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	CommitRetries int           `yaml:"commitRetries"`
	RetryDelay    time.Duration `yaml:"retryDelay"`
}

// TokenizerConfig selects the stemming step.
type TokenizerConfig struct {
	Stemmer string `yaml:"stemmer"`
}

// ExtractConfig bounds how much text is pulled out of a single file.
type ExtractConfig struct {
	MaxChars int `yaml:"maxChars"`
}

// IndexConfig names the owner and namespace documents are written under.
type IndexConfig struct {
	Owner     string `yaml:"owner"`
	Namespace string `yaml:"namespace"`
}

// SearchConfig lists the namespaces a query may read.
type SearchConfig struct {
	Namespaces   []string      `yaml:"namespaces"`
	QueryTimeout time.Duration `yaml:"queryTimeout"`
}

// CatalogConfig selects the document metadata database.
type CatalogConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	CacheSize       int           `yaml:"cacheSize"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// KafkaConfig holds broker and topic settings for commit notifications.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".local", "share", "hugin")
	name := currentUser()
	return &Config{
		Storage: StorageConfig{
			DataDir:       dataDir,
			SyncWrites:    true,
			FlushOnCommit: true,
			QueueDepth:    16,
		},
		Bulk: BulkConfig{
			OutputDir: filepath.Join(dataDir, "bulk"),
		},
		Crawler: CrawlerConfig{
			Roots:           []string{home},
			Workers:         2,
			QueueSize:       64,
			MaxExtractBytes: 10 << 20,
		},
		Pipeline: PipelineConfig{
			BatchSize:  100,
			RetryDelay: 200 * time.Millisecond,
		},
		Tokenizer: TokenizerConfig{
			Stemmer: "none",
		},
		Extract: ExtractConfig{
			MaxChars: 1 << 20,
		},
		Index: IndexConfig{
			Owner:     name,
			Namespace: name,
		},
		Search: SearchConfig{
			Namespaces:   []string{name},
			QueryTimeout: 2 * time.Second,
		},
		Catalog: CatalogConfig{
			Driver:          "sqlite",
			DSN:             filepath.Join(dataDir, "catalog.db"),
			CacheSize:       4096,
			MaxOpenConns:    4,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "hugin.index.committed",
		},
		Server: ServerConfig{
			Port:            8765,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9765,
		},
	}
}

func currentUser() string {
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "default"
}

// Validate rejects values the indexer cannot run with.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.dataDir must be set")
	}
	if c.Crawler.Workers < 1 {
		return fmt.Errorf("crawler.workers must be at least 1, got %d", c.Crawler.Workers)
	}
	if c.Crawler.MaxExtractBytes < 0 {
		return fmt.Errorf("crawler.maxExtractBytes must not be negative")
	}
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline.batchSize must be at least 1, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.CommitRetries < 0 {
		return fmt.Errorf("pipeline.commitRetries must not be negative")
	}
	if c.Index.Namespace == "" {
		return fmt.Errorf("index.namespace must be set")
	}
	if strings.Contains(c.Index.Namespace, "|") {
		return fmt.Errorf("index.namespace %q must not contain '|'", c.Index.Namespace)
	}
	switch c.Tokenizer.Stemmer {
	case "", "none", "identity", "suffix":
	default:
		return fmt.Errorf("tokenizer.stemmer %q is not one of none, identity, suffix", c.Tokenizer.Stemmer)
	}
	switch c.Catalog.Driver {
	case "", "none", "sqlite", "postgres":
	default:
		return fmt.Errorf("catalog.driver %q is not one of none, sqlite, postgres", c.Catalog.Driver)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must be set when kafka is enabled")
	}
	return nil
}

// applyEnvOverrides reads HUGIN_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HUGIN_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
		cfg.Bulk.OutputDir = filepath.Join(v, "bulk")
		if cfg.Catalog.Driver == "sqlite" {
			cfg.Catalog.DSN = filepath.Join(v, "catalog.db")
		}
	}
	if v := os.Getenv("HUGIN_SYNC_WRITES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Storage.SyncWrites = b
		}
	}
	if v := os.Getenv("HUGIN_FLUSH_ON_COMMIT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Storage.FlushOnCommit = b
		}
	}
	if v := os.Getenv("HUGIN_CRAWLER_ROOTS"); v != "" {
		cfg.Crawler.Roots = strings.Split(v, string(os.PathListSeparator))
	}
	if v := os.Getenv("HUGIN_CRAWLER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawler.Workers = n
		}
	}
	if v := os.Getenv("HUGIN_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.BatchSize = n
		}
	}
	if v := os.Getenv("HUGIN_NAMESPACE"); v != "" {
		cfg.Index.Namespace = v
		cfg.Search.Namespaces = []string{v}
	}
	if v := os.Getenv("HUGIN_CATALOG_DRIVER"); v != "" {
		cfg.Catalog.Driver = v
	}
	if v := os.Getenv("HUGIN_CATALOG_DSN"); v != "" {
		cfg.Catalog.DSN = v
	}
	if v := os.Getenv("HUGIN_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("HUGIN_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HUGIN_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HUGIN_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
