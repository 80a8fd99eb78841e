// Package config loads the immutable configuration that is threaded into
// every component at construction. Nothing in the pipeline reads ambient
// process state; the CLI resolves a Config once and passes it down.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Distance metrics supported by the vector store. Fixed at store creation
// and must match the metric the embedding model was tuned for.
const (
	MetricCosine    = "cosine"
	MetricEuclidean = "euclidean"
)

// Defaults applied by Load when the file omits a value.
const (
	DefaultStorePath         = "grepvec.db"
	DefaultMetric            = MetricCosine
	DefaultMaxChunkTokens    = 512
	DefaultMinChunkTokens    = 16
	DefaultChunkOverlap      = 64
	DefaultEmbedBaseURL      = "http://localhost:11434"
	DefaultEmbedModel        = "dengcao/Qwen3-Embedding-4B:Q4_K_M"
	DefaultEmbedDimension    = 2560
	DefaultEmbedBatchSize    = 16
	DefaultEmbedConcurrency  = 2
	DefaultRerankModel       = "hf.co/mradermacher/Qwen3-Reranker-4B-GGUF:Q4_K_M"
	DefaultRerankConcurrency = 2
	DefaultTimeoutSec        = 120
	DefaultQueryLimit        = 25
	DefaultQueryTopN         = 5
	DefaultWatchDebounceMs   = 500
)

// Config is the full, validated configuration for a run.
type Config struct {
	Root      string    `yaml:"root"`
	StorePath string    `yaml:"store"`
	Metric    string    `yaml:"metric"`
	Chunking  Chunking  `yaml:"chunking"`
	Embedding Inference `yaml:"embedding"`
	Reranker  Inference `yaml:"reranker"`
	Query     Query     `yaml:"query"`
	Loader    Loader    `yaml:"loader"`

	// WatchDebounceMs merges bursts of filesystem events in watch mode.
	WatchDebounceMs int `yaml:"watch_debounce_ms"`
}

// Chunking bounds the chunking engine.
type Chunking struct {
	MaxTokens     int `yaml:"max_tokens"`
	MinTokens     int `yaml:"min_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

// Inference configures one inference client (embedding or reranking).
// Concurrency caps the number of in-flight requests: both models share the
// local service's accelerator memory budget, so the cap belongs here, not
// in the service.
type Inference struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"` // embedding only
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
	TimeoutSec  int    `yaml:"timeout_sec"`
}

// Timeout returns the per-request timeout as a duration.
func (i Inference) Timeout() time.Duration {
	return time.Duration(i.TimeoutSec) * time.Second
}

// Query holds the two retrieval tunables.
type Query struct {
	Limit int `yaml:"limit"`  // stage-1 candidate count
	TopN  int `yaml:"top_n"` // final result count
}

// Loader configures document discovery.
type Loader struct {
	IgnoreDirs  []string `yaml:"ignore_dirs"`
	IgnoreFiles []string `yaml:"ignore_files"`
}

// Load reads a YAML config file and fills defaults. A missing file is not
// an error: Default() is returned so the tool works out of the box.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{Root: "."}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Root == "" {
		c.Root = "."
	}
	if c.StorePath == "" {
		c.StorePath = DefaultStorePath
	}
	if c.Metric == "" {
		c.Metric = DefaultMetric
	}
	if c.Chunking.MaxTokens == 0 {
		c.Chunking.MaxTokens = DefaultMaxChunkTokens
	}
	if c.Chunking.MinTokens == 0 {
		c.Chunking.MinTokens = DefaultMinChunkTokens
	}
	if c.Chunking.OverlapTokens == 0 {
		c.Chunking.OverlapTokens = DefaultChunkOverlap
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = DefaultEmbedBaseURL
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = DefaultEmbedModel
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = DefaultEmbedDimension
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = DefaultEmbedBatchSize
	}
	if c.Embedding.Concurrency == 0 {
		c.Embedding.Concurrency = DefaultEmbedConcurrency
	}
	if c.Embedding.TimeoutSec == 0 {
		c.Embedding.TimeoutSec = DefaultTimeoutSec
	}
	if c.Reranker.BaseURL == "" {
		c.Reranker.BaseURL = c.Embedding.BaseURL
	}
	if c.Reranker.Model == "" {
		c.Reranker.Model = DefaultRerankModel
	}
	if c.Reranker.Concurrency == 0 {
		c.Reranker.Concurrency = DefaultRerankConcurrency
	}
	if c.Reranker.TimeoutSec == 0 {
		c.Reranker.TimeoutSec = DefaultTimeoutSec
	}
	if c.Query.Limit == 0 {
		c.Query.Limit = DefaultQueryLimit
	}
	if c.Query.TopN == 0 {
		c.Query.TopN = DefaultQueryTopN
	}
	if c.WatchDebounceMs == 0 {
		c.WatchDebounceMs = DefaultWatchDebounceMs
	}
	if c.Loader.IgnoreDirs == nil {
		c.Loader.IgnoreDirs = DefaultIgnoreDirs()
	}
	if c.Loader.IgnoreFiles == nil {
		c.Loader.IgnoreFiles = DefaultIgnoreFiles()
	}
}

// Validate checks configuration-level invariants. Failures abort at
// startup: no partial run is meaningful with a bad config.
func (c *Config) Validate() error {
	switch c.Metric {
	case MetricCosine, MetricEuclidean:
	default:
		return fmt.Errorf("unknown distance metric %q (want %s or %s)",
			c.Metric, MetricCosine, MetricEuclidean)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Chunking.MaxTokens <= 0 {
		return fmt.Errorf("max chunk tokens must be positive, got %d", c.Chunking.MaxTokens)
	}
	if c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return fmt.Errorf("chunk overlap (%d tokens) must be smaller than max chunk size (%d tokens)",
			c.Chunking.OverlapTokens, c.Chunking.MaxTokens)
	}
	if c.Query.TopN > c.Query.Limit {
		return fmt.Errorf("top_n (%d) cannot exceed limit (%d)", c.Query.TopN, c.Query.Limit)
	}
	return nil
}

// DefaultIgnoreDirs lists directories skipped during document discovery.
func DefaultIgnoreDirs() []string {
	return []string{
		".git", "target", "vendor", "node_modules", "venv",
		"__pycache__", ".sqlx", ".idea", ".vscode",
	}
}

// DefaultIgnoreFiles lists file names skipped during document discovery:
// lockfiles and generated artifacts that add noise but little semantic
// value for retrieval.
func DefaultIgnoreFiles() []string {
	return []string{
		".gitignore", "go.sum", "Cargo.lock", "yarn.lock",
		"package-lock.json", ".env", "Dockerfile",
	}
}
