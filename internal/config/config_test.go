package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ".", cfg.Root)
	assert.Equal(t, DefaultStorePath, cfg.StorePath)
	assert.Equal(t, MetricCosine, cfg.Metric)
	assert.Equal(t, DefaultEmbedDimension, cfg.Embedding.Dimension)
	assert.Equal(t, DefaultQueryLimit, cfg.Query.Limit)
	assert.Equal(t, DefaultQueryTopN, cfg.Query.TopN)
	assert.NotEmpty(t, cfg.Loader.IgnoreDirs)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grepvec.yaml")
	content := `
root: /src/project
metric: euclidean
embedding:
  model: custom-embed
  dimension: 768
query:
  limit: 10
  top_n: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/src/project", cfg.Root)
	assert.Equal(t, MetricEuclidean, cfg.Metric)
	assert.Equal(t, "custom-embed", cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, 10, cfg.Query.Limit)
	assert.Equal(t, 3, cfg.Query.TopN)

	// Unset fields still get defaults.
	assert.Equal(t, DefaultStorePath, cfg.StorePath)
	assert.Equal(t, DefaultMaxChunkTokens, cfg.Chunking.MaxTokens)
	assert.Equal(t, DefaultRerankModel, cfg.Reranker.Model)
	// The reranker endpoint follows the embedding endpoint unless set.
	assert.Equal(t, cfg.Embedding.BaseURL, cfg.Reranker.BaseURL)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grepvec.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rooot: /typo\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"unknown metric", func(c *Config) { c.Metric = "manhattan" }, true},
		{"negative dimension", func(c *Config) { c.Embedding.Dimension = -1 }, true},
		{"overlap at max", func(c *Config) { c.Chunking.OverlapTokens = c.Chunking.MaxTokens }, true},
		{"top_n exceeds limit", func(c *Config) { c.Query.TopN = c.Query.Limit + 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInference_Timeout(t *testing.T) {
	inf := Inference{TimeoutSec: 30}
	assert.Equal(t, 30*time.Second, inf.Timeout())
}
