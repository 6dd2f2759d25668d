package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PORT", "")
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  api_key: "test-key"
  model: "gpt-4o-mini"
  embedding_model: "text-embedding-3-small"
  max_tokens: 500
  temperature: 0.5

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_chunks"
  vector_dim: 1536
  batch_size: 50

blob:
  endpoint: "localhost:9000"
  bucket: "test-docs"

processor:
  chunk_size: 800
  chunk_overlap: 150

query:
  top_k: 3
  score_threshold: 0.6
`
	require.NoError(t, os.WriteFile(configPath, []byte(configData), 0o644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.LLM.EmbeddingModel)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.Equal(t, "test_chunks", cfg.Database.TableName)
	assert.Equal(t, 50, cfg.Database.BatchSize)
	assert.Equal(t, "test-docs", cfg.Blob.Bucket)
	assert.Equal(t, 800, cfg.Processor.ChunkSize)
	assert.Equal(t, 150, cfg.Processor.ChunkOverlap)
	assert.Equal(t, 3, cfg.Query.TopK)
	assert.InDelta(t, 0.6, cfg.Query.ScoreThreshold, 1e-9)

	// Unset fields fall back to defaults.
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "X-User-ID", cfg.Server.AuthHeader)
}

func TestLoadConfig_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  api_key: k\n"), 0o644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "text-embedding-ada-002", cfg.LLM.EmbeddingModel)
	assert.Equal(t, 1536, cfg.Database.VectorDim)
	assert.Equal(t, 100, cfg.Database.BatchSize)
	assert.Equal(t, 1000, cfg.Processor.ChunkSize)
	assert.Equal(t, 200, cfg.Processor.ChunkOverlap)
	assert.Equal(t, 5, cfg.Query.TopK)
	assert.InDelta(t, 0.7, cfg.Query.ScoreThreshold, 1e-9)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(":\n  - not yaml"), 0o644))

	_, err := LoadConfig(configPath)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := getDefaultConfig()
	require.NoError(t, err)
	cfg.LLM.APIKey = "k"

	assert.Empty(t, cfg.Validate())

	cfg.LLM.APIKey = ""
	cfg.Database.VectorDim = 0
	cfg.Processor.ChunkOverlap = cfg.Processor.ChunkSize
	cfg.Query.ScoreThreshold = 1.5

	errs := cfg.Validate()
	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
	}
	assert.True(t, fields["llm.api_key"])
	assert.True(t, fields["database.vector_dim"])
	assert.True(t, fields["processor.chunk_overlap"])
	assert.True(t, fields["query.score_threshold"])
}
