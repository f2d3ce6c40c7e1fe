package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
vector_db:
  collection: my_collection
rag:
  context_max_tokens: 500
  query_timeout: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "my_collection", cfg.VectorDB.Collection)
	assert.Equal(t, 500, cfg.RAG.ContextMaxTokens)
	assert.Equal(t, 10*time.Second, cfg.RAG.QueryTimeout)

	// Unset knobs fall back to defaults.
	assert.Equal(t, 384, cfg.VectorDB.Dimensions)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 0.3, cfg.RAG.MinSimilarity)
	assert.Equal(t, 20, cfg.RAG.MaxLimit)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5, cfg.RAG.DefaultLimit)
	assert.Equal(t, 2000, cfg.RAG.ContextMaxTokens)
	assert.Equal(t, 30*time.Second, cfg.RAG.QueryTimeout)
	assert.Equal(t, "lesson_materials", cfg.VectorDB.Collection)
}
