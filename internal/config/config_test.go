package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, BackendLibSQL, cfg.Backend)
	assert.Equal(t, "file:./medkg.db", cfg.Database.URL)
	assert.Equal(t, 384, cfg.Database.EmbeddingDims)
	assert.Equal(t, "hash", cfg.Embeddings.Provider)
	assert.Equal(t, 3, cfg.QA.TopK)
	assert.Equal(t, "您好，我是华佗，希望可以帮到您。", cfg.QA.FallbackMessage)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, "neo4j", cfg.Neo4j.User)
	require.NoError(t, cfg.Validate())
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("LLM_MODEL=qwen-plus\nQA_TOP_K=5\nMEDKG_TEST_ONLY=1\n"), 0o600))
	t.Setenv("QA_TOP_K", "4")
	t.Cleanup(func() { os.Unsetenv("LLM_MODEL"); os.Unsetenv("MEDKG_TEST_ONLY") })

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "qwen-plus", cfg.LLM.Model)
	assert.Equal(t, 4, cfg.QA.TopK)
}

func TestLLMKeyFallsBackToOpenAIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-shared")
	cfg, err := Load(filepath.Join(t.TempDir(), "none"))
	require.NoError(t, err)
	assert.Equal(t, "sk-shared", cfg.LLM.APIKey)
	assert.True(t, cfg.LLMConfigured())
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("QA_TOP_K", "three")
	_, err := Load(filepath.Join(t.TempDir(), "none"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "none"))
		require.NoError(t, err)
		return cfg
	}

	cases := map[string]struct {
		mutate func(*Config)
		field  string
	}{
		"unknown backend": {func(c *Config) { c.Backend = "mysql" }, "GRAPH_BACKEND"},
		"neo4j without uri": {func(c *Config) { c.Backend = BackendNeo4j }, "NEO4J_URI"},
		"zero dims":         {func(c *Config) { c.Database.EmbeddingDims = 0 }, "EMBEDDING_DIMS"},
		"zero top k":        {func(c *Config) { c.QA.TopK = 0 }, "QA_TOP_K"},
		"bad transport":     {func(c *Config) { c.Server.Transport = "ws" }, "MCP_TRANSPORT"},
		"empty llm url":     {func(c *Config) { c.LLM.BaseURL = "" }, "LLM_BASE_URL"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			var ce *Error
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tc.field, ce.Field)
		})
	}

	cfg := base(t)
	cfg.Backend = BackendNeo4j
	cfg.Neo4j.URI = "neo4j://localhost:7687"
	assert.NoError(t, cfg.Validate())
}
