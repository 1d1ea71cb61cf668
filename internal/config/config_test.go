package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearKeys(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.OpenAI.Model)
	assert.Equal(t, 7, cfg.Analysis.Days)
	assert.Equal(t, 2, cfg.Analysis.Turns)
	assert.InDelta(t, 0.8, cfg.Analysis.PromoteThreshold, 1e-9)
	assert.InDelta(t, 0.9, cfg.Analysis.DemoteThreshold, 1e-9)
	assert.Equal(t, int64(5<<20), cfg.Attachments.MaxBytes)
	assert.Equal(t, 10, cfg.Retriever.K)
	assert.Equal(t, 10, cfg.Tutor.HistoryMessages)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Empty(t, cfg.Retriever.QdrantHost)
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearKeys(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "dsatutor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: anthropic
  model: claude-sonnet
  api_key: sk-file
analysis:
  turns: 20
retriever:
  qdrant_host: localhost
`), 0o644))

	t.Setenv("DSATUTOR_ANALYSIS_DAYS", "14")
	t.Setenv("DSATUTOR_REDIS_ADDRESS", "localhost:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet", cfg.LLM.Anthropic.Model)
	assert.Equal(t, "sk-file", cfg.LLM.Anthropic.APIKey)
	assert.Equal(t, 20, cfg.Analysis.Turns)
	assert.Equal(t, 14, cfg.Analysis.Days)
	assert.Equal(t, "localhost", cfg.Retriever.QdrantHost)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DiscoversProviderFromKeys(t *testing.T) {
	clearKeys(t)
	t.Chdir(t.TempDir())
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "g-key", cfg.LLM.Gemini.APIKey)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearKeys(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearKeys(t)
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Error(t, cfg.Validate(), "openai without a key must fail")

	cfg.LLM.Provider = "mock"
	assert.NoError(t, cfg.Validate())

	cfg.Analysis.PromoteThreshold = 1.5
	assert.Error(t, cfg.Validate())
}
