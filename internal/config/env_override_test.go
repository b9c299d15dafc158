package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides_GeminiKey(t *testing.T) {
	t.Run("API_KEY is used when nothing else is set", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("API_KEY", "plain-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "plain-key", cfg.AI.GeminiAPIKey)
	})

	t.Run("Precedence: GEMINI over GOOGLE over API_KEY", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("API_KEY", "plain-key")
		t.Setenv("GOOGLE_API_KEY", "google-key")
		t.Setenv("GEMINI_API_KEY", "gemini-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "gemini-key", cfg.AI.GeminiAPIKey)
	})
}

func TestEnvOverrides_DigiBox(t *testing.T) {
	clearEnv(t)
	t.Setenv("DIGIBOX_PROVIDER", "openai")
	t.Setenv("DIGIBOX_OPENAI_BASE_URL", "https://dashscope.example/v1")
	t.Setenv("DIGIBOX_OPENAI_MODEL", "qwen-vl-plus")
	t.Setenv("DIGIBOX_DATA_DIR", "/tmp/dbx")
	t.Setenv("DIGIBOX_DEBUG", "true")

	cfg, err := Load(t.TempDir() + "/none.yaml")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "https://dashscope.example/v1", cfg.AI.OpenAIBaseURL)
	assert.Equal(t, "qwen-vl-plus", cfg.AI.OpenAIModel)
	assert.Equal(t, "/tmp/dbx", cfg.Storage.DataDir)
	assert.True(t, cfg.Logging.DebugMode)
}

func TestEnvOverrides_BadDebugValueIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("DIGIBOX_DEBUG", "sometimes")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.False(t, cfg.Logging.DebugMode)
}
