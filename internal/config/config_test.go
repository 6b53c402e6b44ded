package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("DATABASE_URL", "postgres://localhost/fieldtalk")
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendOpenAI, cfg.GeneratorBackend)
	assert.Equal(t, 90*time.Second, cfg.GeneratorTimeout)
	assert.Equal(t, 100, cfg.HistoryLimit)
	assert.False(t, cfg.DropPendingUpdates)
	assert.Empty(t, cfg.AllowedIDs)
}

func TestLoadBackendValidation(t *testing.T) {
	t.Run("openai without key", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("OPENAI_API_KEY", "")

		_, err := Load()
		assert.ErrorContains(t, err, "OPENAI_API_KEY")
	})

	t.Run("anthropic", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("GENERATOR_BACKEND", "anthropic")
		t.Setenv("ANTHROPIC_API_KEY", "ak-test")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, BackendAnthropic, cfg.GeneratorBackend)
	})

	t.Run("azure requires all three", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("GENERATOR_BACKEND", "azure")
		t.Setenv("AZURE_OPENAI_API_KEY", "key")
		t.Setenv("AZURE_OPENAI_ENDPOINT_URL", "https://example.openai.azure.com")

		_, err := Load()
		assert.ErrorContains(t, err, "AZURE_OPENAI_DEPLOYMENT_NAME")
	})

	t.Run("unknown backend", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("GENERATOR_BACKEND", "bard")

		_, err := Load()
		assert.ErrorContains(t, err, "unknown GENERATOR_BACKEND")
	})
}

func TestIsAllowed(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.IsAllowed(1), "empty allow-list leaves the bot open")

	cfg.AllowedIDs = []int64{10, 20}
	assert.True(t, cfg.IsAllowed(10))
	assert.True(t, cfg.IsAllowed(20))
	assert.False(t, cfg.IsAllowed(30))
}

func TestAllowedIDsParsing(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ALLOWED_IDS", "111,222,333")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{111, 222, 333}, cfg.AllowedIDs)
}
