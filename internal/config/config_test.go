package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PANGEIA_API_KEY", "OPENAI_API_KEY", "PANGEIA_BASE_URL", "PANGEIA_MODEL",
		"PANGEIA_TELEGRAM_TOKEN", "PANGEIA_NOTION_TOKEN", "PANGEIA_NOTION_DATABASE_ID",
		"PANGEIA_DB_PATH", "PANGEIA_MAX_MESSAGES", "PANGEIA_CONVERSATION_TIMEOUT_MIN",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "Pangeia", cfg.Agent.Name)
	assert.Equal(t, DefaultModel, cfg.Agent.Model)
	assert.Equal(t, DefaultTimezone, cfg.Agent.Timezone)
	assert.Equal(t, DefaultMaxMessages, cfg.Conversation.MaxMessages)
	assert.Equal(t, DefaultDigestHour, cfg.Digest.Hour)
	assert.False(t, cfg.Digest.Enabled)
	assert.False(t, cfg.Channels.Telegram.Enabled)
	assert.False(t, cfg.Notion.Enabled)
}

func TestLoadConfig_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, cfg.Agent.Model)
	assert.Empty(t, cfg.Provider.APIKey)
}

func TestLoadConfig_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearEnv(t)

	cfgDir := filepath.Join(tmpDir, ".pangeia")
	require.NoError(t, os.MkdirAll(cfgDir, 0755))
	data := `{
		"agent": {"model": "gpt-4o", "timezone": "America/Recife"},
		"provider": {"apiKey": "sk-from-file"},
		"channels": {"telegram": {"enabled": true, "token": "tg-token"}},
		"conversation": {"maxMessages": 30, "timeoutMinutes": 45}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(data), 0644))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Agent.Model)
	assert.Equal(t, "America/Recife", cfg.Agent.Timezone)
	assert.Equal(t, "sk-from-file", cfg.Provider.APIKey)
	assert.True(t, cfg.Channels.Telegram.Enabled)
	assert.Equal(t, 30, cfg.Conversation.MaxMessages)
	assert.Equal(t, 45*time.Minute, cfg.Conversation.Timeout())
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearEnv(t)

	cfgDir := filepath.Join(tmpDir, ".pangeia")
	require.NoError(t, os.MkdirAll(cfgDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte("{nope"), 0644))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	t.Setenv("PANGEIA_API_KEY", "sk-env")
	t.Setenv("PANGEIA_MODEL", "gpt-4o-mini-env")
	t.Setenv("PANGEIA_TELEGRAM_TOKEN", "tg-env")
	t.Setenv("PANGEIA_NOTION_TOKEN", "secret-notion")
	t.Setenv("PANGEIA_DB_PATH", "/tmp/pangeia-test.db")
	t.Setenv("PANGEIA_MAX_MESSAGES", "50")
	t.Setenv("PANGEIA_CONVERSATION_TIMEOUT_MIN", "10")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Provider.APIKey)
	assert.Equal(t, "gpt-4o-mini-env", cfg.Agent.Model)
	assert.Equal(t, "tg-env", cfg.Channels.Telegram.Token)
	assert.Equal(t, "secret-notion", cfg.Notion.Token)
	assert.Equal(t, "/tmp/pangeia-test.db", cfg.Store.DBPath)
	assert.Equal(t, 50, cfg.Conversation.MaxMessages)
	assert.Equal(t, 10*time.Minute, cfg.Conversation.Timeout())
}

func TestLoadConfig_OpenAIKeyFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", cfg.Provider.APIKey)

	// The PANGEIA-prefixed key wins when both are set.
	t.Setenv("PANGEIA_API_KEY", "sk-pangeia")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk-pangeia", cfg.Provider.APIKey)
}

func TestLoadConfig_BadNumbersIgnored(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	t.Setenv("PANGEIA_MAX_MESSAGES", "not-a-number")
	t.Setenv("PANGEIA_CONVERSATION_TIMEOUT_MIN", "-5")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxMessages, cfg.Conversation.MaxMessages)
	assert.Equal(t, DefaultConversationTimeout, cfg.Conversation.Timeout())
}

func TestLoadConfig_SanitizesBadDigestHour(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearEnv(t)

	cfgDir := filepath.Join(tmpDir, ".pangeia")
	require.NoError(t, os.MkdirAll(cfgDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(`{"digest":{"enabled":true,"hour":99}}`), 0644))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Digest.Enabled)
	assert.Equal(t, DefaultDigestHour, cfg.Digest.Hour)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	cfg := DefaultConfig()
	cfg.Agent.Model = "gpt-4o"
	cfg.Channels.WhatsApp.Enabled = true
	cfg.Digest.Enabled = true
	cfg.Digest.Hour = 7

	require.NoError(t, SaveConfig(cfg))

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", loaded.Agent.Model)
	assert.True(t, loaded.Channels.WhatsApp.Enabled)
	assert.True(t, loaded.Digest.Enabled)
	assert.Equal(t, 7, loaded.Digest.Hour)
}

func TestConversationTimeout_Default(t *testing.T) {
	var c ConversationConfig
	assert.Equal(t, DefaultConversationTimeout, c.Timeout())
}
