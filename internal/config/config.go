package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultModel               = "gpt-4o-mini"
	DefaultMaxTokens           = 500
	DefaultTemperature         = 0.7
	DefaultHost                = "0.0.0.0"
	DefaultPort                = 18890
	DefaultBufSize             = 100
	DefaultMaxMessages         = 20
	DefaultConversationTimeout = 30 * time.Minute
	DefaultSweepInterval       = 5 * time.Minute
	DefaultDigestHour          = 8
	DefaultTimezone            = "America/Sao_Paulo"
)

type Config struct {
	Agent        AgentConfig        `json:"agent"`
	Provider     ProviderConfig     `json:"provider"`
	Channels     ChannelsConfig     `json:"channels"`
	Conversation ConversationConfig `json:"conversation"`
	Store        StoreConfig        `json:"store"`
	Notion       NotionConfig       `json:"notion"`
	Digest       DigestConfig       `json:"digest"`
	Gateway      GatewayConfig      `json:"gateway"`
}

type AgentConfig struct {
	Name          string  `json:"name"`
	Model         string  `json:"model"`
	MaxTokens     int     `json:"maxTokens"`
	Temperature   float64 `json:"temperature"`
	Timezone      string  `json:"timezone"`
	TemplatesPath string  `json:"templatesPath,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type WhatsAppConfig struct {
	Enabled   bool     `json:"enabled"`
	StorePath string   `json:"storePath,omitempty"`
	JID       string   `json:"jid,omitempty"`
	AllowFrom []string `json:"allowFrom"`
}

type ConversationConfig struct {
	MaxMessages    int `json:"maxMessages"`
	TimeoutMinutes int `json:"timeoutMinutes"`
}

func (c ConversationConfig) Timeout() time.Duration {
	if c.TimeoutMinutes <= 0 {
		return DefaultConversationTimeout
	}
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

type StoreConfig struct {
	DBPath string `json:"dbPath,omitempty"`
}

type NotionConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"`
	DatabaseID string `json:"databaseId,omitempty"`
	BaseURL    string `json:"baseUrl,omitempty"`
}

type DigestConfig struct {
	Enabled bool `json:"enabled"`
	Hour    int  `json:"hour"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:        "Pangeia",
			Model:       DefaultModel,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
			Timezone:    DefaultTimezone,
		},
		Provider: ProviderConfig{},
		Channels: ChannelsConfig{},
		Conversation: ConversationConfig{
			MaxMessages:    DefaultMaxMessages,
			TimeoutMinutes: int(DefaultConversationTimeout / time.Minute),
		},
		Digest: DigestConfig{
			Enabled: false,
			Hour:    DefaultDigestHour,
		},
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".pangeia")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("PANGEIA_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if url := os.Getenv("PANGEIA_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("PANGEIA_MODEL"); model != "" {
		cfg.Agent.Model = model
	}
	if token := os.Getenv("PANGEIA_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if token := os.Getenv("PANGEIA_NOTION_TOKEN"); token != "" {
		cfg.Notion.Token = token
	}
	if dbID := os.Getenv("PANGEIA_NOTION_DATABASE_ID"); dbID != "" {
		cfg.Notion.DatabaseID = dbID
	}
	if dbPath := os.Getenv("PANGEIA_DB_PATH"); dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	if maxMsgs := os.Getenv("PANGEIA_MAX_MESSAGES"); maxMsgs != "" {
		if parsed, err := strconv.Atoi(maxMsgs); err == nil && parsed > 0 {
			cfg.Conversation.MaxMessages = parsed
		}
	}
	if timeout := os.Getenv("PANGEIA_CONVERSATION_TIMEOUT_MIN"); timeout != "" {
		if parsed, err := strconv.Atoi(timeout); err == nil && parsed > 0 {
			cfg.Conversation.TimeoutMinutes = parsed
		}
	}

	if cfg.Agent.Name == "" {
		cfg.Agent.Name = DefaultConfig().Agent.Name
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = DefaultModel
	}
	if cfg.Agent.MaxTokens <= 0 {
		cfg.Agent.MaxTokens = DefaultMaxTokens
	}
	if cfg.Agent.Timezone == "" {
		cfg.Agent.Timezone = DefaultTimezone
	}
	if cfg.Conversation.MaxMessages <= 0 {
		cfg.Conversation.MaxMessages = DefaultMaxMessages
	}
	if cfg.Digest.Hour < 0 || cfg.Digest.Hour > 23 {
		cfg.Digest.Hour = DefaultDigestHour
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
