package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend names accepted in GENERATOR_BACKEND.
const (
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
	BackendAzure     = "azure"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Generator backend: exactly one is selected at startup.
	GeneratorBackend string        `env:"GENERATOR_BACKEND" envDefault:"openai"`
	GeneratorTimeout time.Duration `env:"GENERATOR_TIMEOUT" envDefault:"90s"`

	OpenAIKey   string `env:"OPENAI_API_KEY"`
	OpenAIModel string `env:"OPENAI_MODEL" envDefault:"gpt-4.1-2025-04-14"`

	AnthropicKey   string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel string `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-20250514"`

	AzureEndpoint   string `env:"AZURE_OPENAI_ENDPOINT_URL"`
	AzureKey        string `env:"AZURE_OPENAI_API_KEY"`
	AzureDeployment string `env:"AZURE_OPENAI_DEPLOYMENT_NAME"`

	// Interview
	ScriptPath   string `env:"SCRIPT_PATH"`
	HistoryLimit int    `env:"HISTORY_LIMIT" envDefault:"100"`

	// Access control: empty list means the bot is open to everyone.
	AllowedIDs []int64 `env:"ALLOWED_IDS" envSeparator:","`

	// Usage accounting, USD per 1M tokens. Zero disables cost calculation.
	PromptPricePerM     float64 `env:"PROMPT_PRICE_PER_1M" envDefault:"0"`
	CompletionPricePerM float64 `env:"COMPLETION_PRICE_PER_1M" envDefault:"0"`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`

	// Telegram ops logging
	LogTelegramChatID int64 `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int   `env:"LOG_TOPIC_ERROR"`
	LogTopicNewUser   int   `env:"LOG_TOPIC_NEW_USER"`
	LogTopicCompleted int   `env:"LOG_TOPIC_COMPLETED"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.GeneratorBackend {
	case BackendOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("GENERATOR_BACKEND=openai requires OPENAI_API_KEY")
		}
	case BackendAnthropic:
		if c.AnthropicKey == "" {
			return fmt.Errorf("GENERATOR_BACKEND=anthropic requires ANTHROPIC_API_KEY")
		}
	case BackendAzure:
		if c.AzureKey == "" || c.AzureEndpoint == "" || c.AzureDeployment == "" {
			return fmt.Errorf("GENERATOR_BACKEND=azure requires AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT_URL and AZURE_OPENAI_DEPLOYMENT_NAME")
		}
	default:
		return fmt.Errorf("unknown GENERATOR_BACKEND %q", c.GeneratorBackend)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	}
	return nil
}

// IsAllowed reports whether the Telegram ID may talk to the bot.
// An empty allow-list leaves the bot open.
func (c *Config) IsAllowed(telegramID int64) bool {
	if len(c.AllowedIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}
