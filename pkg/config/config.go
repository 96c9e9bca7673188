package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const envConfigPath = "WADIGEST_CONFIG"

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	GreenAPI   GreenAPIConfig   `json:"green_api"`
	Normalizer NormalizerConfig `json:"normalizer"`
	Summary    SummaryConfig    `json:"summary"`
	Providers  ProvidersConfig  `json:"providers"`
	Channels   ChannelsConfig   `json:"channels"`
	Storage    StorageConfig    `json:"storage"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Gateway    GatewayConfig    `json:"gateway"`
	Logging    LoggingConfig    `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty" env:"BOT_LOG_LEVEL"`
	AddSource bool   `json:"add_source,omitempty"`
	File      string `json:"file,omitempty" env:"WADIGEST_LOG_FILE"`
}

// GreenAPIConfig holds the WhatsApp Green API instance credentials.
type GreenAPIConfig struct {
	BaseURL               string `json:"base_url" env:"GREEN_API_BASE_URL"`
	InstanceID            string `json:"instance_id" env:"GREEN_API_ID_INSTANCE"`
	Token                 string `json:"token" env:"GREEN_API_TOKEN"`
	MaxRetries            int    `json:"max_retries" env:"BOT_MAX_RETRIES"`
	RetryDelaySeconds     int    `json:"retry_delay_seconds" env:"BOT_RETRY_DELAY"`
	APIDelayMillis        int    `json:"api_delay_ms" env:"GREEN_API_DELAY_MS"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
	SendingDisabled       bool   `json:"sending_disabled" env:"BOT_MESSAGE_SENDING_DISABLED"`
}

// NormalizerConfig is the configuration surface of the message normalizer.
type NormalizerConfig struct {
	TargetLanguage   string   `json:"target_language" env:"BOT_TARGET_LANGUAGE"`
	DebugMode        bool     `json:"debug_mode" env:"BOT_DEBUG_MODE"`
	ReducedFiltering bool     `json:"reduced_filtering" env:"BOT_REDUCED_FILTERING"`
	SupportedKinds   []string `json:"supported_kinds,omitempty" env:"BOT_SUPPORTED_KINDS"`
	CommandPrefixes  []string `json:"command_prefixes,omitempty" env:"BOT_COMMAND_PREFIXES"`
	CommandWords     []string `json:"command_words,omitempty" env:"BOT_COMMAND_WORDS"`
}

// SummaryConfig drives history retrieval and the LLM summary call.
type SummaryConfig struct {
	Provider       string   `json:"provider" env:"SUMMARY_PROVIDER"`
	Model          string   `json:"model" env:"OPENAI_MODEL"`
	MaxTokens      int      `json:"max_tokens" env:"OPENAI_MAX_TOKENS"`
	Temperature    float64  `json:"temperature"`
	HistoryCount   int      `json:"history_count" env:"BOT_HISTORY_COUNT"`
	LookbackHours  int      `json:"lookback_hours" env:"BOT_LOOKBACK_HOURS"`
	MinMessages    int      `json:"min_messages" env:"BOT_MIN_MESSAGES"`
	SendToGroup    bool     `json:"send_to_group" env:"BOT_SEND_TO_GROUP"`
	PromptTemplate string   `json:"prompt_template,omitempty" env:"SUMMARY_PROMPT"`
	Groups         []string `json:"groups" env:"WHATSAPP_GROUP_IDS"`
}

// ProvidersConfig stores per-provider connection settings.
type ProvidersConfig struct {
	OpenCode OpenCodeProviderConfig `json:"opencode"`
	OpenAI   OpenAIProviderConfig   `json:"openai"`
}

// OpenCodeProviderConfig configures the OpenCode provider client.
type OpenCodeProviderConfig struct {
	BaseURL               string `json:"base_url" env:"OPENCODE_BASE_URL"`
	Username              string `json:"username"`
	PasswordEnv           string `json:"password_env"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// OpenAIProviderConfig configures the OpenAI provider client. It is shared
// by the direct openai backend and the fantasy backend.
type OpenAIProviderConfig struct {
	APIKey                string `json:"-" env:"OPENAI_API_KEY"`
	BaseURL               string `json:"base_url" env:"OPENAI_BASE_URL"`
	Organization          string `json:"organization"`
	Project               string `json:"project"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures the Telegram command channel.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled" env:"TELEGRAM_ENABLED"`
	Token     string   `json:"token" env:"TELEGRAM_BOT_TOKEN"`
	AllowFrom []string `json:"allow_from" env:"TELEGRAM_ALLOW_FROM"`
}

// StorageConfig locates the summary database.
type StorageConfig struct {
	Path string `json:"path" env:"WADIGEST_DB_PATH"`
}

// SchedulerConfig controls periodic summaries run by the gateway.
type SchedulerConfig struct {
	Enabled  bool     `json:"enabled" env:"BOT_SCHEDULER_ENABLED"`
	Cron     string   `json:"cron" env:"BOT_SUMMARY_CRON"`
	ChatIDs  []string `json:"chat_ids,omitempty"`
	Timezone string   `json:"timezone,omitempty" env:"BOT_TIMEZONE"`
}

// GatewayConfig configures the HTTP status server bind settings.
type GatewayConfig struct {
	Host string `json:"host" env:"WADIGEST_GATEWAY_HOST"`
	Port int    `json:"port" env:"WADIGEST_GATEWAY_PORT"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		GreenAPI: GreenAPIConfig{
			BaseURL:               "https://api.green-api.com",
			MaxRetries:            3,
			RetryDelaySeconds:     2,
			APIDelayMillis:        1000,
			RequestTimeoutSeconds: 30,
			SendingDisabled:       true,
		},
		Normalizer: NormalizerConfig{
			TargetLanguage: "english",
		},
		Summary: SummaryConfig{
			Provider:      "openai",
			Model:         "gpt-4o-mini",
			MaxTokens:     2000,
			HistoryCount:  200,
			LookbackHours: 24,
			MinMessages:   5,
		},
		Scheduler: SchedulerConfig{
			Cron: "0 20 * * *",
		},
		Storage: StorageConfig{
			Path: "~/.wadigest/wadigest.db",
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 18790,
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// LoadConfig resolves config.json on top of defaults and applies
// environment overrides. A missing config file is not an error.
func LoadConfig() (*Config, error) {
	cfg := Default()

	configPath, err := findConfigPath()
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides injects env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment overrides: %w", err)
	}

	cfg.Summary.Groups = compact(cfg.Summary.Groups)
	cfg.Channels.Telegram.AllowFrom = compact(cfg.Channels.Telegram.AllowFrom)
	cfg.Scheduler.ChatIDs = compact(cfg.Scheduler.ChatIDs)
	cfg.Normalizer.SupportedKinds = compact(cfg.Normalizer.SupportedKinds)
	cfg.Normalizer.CommandWords = compact(cfg.Normalizer.CommandWords)
	return nil
}

// compact trims values and drops blanks, keeping nil as nil.
func compact(values []string) []string {
	if values == nil {
		return nil
	}
	clean := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is WADIGEST_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fs.ErrNotExist
}

// Validate checks the settings needed to talk to the Green API.
func (c GreenAPIConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.InstanceID, validation.Required, is.Digit),
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.MaxRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.APIDelayMillis, validation.Min(0)),
	)
}

// Validate checks summary settings.
func (c SummaryConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Provider, validation.Required, validation.In("openai", "opencode", "fantasy")),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.MaxTokens, validation.Min(0)),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&c.HistoryCount, validation.Required, validation.Min(1), validation.Max(1000)),
		validation.Field(&c.LookbackHours, validation.Min(0)),
		validation.Field(&c.MinMessages, validation.Min(0)),
	)
}

// Validate checks the gateway bind settings.
func (c GatewayConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ScheduledChats returns the chats a scheduled run should cover.
func (c *Config) ScheduledChats() []string {
	if len(c.Scheduler.ChatIDs) > 0 {
		return c.Scheduler.ChatIDs
	}
	return c.Summary.Groups
}
