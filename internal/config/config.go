// Package config loads settings from the environment, with an optional
// .env file for local runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the full application configuration.
type Config struct {
	// Telegram
	TelegramBotToken string
	BotName          string
	TriggerKeywords  []string
	AdminIDs         []int64

	// LLM
	LLMAPIKey         string
	LLMBaseURL        string
	LLMModel          string
	FallbackModel     string
	VisionModel       string
	VisionBaseURL     string
	VisionAPIKey      string
	VisionEnabled     bool
	SummaryModel      string
	MaxRetries        int
	TimeoutSeconds    int
	MaxResponseTokens int

	// Context
	HistoryLimit     int
	MaxUserFacts     int
	SystemPromptFile string

	// Storage
	DatabasePath string

	// Rate limiting
	RateLimitEnabled     bool
	RateLimitPrompts     int
	RateLimitWindowHours int

	// Image generation
	ImageGenEnabled bool
	ImageGenModel   string
	ImageGenBaseURL string

	// Summaries
	WeeklySummarySchedule  string
	MonthlySummarySchedule string

	// UX
	TypingIndicator bool

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		BotName:          envStr("BOT_NAME", "Гряг"),
		TriggerKeywords:  splitList(envStr("BOT_TRIGGER_KEYWORDS", "gryag,Гряг,griag")),
		AdminIDs:         splitInt64List(os.Getenv("ADMIN_IDS")),

		LLMAPIKey:         os.Getenv("LLM_API_KEY"),
		LLMBaseURL:        envStr("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:          envStr("LLM_MODEL", "gpt-4o"),
		FallbackModel:     os.Getenv("LLM_FALLBACK_MODEL"),
		VisionModel:       os.Getenv("LLM_VISION_MODEL"),
		VisionBaseURL:     os.Getenv("LLM_VISION_BASE_URL"),
		VisionAPIKey:      os.Getenv("LLM_VISION_API_KEY"),
		VisionEnabled:     envBool("LLM_VISION_ENABLED", true),
		SummaryModel:      envStr("LLM_SUMMARIZATION_MODEL", "gpt-4o-mini"),
		MaxRetries:        envInt("LLM_MAX_RETRIES", 3),
		TimeoutSeconds:    envInt("LLM_TIMEOUT_SECONDS", 60),
		MaxResponseTokens: envInt("LLM_MAX_RESPONSE_TOKENS", 2048),

		HistoryLimit:     envInt("IMMEDIATE_CONTEXT_MESSAGES", 100),
		MaxUserFacts:     envInt("USER_MEMORY_MAX_FACTS", 15),
		SystemPromptFile: envStr("SYSTEM_PROMPT_FILE", "default.md"),

		DatabasePath: envStr("DATABASE_PATH", "./data/gryag.db"),

		RateLimitEnabled:     envBool("RATE_LIMIT_ENABLED", true),
		RateLimitPrompts:     envInt("RATE_LIMIT_PROMPTS", 30),
		RateLimitWindowHours: envInt("RATE_LIMIT_WINDOW_HOURS", 1),

		ImageGenEnabled: envBool("IMAGE_GENERATION_ENABLED", true),
		ImageGenModel:   envStr("IMAGE_GENERATION_MODEL", "dall-e-3"),
		ImageGenBaseURL: os.Getenv("IMAGE_GENERATION_BASE_URL"),

		WeeklySummarySchedule:  os.Getenv("SUMMARY_WEEKLY_SCHEDULE"),
		MonthlySummarySchedule: os.Getenv("SUMMARY_MONTHLY_SCHEDULE"),

		TypingIndicator: envBool("TYPING_INDICATOR_ENABLED", true),

		LogLevel:  envStr("LOG_LEVEL", "INFO"),
		LogFormat: envStr("LOG_FORMAT", "json"),
	}

	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}
	return cfg, nil
}

// EffectiveVisionModel falls back to the primary model when no dedicated
// vision model is configured.
func (c *Config) EffectiveVisionModel() string {
	if c.VisionModel != "" {
		return c.VisionModel
	}
	return c.LLMModel
}

// EffectiveImageBaseURL falls back to the LLM base URL.
func (c *Config) EffectiveImageBaseURL() string {
	if c.ImageGenBaseURL != "" {
		return c.ImageGenBaseURL
	}
	return c.LLMBaseURL
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return fallback
	}
	return b
}

// splitList parses a comma-separated string, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// splitInt64List parses a comma-separated list of IDs, skipping junk.
func splitInt64List(s string) []int64 {
	var out []int64
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		n, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
