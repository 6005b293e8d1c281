package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/snappy-loop/wordtales/internal/llm"
	"github.com/snappy-loop/wordtales/internal/models"
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr           string
	LogLevel           string
	CORSAllowedOrigins []string

	// AI provider selection (can be changed at runtime through the settings API)
	AIProvider string
	AIAPIKey   string
	AIModel    string

	// Gemini
	GeminiAPIEndpoint string // if set, overrides default Gemini API base URL
	GeminiModelImage  string // image generation, e.g. gemini-2.5-flash-image
	GeminiModelTTS    string // TTS model, e.g. gemini-2.5-flash-preview-tts
	GeminiTTSVoice    string // TTS voice name, e.g. Puck, Zephyr

	// Qwen (OpenAI-compatible endpoint)
	QwenBaseURL string

	// Processing
	ProviderTimeout      time.Duration
	RetryMaxRetries      int
	RetryBaseDelay       time.Duration
	RetryRateLimitDelay  time.Duration
	ImageRequestInterval time.Duration

	// History
	HistoryLimit int
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		HTTPAddr:           getEnv("HTTP_ADDR", "127.0.0.1:8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),

		AIProvider: getEnv("AI_PROVIDER", string(models.ProviderGemini)),
		AIAPIKey:   getEnv("AI_API_KEY", getEnv("GEMINI_API_KEY", getEnv("API_KEY", ""))),
		AIModel:    getEnv("AI_MODEL", ""),

		GeminiAPIEndpoint: getEnv("GEMINI_API_ENDPOINT", ""),
		GeminiModelImage:  getEnv("GEMINI_MODEL_IMAGE", "gemini-2.5-flash-image"),
		GeminiModelTTS:    getEnv("GEMINI_MODEL_TTS", "gemini-2.5-flash-preview-tts"),
		GeminiTTSVoice:    getEnv("GEMINI_TTS_VOICE", "Puck"),

		QwenBaseURL: getEnv("QWEN_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),

		ProviderTimeout:      getEnvDuration("PROVIDER_TIMEOUT", 90*time.Second),
		RetryMaxRetries:      clampMin(getEnvInt("RETRY_MAX_RETRIES", 3), 0),
		RetryBaseDelay:       getEnvDuration("RETRY_BASE_DELAY", time.Second),
		RetryRateLimitDelay:  getEnvDuration("RETRY_RATE_LIMIT_DELAY", 4*time.Second),
		ImageRequestInterval: getEnvDuration("IMAGE_REQUEST_INTERVAL", 500*time.Millisecond),

		HistoryLimit: clampMin(getEnvInt("HISTORY_LIMIT", 50), 1),
	}
}

// AIConfig returns the normalized startup provider configuration.
func (c *Config) AIConfig() models.AIConfig {
	return models.AIConfig{
		Provider: models.Provider(c.AIProvider),
		APIKey:   c.AIAPIKey,
		Model:    c.AIModel,
	}.Normalize()
}

// RetryPolicy returns the provider retry policy with the wall-clock sleep.
func (c *Config) RetryPolicy() llm.RetryPolicy {
	return llm.RetryPolicy{
		MaxRetries:     c.RetryMaxRetries,
		BaseDelay:      c.RetryBaseDelay,
		RateLimitDelay: c.RetryRateLimitDelay,
		Sleep:          llm.Sleep,
	}
}

// ProviderOptions returns the provider settings that are not user-editable.
func (c *Config) ProviderOptions() llm.Options {
	return llm.Options{
		GeminiAPIEndpoint: c.GeminiAPIEndpoint,
		GeminiModelImage:  c.GeminiModelImage,
		GeminiModelTTS:    c.GeminiModelTTS,
		GeminiTTSVoice:    c.GeminiTTSVoice,
		QwenBaseURL:       c.QwenBaseURL,
		Timeout:           c.ProviderTimeout,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// clampMin returns v if v >= min, otherwise min. Used to ensure config values are in valid range.
func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
