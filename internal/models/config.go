package models

import "strings"

// Provider identifies an AI backend
type Provider string

const (
	// ProviderGemini is the native-SDK provider; it supports text, image and audio.
	ProviderGemini Provider = "GEMINI"
	// ProviderQwen is the OpenAI-compatible provider; it supports text only.
	ProviderQwen Provider = "QWEN"
)

// Default text models per provider
const (
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultQwenModel   = "qwen-plus"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	return p == ProviderGemini || p == ProviderQwen
}

// DefaultModel returns the provider's default text model
func (p Provider) DefaultModel() string {
	switch p {
	case ProviderQwen:
		return DefaultQwenModel
	default:
		return DefaultGeminiModel
	}
}

// family is the substring a model name of this provider is expected to carry.
func (p Provider) family() string {
	switch p {
	case ProviderQwen:
		return "qwen"
	default:
		return "gemini"
	}
}

// AIConfig selects the provider, key and text model for a request
type AIConfig struct {
	Provider Provider `json:"provider"`
	APIKey   string   `json:"apiKey"`
	Model    string   `json:"model"`
}

// Normalize uppercases the provider and resets the model to the provider default
// when the current model does not look like one of the provider's models.
func (c AIConfig) Normalize() AIConfig {
	c.Provider = Provider(strings.ToUpper(strings.TrimSpace(string(c.Provider))))
	if c.Provider == "" {
		c.Provider = ProviderGemini
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.Model = strings.TrimSpace(c.Model)
	if !strings.Contains(strings.ToLower(c.Model), c.Provider.family()) {
		c.Model = c.Provider.DefaultModel()
	}
	return c
}

// Redacted returns a copy safe to log or return to the UI
func (c AIConfig) Redacted() AIConfig {
	if c.APIKey == "" {
		return c
	}
	key := c.APIKey
	if len(key) > 4 {
		c.APIKey = key[:4] + strings.Repeat("*", 8)
	} else {
		c.APIKey = strings.Repeat("*", 8)
	}
	return c
}

// HasKey reports whether an API key is set
func (c AIConfig) HasKey() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

