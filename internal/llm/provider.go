package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rivo/uniseg"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/wordtales/internal/models"
)

// maxResponseLogGraphemes is the max length of a model response to log in full (to avoid huge logs).
const maxResponseLogGraphemes = 2048

// Operation is a capability a provider may or may not have
type Operation string

const (
	OpAnalyze Operation = "analyze"
	OpImage   Operation = "image"
	OpAudio   Operation = "audio"
)

// Provider is the contract shared by all AI backends.
// GenerateImage returns "" and GenerateAudio returns nil, both with a nil error,
// when the provider does not support the operation.
type Provider interface {
	Name() models.Provider
	Model() string
	Supports(op Operation) bool
	Analyze(ctx context.Context, prompt string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
	GenerateAudio(ctx context.Context, text string) ([]byte, error)
}

// Options holds provider settings that are not part of the user-facing AIConfig
type Options struct {
	GeminiAPIEndpoint string // optional Gemini base URL
	GeminiModelImage  string
	GeminiModelTTS    string
	GeminiTTSVoice    string
	QwenBaseURL       string
	Timeout           time.Duration
	HTTPClient        *http.Client // optional, used by every provider when set
}

func (o Options) withDefaults() Options {
	if o.GeminiModelImage == "" {
		o.GeminiModelImage = "gemini-2.5-flash-image"
	}
	if o.GeminiModelTTS == "" {
		o.GeminiModelTTS = "gemini-2.5-flash-preview-tts"
	}
	if o.GeminiTTSVoice == "" {
		o.GeminiTTSVoice = "Puck"
	}
	if o.QwenBaseURL == "" {
		o.QwenBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	}
	if o.Timeout <= 0 {
		o.Timeout = 90 * time.Second
	}
	return o
}

// ValidateConfig checks cfg without touching the network.
func ValidateConfig(cfg models.AIConfig) error {
	if !cfg.Provider.Valid() {
		return &ConfigurationError{Err: ErrUnknownProvider}
	}
	if !cfg.HasKey() {
		return &ConfigurationError{Err: ErrMissingAPIKey}
	}
	return nil
}

// NewProvider builds the provider selected by cfg. Configuration problems are
// reported before any client is created.
func NewProvider(ctx context.Context, cfg models.AIConfig, opts Options) (Provider, error) {
	cfg = cfg.Normalize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case models.ProviderQwen:
		p, err = NewQwenProvider(cfg, opts)
	default:
		p, err = NewGeminiProvider(ctx, cfg, opts)
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("provider", string(p.Name())).
		Str("model", p.Model()).
		Bool("images", p.Supports(OpImage)).
		Bool("audio", p.Supports(OpAudio)).
		Msg("AI provider initialized")
	return p, nil
}

// Factory builds a provider for a config; the pipeline takes one so tests can inject fakes.
type Factory func(ctx context.Context, cfg models.AIConfig) (Provider, error)

// Provider clients are reused for this long after their last use.
const (
	providerCacheExpiration = 30 * time.Minute
	providerCacheCleanup    = time.Hour
)

// NewFactory returns a Factory bound to opts. Providers are cached per
// provider, model and key so consecutive searches reuse one SDK client.
func NewFactory(opts Options) Factory {
	providers := cache.New(providerCacheExpiration, providerCacheCleanup)
	return func(ctx context.Context, cfg models.AIConfig) (Provider, error) {
		cfg = cfg.Normalize()
		if err := ValidateConfig(cfg); err != nil {
			return nil, err
		}
		key := providerCacheKey(cfg)
		if p, ok := providers.Get(key); ok {
			providers.SetDefault(key, p)
			return p.(Provider), nil
		}
		p, err := NewProvider(ctx, cfg, opts)
		if err != nil {
			return nil, err
		}
		providers.SetDefault(key, p)
		return p, nil
	}
}

// providerCacheKey identifies a provider config without keeping the raw key.
func providerCacheKey(cfg models.AIConfig) string {
	sum := sha256.Sum256([]byte(cfg.APIKey))
	return string(cfg.Provider) + "|" + cfg.Model + "|" + hex.EncodeToString(sum[:8])
}

// Preview truncates s to at most n grapheme clusters so multi-byte text is never cut mid-character.
func Preview(s string, n int) string {
	if uniseg.GraphemeClusterCount(s) <= n {
		return s
	}
	var out []byte
	gr := uniseg.NewGraphemes(s)
	for i := 0; i < n && gr.Next(); i++ {
		out = append(out, gr.Bytes()...)
	}
	return string(out) + "..."
}

// logResponse logs model response text, truncating long responses.
func logResponse(caller string, provider models.Provider, raw string) {
	count := uniseg.GraphemeClusterCount(raw)
	if count <= maxResponseLogGraphemes {
		log.Debug().Str("caller", caller).Str("provider", string(provider)).Str("response", raw).Msg("Model response")
		return
	}
	log.Debug().
		Str("caller", caller).
		Str("provider", string(provider)).
		Str("response", Preview(raw, maxResponseLogGraphemes)+" [truncated]").
		Int("response_len", count).
		Msg("Model response")
}
