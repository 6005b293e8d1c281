package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/wordtales/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const qwenSystemPrompt = "You are a helpful assistant that outputs JSON."

// QwenProvider calls an OpenAI-compatible chat completion endpoint. It supports
// text analysis only.
type QwenProvider struct {
	llm     llms.Model
	model   string
	timeout time.Duration
}

// NewQwenProvider creates a Qwen provider with bearer-token auth. cfg must already be validated.
func NewQwenProvider(cfg models.AIConfig, opts Options) (*QwenProvider, error) {
	llmOpts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(strings.TrimSuffix(opts.QwenBaseURL, "/")),
	}
	if opts.HTTPClient != nil {
		llmOpts = append(llmOpts, openai.WithHTTPClient(opts.HTTPClient))
	}
	model, err := openai.New(llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize qwen client: %w", err)
	}
	return &QwenProvider{llm: model, model: cfg.Model, timeout: opts.Timeout}, nil
}

func (q *QwenProvider) Name() models.Provider { return models.ProviderQwen }

func (q *QwenProvider) Model() string { return q.model }

func (q *QwenProvider) Supports(op Operation) bool { return op == OpAnalyze }

// Analyze sends system + user messages in JSON mode and returns the message content.
func (q *QwenProvider) Analyze(ctx context.Context, prompt string) (string, error) {
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	messages := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextContent{Text: qwenSystemPrompt}}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextContent{Text: prompt + jsonOnlySuffix}}},
	}
	resp, err := q.llm.GenerateContent(ctx, messages, llms.WithJSONMode(), llms.WithModel(q.model))
	if err != nil {
		return "", fmt.Errorf("qwen analyze: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("qwen analyze: empty response from model")
	}
	text := resp.Choices[0].Content
	logResponse("Analyze", q.Name(), text)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("qwen analyze: no analysis returned")
	}
	return text, nil
}

// GenerateImage is a capability gap: no request is made.
func (q *QwenProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	log.Warn().Str("provider", string(q.Name())).Str("operation", string(OpImage)).Msg(ErrUnsupported.Error())
	return "", nil
}

// GenerateAudio is a capability gap: no request is made.
func (q *QwenProvider) GenerateAudio(ctx context.Context, text string) ([]byte, error) {
	log.Warn().Str("provider", string(q.Name())).Str("operation", string(OpAudio)).Msg(ErrUnsupported.Error())
	return nil, nil
}
