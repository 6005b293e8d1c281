package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/wordtales/internal/models"
	"google.golang.org/genai"
)

// ImageAspectRatio is requested for every scene picture.
const ImageAspectRatio = "4:3"

// contentGenerator is the part of *genai.Models the provider uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider calls Gemini through the unified genai SDK for text, image and audio.
type GeminiProvider struct {
	models     contentGenerator
	modelText  string
	modelImage string
	modelTTS   string
	ttsVoice   string
	timeout    time.Duration
}

// NewGeminiProvider creates a Gemini provider. cfg must already be validated.
func NewGeminiProvider(ctx context.Context, cfg models.AIConfig, opts Options) (*GeminiProvider, error) {
	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if opts.GeminiAPIEndpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.GeminiAPIEndpoint}
	}
	if opts.HTTPClient != nil {
		cc.HTTPClient = opts.HTTPClient
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}
	return newGeminiProvider(client.Models, cfg.Model, opts.withDefaults()), nil
}

func newGeminiProvider(gen contentGenerator, model string, opts Options) *GeminiProvider {
	return &GeminiProvider{
		models:     gen,
		modelText:  model,
		modelImage: opts.GeminiModelImage,
		modelTTS:   opts.GeminiModelTTS,
		ttsVoice:   opts.GeminiTTSVoice,
		timeout:    opts.Timeout,
	}
}

func (g *GeminiProvider) Name() models.Provider { return models.ProviderGemini }

func (g *GeminiProvider) Model() string { return g.modelText }

func (g *GeminiProvider) Supports(op Operation) bool { return true }

// Analyze sends the prompt with the declared analysis schema and returns the raw text.
func (g *GeminiProvider) Analyze(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	resp, err := g.models.GenerateContent(ctx, g.modelText, userContent(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema(),
	})
	if err != nil {
		return "", fmt.Errorf("gemini analyze: %w", err)
	}
	text := responseText(resp)
	logResponse("Analyze", g.Name(), text)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini analyze: no analysis returned")
	}
	return text, nil
}

// GenerateImage returns the first inline image of the response as a data URI.
func (g *GeminiProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	log.Debug().Str("model", g.modelImage).Str("prompt", Preview(prompt, 60)).Msg("Generating image")
	resp, err := g.models.GenerateContent(ctx, g.modelImage, userContent(prompt), &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: ImageAspectRatio},
	})
	if err != nil {
		return "", fmt.Errorf("gemini image: %w", err)
	}
	blob := firstInlineData(resp)
	if blob == nil {
		log.Warn().Str("model", g.modelImage).Int("candidates", len(resp.Candidates)).Msg("No image blob in Gemini response")
		return "", errors.New("gemini image: no image data in response")
	}
	mimeType := blob.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	log.Info().
		Str("caller", "GenerateImage").
		Int("image_size_bytes", len(blob.Data)).
		Str("mime_type", mimeType).
		Msg("Gemini response (image blob)")
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(blob.Data), nil
}

// GenerateAudio synthesizes text with the TTS model. Raw PCM is returned as WAV.
func (g *GeminiProvider) GenerateAudio(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	resp, err := g.models.GenerateContent(ctx, g.modelTTS, userContent(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.ttsVoice},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini tts: %w", err)
	}
	blob := firstInlineData(resp)
	if blob == nil {
		return nil, errors.New("gemini tts: no audio data in response")
	}
	audio := blob.Data
	if strings.HasPrefix(blob.MIMEType, "audio/L") {
		audio = convertToWAV(blob.Data, blob.MIMEType)
	}
	log.Info().
		Str("caller", "GenerateAudio").
		Int("audio_size_bytes", len(audio)).
		Str("voice", g.ttsVoice).
		Str("mime_type", blob.MIMEType).
		Msg("TTS audio generated")
	return audio, nil
}

func (g *GeminiProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func userContent(text string) []*genai.Content {
	return []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{genai.NewPartFromText(text)},
		},
	}
}

// responseText returns the concatenated text of the first candidate's parts.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData
			}
		}
	}
	return nil
}
