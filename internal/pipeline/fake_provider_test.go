package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/snappy-loop/wordtales/internal/llm"
	"github.com/snappy-loop/wordtales/internal/models"
)

// fakeProvider is an in-memory llm.Provider for pipeline tests.
type fakeProvider struct {
	name     models.Provider
	noMedia  bool
	analyze  func(ctx context.Context, prompt string) (string, error)
	image    func(ctx context.Context, prompt string) (string, error)
	audio    func(ctx context.Context, text string) ([]byte, error)
	events   *eventLog
	mu       sync.Mutex
	analyzed int
}

func (f *fakeProvider) Name() models.Provider {
	if f.name == "" {
		return models.ProviderGemini
	}
	return f.name
}

func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) Supports(op llm.Operation) bool {
	return op == llm.OpAnalyze || !f.noMedia
}

func (f *fakeProvider) Analyze(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.analyzed++
	f.mu.Unlock()
	return f.analyze(ctx, prompt)
}

func (f *fakeProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if f.noMedia {
		return "", nil
	}
	f.events.add("start " + prompt)
	url, err := f.image(ctx, prompt)
	f.events.add("end " + prompt)
	return url, err
}

func (f *fakeProvider) GenerateAudio(ctx context.Context, text string) ([]byte, error) {
	if f.noMedia || f.audio == nil {
		return nil, nil
	}
	return f.audio(ctx, text)
}

func (f *fakeProvider) analyzeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyzed
}

// eventLog records image calls and image-loop sleeps in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) sleep(ctx context.Context, d time.Duration) error {
	l.add("sleep " + d.String())
	return ctx.Err()
}

func factoryFor(p llm.Provider) llm.Factory {
	return func(ctx context.Context, cfg models.AIConfig) (llm.Provider, error) {
		if err := llm.ValidateConfig(cfg); err != nil {
			return nil, err
		}
		return p, nil
	}
}

func testConfig() models.AIConfig {
	return models.AIConfig{Provider: models.ProviderGemini, APIKey: "test-key"}
}

// analysisJSON returns a valid analysis response for word with n scenes whose
// visual prompts are "<word>-0" .. "<word>-(n-1)".
func analysisJSON(word string, n int) string {
	scenes := make([]map[string]string, n)
	for i := range scenes {
		scenes[i] = map[string]string{
			"narrative":    fmt.Sprintf("Part %d of the %s story.", i+1, word),
			"visualPrompt": fmt.Sprintf("%s-%d", word, i),
		}
	}
	visual := word + "-only"
	if n > 0 {
		visual = word + "-0"
	}
	b, _ := json.Marshal(map[string]any{
		"word":              word,
		"definition":        "adj. test",
		"difficulty":        "Advanced",
		"phonetic":          "/test/",
		"etymology":         "from Latin",
		"pronunciationTips": "stress the second syllable",
		"roots":             []map[string]any{{"root": "ubi", "meaning": "where", "examples": []string{"ubiquity"}}},
		"synonyms":          []string{"omnipresent"},
		"antonyms":          []string{"rare"},
		"story":             "Xiaohei and the " + word + ".",
		"scenes":            scenes,
		"mnemonicChant":     word + " here, " + word + " there",
		"visualPrompt":      visual,
		"textbookInfo":      nil,
	})
	return string(b)
}

// wordOf returns the word named in an analysis prompt.
func wordOf(prompt string) string {
	_, rest, _ := strings.Cut(prompt, `Analyze the English word "`)
	word, _, _ := strings.Cut(rest, `"`)
	return word
}
