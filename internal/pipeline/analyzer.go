package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/wordtales/internal/llm"
	"github.com/snappy-loop/wordtales/internal/models"
)

// Analyzer runs the text phase: prompt, provider call and validation.
type Analyzer struct {
	policy llm.RetryPolicy
}

// NewAnalyzer creates an analyzer that retries the whole analyze call with policy.
func NewAnalyzer(policy llm.RetryPolicy) *Analyzer {
	return &Analyzer{policy: policy}
}

// AnalyzeWord returns the validated analysis of word. Every provider or parse
// failure is returned as *llm.AnalysisError.
func (a *Analyzer) AnalyzeWord(ctx context.Context, provider llm.Provider, word string) (*models.WordAnalysis, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil, &llm.ConfigurationError{Err: llm.ErrEmptyWord}
	}

	start := time.Now()
	prompt := llm.BuildAnalysisPrompt(word)
	// Parsing is inside the retried operation: a schema-violating answer is as
	// transient as a network error.
	analysis, err := llm.Retry(ctx, a.policy, "analyze", func(ctx context.Context) (*models.WordAnalysis, error) {
		raw, err := provider.Analyze(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return llm.ParseAnalysis(raw)
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("word", word).
			Str("provider", string(provider.Name())).
			Dur("elapsed", time.Since(start)).
			Msg("Word analysis failed")
		return nil, &llm.AnalysisError{Word: word, Err: err}
	}

	log.Info().
		Str("word", analysis.Word).
		Str("provider", string(provider.Name())).
		Int("scenes", len(analysis.Scenes)).
		Bool("textbook", analysis.TextbookInfo != nil).
		Dur("elapsed", time.Since(start)).
		Msg("Word analysis completed")
	return analysis, nil
}
