package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/wordtales/internal/llm"
	"github.com/snappy-loop/wordtales/internal/models"
)

// DefaultImageInterval spaces consecutive image requests of one word.
const DefaultImageInterval = 500 * time.Millisecond

// Sink receives media results of one request.
type Sink interface {
	ImageSlot(index int, url, errMsg *string)
	Audio(data []byte)
}

// Media issues the audio request and the sequential image requests of an analysis.
type Media struct {
	policy   llm.RetryPolicy
	interval time.Duration
	sleep    llm.SleepFunc

	wg sync.WaitGroup // detached audio tasks
}

// NewMedia creates a media pipeline. A nil sleep uses the wall clock.
func NewMedia(policy llm.RetryPolicy, interval time.Duration, sleep llm.SleepFunc) *Media {
	if sleep == nil {
		sleep = llm.Sleep
	}
	if interval < 0 {
		interval = 0
	}
	return &Media{policy: policy, interval: interval, sleep: sleep}
}

// Run starts the detached audio task and then generates one image per scene,
// strictly one after another. It returns when the image loop has stopped; the
// audio task may still be running (see Wait).
func (m *Media) Run(ctx context.Context, provider llm.Provider, analysis *models.WordAnalysis, sink Sink) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.audio(ctx, provider, analysis, sink)
	}()

	m.Images(ctx, provider, analysis.ImagePrompts(), sink.ImageSlot)
}

// Wait blocks until every detached audio task has finished.
func (m *Media) Wait() {
	m.wg.Wait()
}

func (m *Media) audio(ctx context.Context, provider llm.Provider, analysis *models.WordAnalysis, sink Sink) {
	prompt := llm.AudioPrompt(analysis.Word, analysis.MnemonicChant)
	data, err := llm.Retry(ctx, m.policy, "audio", func(ctx context.Context) ([]byte, error) {
		return provider.GenerateAudio(ctx, prompt)
	})
	if err != nil {
		log.Warn().Err(err).Str("word", analysis.Word).Msg("Audio generation failed")
		return
	}
	if len(data) == 0 {
		log.Info().Str("provider", string(provider.Name())).Str("word", analysis.Word).Msg("No audio for this provider")
		return
	}
	sink.Audio(data)
}

// Images generates prompts[i] for i = 0..n-1 and reports every outcome through
// emit. Request i+1 starts only after request i has resolved and the interval
// has elapsed. A failed slot never stops the loop.
func (m *Media) Images(ctx context.Context, provider llm.Provider, prompts []string, emit func(index int, url, errMsg *string)) {
	for i, prompt := range prompts {
		if i > 0 && m.interval > 0 {
			if err := m.sleep(ctx, m.interval); err != nil {
				m.abandon(i, len(prompts), err, emit)
				return
			}
		}
		if err := ctx.Err(); err != nil {
			m.abandon(i, len(prompts), err, emit)
			return
		}
		url, errMsg := m.Image(ctx, provider, prompt)
		log.Debug().Int("index", i).Bool("ok", url != nil).Msg("Image slot resolved")
		emit(i, url, errMsg)
	}
}

// abandon fails the slots that will not be requested so none is left pending.
func (m *Media) abandon(from, n int, err error, emit func(int, *string, *string)) {
	log.Warn().Err(err).Int("from", from).Int("count", n-from).Msg("Image generation stopped")
	msg := llm.FormatMediaError(err)
	for i := from; i < n; i++ {
		emit(i, nil, &msg)
	}
}

// Image runs one retried image request and maps the outcome to slot values:
// exactly one of url and errMsg is non-nil.
func (m *Media) Image(ctx context.Context, provider llm.Provider, prompt string) (url, errMsg *string) {
	if prompt == "" {
		msg := llm.MsgMediaFailed
		log.Warn().Msg("Image slot has no prompt")
		return nil, &msg
	}

	result, err := llm.Retry(ctx, m.policy, "image", func(ctx context.Context) (string, error) {
		return provider.GenerateImage(ctx, prompt)
	})
	if err != nil {
		log.Error().Err(err).Str("prompt", llm.Preview(prompt, 60)).Msg("Image generation failed")
		msg := llm.FormatMediaError(err)
		return nil, &msg
	}
	if result == "" {
		msg := llm.MsgImageUnsupported
		return nil, &msg
	}
	return &result, nil
}
