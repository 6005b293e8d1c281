package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/wordtales/internal/llm"
	"github.com/snappy-loop/wordtales/internal/models"
)

var (
	// ErrBusy is returned when a pipeline is already running.
	ErrBusy = errors.New("a word is already being processed")
	// ErrNotReady is returned when a slot is regenerated without a completed analysis.
	ErrNotReady = errors.New("no completed analysis to regenerate")
	// ErrSlotOutOfRange is returned for an image index outside the current slots.
	ErrSlotOutOfRange = errors.New("image index out of range")
)

// User-facing messages of the ERROR state
const (
	MsgConfigRequired = "please configure an API key first"
	MsgAnalysisFailed = "could not analyze this word, please try again"
)

// Hooks are the callbacks exposed to the presentation layer. They are only
// fired for the live request, never while the controller lock is held.
type Hooks struct {
	OnAnalysisComplete func(analysis models.WordAnalysis)
	OnImageSlotUpdate  func(requestID uuid.UUID, index int, url, errMsg *string)
	OnAudioReady       func(requestID uuid.UUID, audio []byte)
	OnStatusChange     func(requestID uuid.UUID, status models.Status)
}

// Option configures a Controller
type Option func(*Controller)

// WithHooks sets the collaborator callbacks.
func WithHooks(h Hooks) Option {
	return func(c *Controller) { c.hooks = h }
}

// WithRetryPolicy sets the policy used for analysis and media calls.
func WithRetryPolicy(p llm.RetryPolicy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithImageInterval sets the wait between consecutive image requests.
func WithImageInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// WithSleep replaces the wall-clock wait used for the image interval and retry
// backoff.
func WithSleep(fn llm.SleepFunc) Option {
	return func(c *Controller) { c.sleep = fn }
}

// Controller owns the request state of the single learner session. Every
// asynchronous result is applied through update, which drops results of a
// request that is no longer live.
type Controller struct {
	mu    sync.Mutex
	state models.RequestState
	cfg   models.AIConfig

	newProvider llm.Factory
	policy      llm.RetryPolicy
	interval    time.Duration
	sleep       llm.SleepFunc
	hooks       Hooks

	analyzer *Analyzer
	media    *Media
	wg       sync.WaitGroup
}

// NewController creates a controller in the IDLE state.
func NewController(cfg models.AIConfig, factory llm.Factory, opts ...Option) *Controller {
	c := &Controller{
		state:       models.NewRequestState(),
		cfg:         cfg.Normalize(),
		newProvider: factory,
		policy:      llm.DefaultRetryPolicy(),
		interval:    DefaultImageInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sleep != nil {
		c.policy.Sleep = c.sleep
	}
	c.analyzer = NewAnalyzer(c.policy)
	c.media = NewMedia(c.policy, c.interval, c.sleep)
	return c
}

// State returns a snapshot of the current request state.
func (c *Controller) State() models.RequestState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Config returns the active AI configuration.
func (c *Controller) Config() models.AIConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// SetConfig replaces the AI configuration used by the next search. The model
// is reset to the provider default when it does not belong to the provider.
func (c *Controller) SetConfig(cfg models.AIConfig) models.AIConfig {
	cfg = cfg.Normalize()
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	log.Info().Str("provider", string(cfg.Provider)).Str("model", cfg.Model).Bool("has_key", cfg.HasKey()).Msg("AI config updated")
	return cfg
}

// Wait blocks until all running pipeline work, including detached audio, is done.
func (c *Controller) Wait() {
	c.wg.Wait()
	c.media.Wait()
}

// Search starts a new pipeline for word and returns its request id. The state
// of any previous request is discarded. ctx bounds the background work, so it
// must outlive the caller's request.
func (c *Controller) Search(ctx context.Context, word string) (uuid.UUID, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return uuid.Nil, &llm.ConfigurationError{Err: llm.ErrEmptyWord}
	}

	c.mu.Lock()
	if c.state.Status.Busy() {
		c.mu.Unlock()
		return uuid.Nil, ErrBusy
	}
	cfg := c.cfg
	next := models.NewRequestState()
	next.RequestID = uuid.New()
	id := next.RequestID

	if err := llm.ValidateConfig(cfg); err != nil {
		next.Status = models.StatusError
		next.Error = MsgConfigRequired
		c.state = next
		c.mu.Unlock()
		log.Warn().Err(err).Str("word", word).Msg("Search blocked by configuration")
		c.fireStatus(id, models.StatusError)
		return id, err
	}

	next.Status = models.StatusAnalyzing
	c.state = next
	c.mu.Unlock()

	log.Info().Str("request_id", id.String()).Str("word", word).Str("provider", string(cfg.Provider)).Msg("Search started")
	c.fireStatus(id, models.StatusAnalyzing)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx, id, cfg, word)
	}()
	return id, nil
}

func (c *Controller) run(ctx context.Context, id uuid.UUID, cfg models.AIConfig, word string) {
	provider, err := c.newProvider(ctx, cfg)
	if err != nil {
		c.fail(id, err)
		return
	}

	analysis, err := c.analyzer.AnalyzeWord(ctx, provider, word)
	if err != nil {
		c.fail(id, err)
		return
	}

	// Slots exist before any media request so the UI can draw placeholders.
	live := c.update(id, func(s *models.RequestState) {
		s.Data = analysis.Clone()
		s.ResetSlots(analysis.SceneCount())
		s.Status = models.StatusGeneratingMedia
	})
	if !live {
		return
	}
	if c.hooks.OnAnalysisComplete != nil {
		c.hooks.OnAnalysisComplete(*analysis.Clone())
	}
	c.fireStatus(id, models.StatusGeneratingMedia)

	c.media.Run(ctx, provider, analysis, &requestSink{c: c, id: id})

	if c.update(id, func(s *models.RequestState) { s.Status = models.StatusComplete }) {
		log.Info().Str("request_id", id.String()).Str("word", analysis.Word).Msg("Pipeline complete")
		c.fireStatus(id, models.StatusComplete)
	}
}

func (c *Controller) fail(id uuid.UUID, err error) {
	msg := MsgAnalysisFailed
	if llm.IsConfigurationError(err) {
		msg = MsgConfigRequired
	}
	log.Error().Err(err).Str("request_id", id.String()).Msg("Search failed")
	if c.update(id, func(s *models.RequestState) {
		s.Status = models.StatusError
		s.Error = msg
	}) {
		c.fireStatus(id, models.StatusError)
	}
}

// Regenerate re-runs the image request of slot index on a completed request.
// Only that slot is touched. The work runs in the background; ctx bounds it.
func (c *Controller) Regenerate(ctx context.Context, index int) error {
	c.mu.Lock()
	if c.state.Status.Busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state.Status != models.StatusComplete || c.state.Data == nil {
		c.mu.Unlock()
		return ErrNotReady
	}
	if index < 0 || index >= len(c.state.ImageURLs) {
		c.mu.Unlock()
		return ErrSlotOutOfRange
	}
	cfg := c.cfg
	if err := llm.ValidateConfig(cfg); err != nil {
		c.mu.Unlock()
		return err
	}
	id := c.state.RequestID
	prompt := c.state.Data.PromptAt(index)
	c.state.SetSlot(index, nil, nil)
	c.state.Status = models.StatusGeneratingMedia
	c.mu.Unlock()

	log.Info().Str("request_id", id.String()).Int("index", index).Msg("Regenerating image")
	c.fireSlot(id, index, nil, nil)
	c.fireStatus(id, models.StatusGeneratingMedia)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		var url, errMsg *string
		provider, err := c.newProvider(ctx, cfg)
		if err != nil {
			log.Error().Err(err).Int("index", index).Msg("Provider unavailable for regeneration")
			msg := llm.FormatMediaError(err)
			errMsg = &msg
		} else {
			url, errMsg = c.media.Image(ctx, provider, prompt)
		}
		c.patchSlot(id, index, url, errMsg)
		if c.update(id, func(s *models.RequestState) { s.Status = models.StatusComplete }) {
			c.fireStatus(id, models.StatusComplete)
		}
	}()
	return nil
}

// Select shows a previously analyzed word without calling any provider. Its
// image slots start pending and can be filled with Regenerate.
func (c *Controller) Select(analysis models.WordAnalysis) (uuid.UUID, error) {
	c.mu.Lock()
	if c.state.Status.Busy() {
		c.mu.Unlock()
		return uuid.Nil, ErrBusy
	}
	next := models.NewRequestState()
	next.RequestID = uuid.New()
	next.Data = analysis.Clone()
	next.ResetSlots(analysis.SceneCount())
	next.Status = models.StatusComplete
	c.state = next
	id := next.RequestID
	c.mu.Unlock()

	c.fireStatus(id, models.StatusComplete)
	return id, nil
}

// update applies fn to the state if id is still the live request.
func (c *Controller) update(id uuid.UUID, fn func(s *models.RequestState)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.RequestID != id {
		log.Debug().Str("request_id", id.String()).Msg("Dropping update for stale request")
		return false
	}
	fn(&c.state)
	return true
}

func (c *Controller) patchSlot(id uuid.UUID, index int, url, errMsg *string) {
	ok := false
	if !c.update(id, func(s *models.RequestState) { ok = s.SetSlot(index, url, errMsg) }) || !ok {
		return
	}
	if url != nil {
		errMsg = nil
	}
	c.fireSlot(id, index, url, errMsg)
}

func (c *Controller) fireSlot(id uuid.UUID, index int, url, errMsg *string) {
	if c.hooks.OnImageSlotUpdate != nil {
		c.hooks.OnImageSlotUpdate(id, index, url, errMsg)
	}
}

func (c *Controller) fireStatus(id uuid.UUID, status models.Status) {
	if c.hooks.OnStatusChange != nil {
		c.hooks.OnStatusChange(id, status)
	}
}

// requestSink binds media results to the request that produced them.
type requestSink struct {
	c  *Controller
	id uuid.UUID
}

func (s *requestSink) ImageSlot(index int, url, errMsg *string) {
	s.c.patchSlot(s.id, index, url, errMsg)
}

func (s *requestSink) Audio(data []byte) {
	if !s.c.update(s.id, func(st *models.RequestState) { st.AudioData = data }) {
		return
	}
	if s.c.hooks.OnAudioReady != nil {
		s.c.hooks.OnAudioReady(s.id, data)
	}
}
