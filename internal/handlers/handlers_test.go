package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/snappy-loop/wordtales/internal/history"
	"github.com/snappy-loop/wordtales/internal/llm"
	"github.com/snappy-loop/wordtales/internal/models"
	"github.com/snappy-loop/wordtales/internal/pipeline"
)

// fakeController is a minimal wordController for tests.
type fakeController struct {
	state      models.RequestState
	cfg        models.AIConfig
	search     func(ctx context.Context, word string) (uuid.UUID, error)
	regenerate func(ctx context.Context, index int) error
	selected   *models.WordAnalysis
}

func (f *fakeController) State() models.RequestState { return f.state.Clone() }

func (f *fakeController) Config() models.AIConfig { return f.cfg }

func (f *fakeController) SetConfig(cfg models.AIConfig) models.AIConfig {
	f.cfg = cfg.Normalize()
	return f.cfg
}

func (f *fakeController) Search(ctx context.Context, word string) (uuid.UUID, error) {
	if f.search != nil {
		return f.search(ctx, word)
	}
	return uuid.New(), nil
}

func (f *fakeController) Regenerate(ctx context.Context, index int) error {
	if f.regenerate != nil {
		return f.regenerate(ctx, index)
	}
	return nil
}

func (f *fakeController) Select(analysis models.WordAnalysis) (uuid.UUID, error) {
	f.selected = &analysis
	f.state = models.NewRequestState()
	f.state.Data = &analysis
	f.state.Status = models.StatusComplete
	f.state.ResetSlots(analysis.SceneCount())
	return uuid.New(), nil
}

func newTestRouter(c wordController, store historyStore) *mux.Router {
	r := mux.NewRouter()
	NewHandler(context.Background(), c, store, NewHub()).Register(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSearch_StatusCodes(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"accepted", `{"word":"echo"}`, nil, http.StatusAccepted},
		{"invalid body", `{"word":`, nil, http.StatusBadRequest},
		{"busy", `{"word":"echo"}`, pipeline.ErrBusy, http.StatusConflict},
		{"missing key", `{"word":"echo"}`, &llm.ConfigurationError{Err: llm.ErrMissingAPIKey}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotWord string
			c := &fakeController{search: func(ctx context.Context, word string) (uuid.UUID, error) {
				gotWord = word
				if ctx.Err() != nil {
					t.Error("search context must outlive the request")
				}
				return uuid.New(), tt.err
			}}
			rec := do(t, newTestRouter(c, history.NewStore(10)), http.MethodPost, "/api/search", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusAccepted && gotWord != "echo" {
				t.Errorf("word = %q", gotWord)
			}
		})
	}
}

func TestRegenerateImage_StatusCodes(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		err   error
		want  int
		index int
	}{
		{"accepted", "/api/images/2/regenerate", nil, http.StatusAccepted, 2},
		{"bad index", "/api/images/two/regenerate", nil, http.StatusBadRequest, -1},
		{"out of range", "/api/images/9/regenerate", pipeline.ErrSlotOutOfRange, http.StatusNotFound, 9},
		{"not ready", "/api/images/0/regenerate", pipeline.ErrNotReady, http.StatusConflict, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := -1
			c := &fakeController{regenerate: func(ctx context.Context, index int) error {
				got = index
				return tt.err
			}}
			rec := do(t, newTestRouter(c, history.NewStore(10)), http.MethodPost, tt.path, "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if got != tt.index {
				t.Errorf("index = %d, want %d", got, tt.index)
			}
		})
	}
}

func TestConfig_RedactsAndKeepsKey(t *testing.T) {
	c := &fakeController{cfg: models.AIConfig{Provider: models.ProviderGemini, APIKey: "AIzaSecretKey", Model: "gemini-2.5-flash"}}
	r := newTestRouter(c, history.NewStore(10))

	rec := do(t, r, http.MethodGet, "/api/config", "")
	if strings.Contains(rec.Body.String(), "SecretKey") {
		t.Errorf("config response leaks the key: %s", rec.Body.String())
	}

	rec = do(t, r, http.MethodPut, "/api/config", `{"provider":"QWEN","model":"gemini-2.5-flash"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if c.cfg.Provider != models.ProviderQwen || c.cfg.Model != models.DefaultQwenModel || c.cfg.APIKey != "AIzaSecretKey" {
		t.Errorf("config = %+v", c.cfg)
	}

	rec = do(t, r, http.MethodPut, "/api/config", `{"provider":"OTHER","apiKey":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown provider status = %d", rec.Code)
	}
}

func TestConfig_KeyOnlyUpdateKeepsProvider(t *testing.T) {
	c := &fakeController{cfg: models.AIConfig{Provider: models.ProviderQwen, APIKey: "sk-old", Model: "qwen-max"}}
	r := newTestRouter(c, history.NewStore(10))

	rec := do(t, r, http.MethodPut, "/api/config", `{"apiKey":"sk-new"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	want := models.AIConfig{Provider: models.ProviderQwen, APIKey: "sk-new", Model: "qwen-max"}
	if c.cfg != want {
		t.Errorf("config = %+v, want %+v", c.cfg, want)
	}
}

func TestGetAudio(t *testing.T) {
	c := &fakeController{state: models.NewRequestState()}
	r := newTestRouter(c, history.NewStore(10))
	if rec := do(t, r, http.MethodGet, "/api/audio", ""); rec.Code != http.StatusNotFound {
		t.Errorf("no audio status = %d", rec.Code)
	}

	c.state.AudioData = []byte("RIFFdata")
	rec := do(t, r, http.MethodGet, "/api/audio", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "audio/wav" || rec.Body.String() != "RIFFdata" {
		t.Errorf("audio = %d %q %q", rec.Code, rec.Header().Get("Content-Type"), rec.Body.String())
	}
}

func TestHistoryRoutes(t *testing.T) {
	store := history.NewStore(10)
	store.Save(models.WordAnalysis{Word: "echo", Scenes: []models.StoryScene{{VisualPrompt: "a"}, {VisualPrompt: "b"}}})
	c := &fakeController{state: models.NewRequestState()}
	r := newTestRouter(c, store)

	rec := do(t, r, http.MethodPost, "/api/history/ECHO/select", "")
	if rec.Code != http.StatusOK || c.selected == nil || c.selected.Word != "echo" {
		t.Fatalf("select = %d, %+v", rec.Code, c.selected)
	}
	var state models.RequestState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil || len(state.ImageURLs) != 2 {
		t.Errorf("selected state = %+v, %v", state, err)
	}
	if rec := do(t, r, http.MethodPost, "/api/history/zenith/select", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown word status = %d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, "/api/favorites", `{"word":"echo"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"favorite":true`) {
		t.Errorf("toggle favorite = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, r, http.MethodPost, "/api/favorites", `{"word":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty favorite status = %d", rec.Code)
	}

	if rec := do(t, r, http.MethodDelete, "/api/history", ""); rec.Code != http.StatusNoContent {
		t.Errorf("clear status = %d", rec.Code)
	}
	if len(store.List()) != 0 || len(store.Favorites()) != 1 {
		t.Errorf("after clear: history %d, favorites %d", len(store.List()), len(store.Favorites()))
	}
}

func TestQuizRoutes(t *testing.T) {
	store := history.NewStore(10)
	r := newTestRouter(&fakeController{}, store)

	if rec := do(t, r, http.MethodGet, "/api/quiz/last", ""); rec.Code != http.StatusNotFound {
		t.Errorf("empty quiz status = %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/api/quiz/result", `{"score":100,"totalQuestions":3,"correctCount":4}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid quiz status = %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/api/quiz/result", `{"score":67,"totalQuestions":3,"correctCount":2}`); rec.Code != http.StatusCreated {
		t.Errorf("save quiz status = %d", rec.Code)
	}
	got, ok := store.LastQuizResult()
	if !ok || got.CorrectCount != 2 || got.Date.IsZero() {
		t.Errorf("stored quiz = %+v, %v", got, ok)
	}
}

func TestHub_BroadcastsHookEvents(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	saved := ""
	hooks := hub.Hooks(func(a models.WordAnalysis) { saved = a.Word })
	id := uuid.New()
	msg := llm.MsgRateLimited
	hooks.OnAnalysisComplete(models.WordAnalysis{Word: "echo"})
	hooks.OnImageSlotUpdate(id, 2, nil, &msg)
	if saved != "echo" {
		t.Errorf("analysis hook not forwarded, saved = %q", saved)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read: %v", err)
	}
	if first.Type != EventAnalysisComplete || first.Word != "echo" {
		t.Errorf("first event = %+v", first)
	}
	if second.Type != EventImageSlot || second.RequestID != id || second.Index == nil || *second.Index != 2 ||
		second.URL != nil || second.Error == nil || *second.Error != msg {
		t.Errorf("second event = %+v", second)
	}

	hub.Close()
	if hub.Clients() != 0 {
		t.Errorf("clients after close = %d", hub.Clients())
	}
}
