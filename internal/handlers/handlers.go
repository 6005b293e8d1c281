package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/wordtales/internal/llm"
	"github.com/snappy-loop/wordtales/internal/models"
	"github.com/snappy-loop/wordtales/internal/pipeline"
)

// wordController is the subset of *pipeline.Controller used by the handlers.
type wordController interface {
	State() models.RequestState
	Config() models.AIConfig
	SetConfig(cfg models.AIConfig) models.AIConfig
	Search(ctx context.Context, word string) (uuid.UUID, error)
	Regenerate(ctx context.Context, index int) error
	Select(analysis models.WordAnalysis) (uuid.UUID, error)
}

// historyStore is the subset of *history.Store used by the handlers.
type historyStore interface {
	List() []models.WordAnalysis
	Find(word string) (models.WordAnalysis, bool)
	Clear()
	ToggleFavorite(analysis models.WordAnalysis) bool
	Favorites() []models.WordAnalysis
	SaveQuizResult(r models.QuizResult)
	LastQuizResult() (models.QuizResult, bool)
}

// Handler contains all HTTP handlers
type Handler struct {
	baseCtx    context.Context
	controller wordController
	history    historyStore
	hub        *Hub
}

// NewHandler creates a new handler. baseCtx bounds pipeline work started by
// requests; it is cancelled on shutdown, not when a request ends.
func NewHandler(baseCtx context.Context, controller wordController, history historyStore, hub *Hub) *Handler {
	return &Handler{
		baseCtx:    baseCtx,
		controller: controller,
		history:    history,
		hub:        hub,
	}
}

// Register adds all routes to r.
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", h.GetState).Methods("GET")
	api.HandleFunc("/search", h.Search).Methods("POST")
	api.HandleFunc("/images/{index}/regenerate", h.RegenerateImage).Methods("POST")
	api.HandleFunc("/audio", h.GetAudio).Methods("GET")
	api.HandleFunc("/config", h.GetConfig).Methods("GET")
	api.HandleFunc("/config", h.UpdateConfig).Methods("PUT")
	api.HandleFunc("/history", h.ListHistory).Methods("GET")
	api.HandleFunc("/history", h.ClearHistory).Methods("DELETE")
	api.HandleFunc("/history/{word}/select", h.SelectHistory).Methods("POST")
	api.HandleFunc("/favorites", h.ListFavorites).Methods("GET")
	api.HandleFunc("/favorites", h.ToggleFavorite).Methods("POST")
	api.HandleFunc("/quiz/last", h.GetLastQuiz).Methods("GET")
	api.HandleFunc("/quiz/result", h.SaveQuizResult).Methods("POST")
	if h.hub != nil {
		api.HandleFunc("/events", h.hub.ServeWS).Methods("GET")
	}
}

// GetState handles GET /api/state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.State())
}

// Search handles POST /api/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Word string `json:"word"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.controller.Search(h.baseCtx, req.Word)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrBusy):
			writeJSONError(w, http.StatusConflict, err.Error())
		case llm.IsConfigurationError(err):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to start search")
			writeJSONError(w, http.StatusInternalServerError, "failed to start search")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"request_id": id,
		"status":     models.StatusAnalyzing,
	})
}

// RegenerateImage handles POST /api/images/{index}/regenerate
func (h *Handler) RegenerateImage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid image index")
		return
	}

	if err := h.controller.Regenerate(h.baseCtx, index); err != nil {
		switch {
		case errors.Is(err, pipeline.ErrBusy), errors.Is(err, pipeline.ErrNotReady):
			writeJSONError(w, http.StatusConflict, err.Error())
		case errors.Is(err, pipeline.ErrSlotOutOfRange):
			writeJSONError(w, http.StatusNotFound, err.Error())
		case llm.IsConfigurationError(err):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Int("index", index).Msg("Failed to regenerate image")
			writeJSONError(w, http.StatusInternalServerError, "failed to regenerate image")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"index":  index,
		"status": models.StatusGeneratingMedia,
	})
}

// GetAudio handles GET /api/audio: the narration of the current word.
func (h *Handler) GetAudio(w http.ResponseWriter, r *http.Request) {
	state := h.controller.State()
	if len(state.AudioData) == 0 {
		writeJSONError(w, http.StatusNotFound, "no audio available")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(state.AudioData)))
	w.WriteHeader(http.StatusOK)
	w.Write(state.AudioData)
}

// GetConfig handles GET /api/config. The API key is redacted.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Config().Redacted())
}

// UpdateConfig handles PUT /api/config. Omitted fields keep their current values;
// a new provider without a model gets that provider's default model.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req models.AIConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Provider != "" && !req.Normalize().Provider.Valid() {
		writeJSONError(w, http.StatusBadRequest, "unknown provider")
		return
	}
	current := h.controller.Config()
	if req.Provider == "" {
		req.Provider = current.Provider
		if req.Model == "" {
			req.Model = current.Model
		}
	}
	if !req.HasKey() {
		req.APIKey = current.APIKey
	}
	cfg := h.controller.SetConfig(req)
	writeJSON(w, http.StatusOK, cfg.Redacted())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
