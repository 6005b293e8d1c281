package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/snappy-loop/wordtales/internal/models"
	"github.com/snappy-loop/wordtales/internal/pipeline"
)

// ListHistory handles GET /api/history
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"words": h.history.List(),
	})
}

// ClearHistory handles DELETE /api/history
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.history.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// SelectHistory handles POST /api/history/{word}/select: shows a stored word
// without calling the provider.
func (h *Handler) SelectHistory(w http.ResponseWriter, r *http.Request) {
	analysis, ok := h.history.Find(mux.Vars(r)["word"])
	if !ok {
		writeJSONError(w, http.StatusNotFound, "word not found")
		return
	}
	if _, err := h.controller.Select(analysis); err != nil {
		if errors.Is(err, pipeline.ErrBusy) {
			writeJSONError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "failed to select word")
		return
	}
	writeJSON(w, http.StatusOK, h.controller.State())
}

// ListFavorites handles GET /api/favorites
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"words": h.history.Favorites(),
	})
}

// ToggleFavorite handles POST /api/favorites with {"word": "..."}. The word is
// looked up in history first, then in the current request.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Word string `json:"word"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Word) == "" {
		writeJSONError(w, http.StatusBadRequest, "word is required")
		return
	}

	analysis, ok := h.history.Find(req.Word)
	if !ok {
		if st := h.controller.State(); st.Data != nil && strings.EqualFold(st.Data.Word, strings.TrimSpace(req.Word)) {
			analysis, ok = *st.Data, true
		}
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "word not found")
		return
	}

	favorite := h.history.ToggleFavorite(analysis)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"word":     analysis.Word,
		"favorite": favorite,
	})
}

// GetLastQuiz handles GET /api/quiz/last
func (h *Handler) GetLastQuiz(w http.ResponseWriter, r *http.Request) {
	result, ok := h.history.LastQuizResult()
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no quiz result")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SaveQuizResult handles POST /api/quiz/result
func (h *Handler) SaveQuizResult(w http.ResponseWriter, r *http.Request) {
	var req models.QuizResult
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TotalQuestions <= 0 || req.CorrectCount < 0 || req.CorrectCount > req.TotalQuestions {
		writeJSONError(w, http.StatusBadRequest, "invalid quiz result")
		return
	}
	if req.Date.IsZero() {
		req.Date = time.Now().UTC()
	}
	h.history.SaveQuizResult(req)
	writeJSON(w, http.StatusCreated, req)
}
