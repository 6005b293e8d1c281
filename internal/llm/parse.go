package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/wordtales/internal/models"
)

// RequiredFields must be present and non-null in every analysis response.
var RequiredFields = []string{
	"word", "definition", "difficulty", "etymology", "roots", "story",
	"scenes", "visualPrompt", "mnemonicChant", "synonyms", "antonyms",
}

// wireAnalysis decodes textbookInfo separately so a malformed value drops the
// field instead of failing the whole analysis.
type wireAnalysis struct {
	models.WordAnalysis
	TextbookInfo json.RawMessage `json:"textbookInfo"`
}

// ParseAnalysis extracts and validates a WordAnalysis from free-form model output.
func ParseAnalysis(raw string) (*models.WordAnalysis, error) {
	text := ExtractJSON(raw)
	if text == "" {
		return nil, &ParseError{Err: errors.New("empty response")}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, &ParseError{Err: err}
	}
	var missing []string
	for _, name := range RequiredFields {
		v, ok := fields[name]
		if !ok || isNull(v) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{Missing: missing, Err: errors.New("incomplete analysis")}
	}

	var w wireAnalysis
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return nil, &ParseError{Err: err}
	}
	analysis := w.WordAnalysis
	analysis.Word = strings.TrimSpace(analysis.Word)
	if analysis.Word == "" {
		return nil, &ParseError{Missing: []string{"word"}, Err: errors.New("blank word")}
	}
	analysis.Difficulty = normalizeDifficulty(analysis.Difficulty)
	analysis.TextbookInfo = decodeTextbookInfo(w.TextbookInfo)
	if analysis.VisualPrompt == "" && len(analysis.Scenes) > 0 {
		analysis.VisualPrompt = analysis.Scenes[0].VisualPrompt
	}
	return &analysis, nil
}

// ExtractJSON returns the substring from the first '{' to the last '}'. Without
// braces it strips a surrounding code fence and returns the remainder.
func ExtractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func isNull(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

func normalizeDifficulty(d string) string {
	d = strings.TrimSpace(d)
	for _, known := range []string{models.DifficultyBeginner, models.DifficultyIntermediate, models.DifficultyAdvanced} {
		if strings.EqualFold(d, known) {
			return known
		}
	}
	if d != "" {
		log.Warn().Str("difficulty", d).Msg("Unknown difficulty in analysis, dropping it")
	}
	return ""
}

func decodeTextbookInfo(raw json.RawMessage) *models.TextbookInfo {
	if isNull(raw) {
		return nil
	}
	var tb models.TextbookInfo
	if err := json.Unmarshal(raw, &tb); err != nil {
		log.Warn().Err(err).Msg("Malformed textbookInfo in analysis, dropping it")
		return nil
	}
	if tb.Grade == "" && tb.Unit == "" && len(tb.ExamPoints) == 0 {
		return nil
	}
	return &tb
}
