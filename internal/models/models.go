package models

import (
	"strings"
	"time"
)

// Difficulty levels accepted from the analysis model
const (
	DifficultyBeginner     = "Beginner"
	DifficultyIntermediate = "Intermediate"
	DifficultyAdvanced     = "Advanced"
)

// RootInfo is one root, prefix or suffix of a word
type RootInfo struct {
	Root     string   `json:"root"`
	Meaning  string   `json:"meaning"`
	Examples []string `json:"examples"`
}

// StoryScene is one picture-book beat of the story
type StoryScene struct {
	Narrative    string `json:"narrative"`
	VisualPrompt string `json:"visualPrompt"`
}

// TextbookInfo places a word in the junior high curriculum
type TextbookInfo struct {
	Grade      string   `json:"grade"`
	Unit       string   `json:"unit"`
	ExamPoints []string `json:"examPoints"`
}

// WordAnalysis is the validated result of a text analysis
type WordAnalysis struct {
	Word              string        `json:"word"`
	Definition        string        `json:"definition"`
	Difficulty        string        `json:"difficulty,omitempty"` // Beginner, Intermediate, Advanced
	Phonetic          string        `json:"phonetic"`
	Etymology         string        `json:"etymology"`
	PronunciationTips string        `json:"pronunciationTips"`
	Roots             []RootInfo    `json:"roots"`
	Synonyms          []string      `json:"synonyms"`
	Antonyms          []string      `json:"antonyms"`
	Story             string        `json:"story"` // full narrative, kept alongside scenes
	Scenes            []StoryScene  `json:"scenes,omitempty"`
	MnemonicChant     string        `json:"mnemonicChant"`
	VisualPrompt      string        `json:"visualPrompt"` // fallback prompt, first scene's prompt
	TextbookInfo      *TextbookInfo `json:"textbookInfo,omitempty"`
}

// SceneCount returns the number of image slots for the analysis (at least one).
func (w *WordAnalysis) SceneCount() int {
	if len(w.Scenes) == 0 {
		return 1
	}
	return len(w.Scenes)
}

// ImagePrompts returns one prompt per image slot.
func (w *WordAnalysis) ImagePrompts() []string {
	if len(w.Scenes) == 0 {
		return []string{w.VisualPrompt}
	}
	prompts := make([]string, len(w.Scenes))
	for i, s := range w.Scenes {
		prompts[i] = s.VisualPrompt
	}
	return prompts
}

// PromptAt returns the image prompt for slot i, or "" when i is out of range.
func (w *WordAnalysis) PromptAt(i int) string {
	prompts := w.ImagePrompts()
	if i < 0 || i >= len(prompts) {
		return ""
	}
	return prompts[i]
}

// SameWord reports whether both analyses describe the same word, ignoring case.
func (w *WordAnalysis) SameWord(other *WordAnalysis) bool {
	if w == nil || other == nil {
		return false
	}
	return strings.EqualFold(w.Word, other.Word)
}

// Clone returns a deep copy of the analysis
func (w *WordAnalysis) Clone() *WordAnalysis {
	if w == nil {
		return nil
	}
	c := *w
	if w.Roots != nil {
		c.Roots = make([]RootInfo, len(w.Roots))
		for i, r := range w.Roots {
			r.Examples = append([]string(nil), r.Examples...)
			c.Roots[i] = r
		}
	}
	c.Synonyms = append([]string(nil), w.Synonyms...)
	c.Antonyms = append([]string(nil), w.Antonyms...)
	if w.Scenes != nil {
		c.Scenes = append([]StoryScene(nil), w.Scenes...)
	}
	if w.TextbookInfo != nil {
		tb := *w.TextbookInfo
		tb.ExamPoints = append([]string(nil), w.TextbookInfo.ExamPoints...)
		c.TextbookInfo = &tb
	}
	return &c
}

// QuizResult is the outcome of one review session
type QuizResult struct {
	Date           time.Time `json:"date"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	CorrectCount   int       `json:"correctCount"`
}
