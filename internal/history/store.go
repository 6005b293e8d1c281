package history

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/wordtales/internal/models"
)

// DefaultLimit is the number of words kept in history.
const DefaultLimit = 50

// Store keeps the learner's analyzed words, favorites and last quiz result.
// Words are unique ignoring case; the most recent entry is first.
type Store struct {
	mu        sync.RWMutex
	limit     int
	words     []models.WordAnalysis
	favorites []models.WordAnalysis
	lastQuiz  *models.QuizResult
}

// NewStore creates an empty store capped at limit words.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{limit: limit}
}

// Save moves analysis to the front of the history, replacing an earlier entry
// for the same word, and drops the oldest entries beyond the limit.
func (s *Store) Save(analysis models.WordAnalysis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.words = prepend(s.words, *analysis.Clone())
	if len(s.words) > s.limit {
		s.words = s.words[:s.limit]
	}
	log.Debug().Str("word", analysis.Word).Int("history_size", len(s.words)).Msg("Word saved to history")
}

// List returns the history, most recent first.
func (s *Store) List() []models.WordAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.words)
}

// Find returns the stored analysis of word.
func (s *Store) Find(word string) (models.WordAnalysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.words, word); i >= 0 {
		return *s.words[i].Clone(), true
	}
	if i := indexOf(s.favorites, word); i >= 0 {
		return *s.favorites[i].Clone(), true
	}
	return models.WordAnalysis{}, false
}

// Clear empties the history and the last quiz result. Favorites are kept.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.words = nil
	s.lastQuiz = nil
}

// ToggleFavorite adds analysis to the favorites, or removes it when it is
// already there. It returns whether the word is a favorite afterwards.
func (s *Store) ToggleFavorite(analysis models.WordAnalysis) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.favorites, analysis.Word); i >= 0 {
		s.favorites = append(s.favorites[:i], s.favorites[i+1:]...)
		return false
	}
	s.favorites = prepend(s.favorites, *analysis.Clone())
	return true
}

// IsFavorite reports whether word is a favorite.
func (s *Store) IsFavorite(word string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return indexOf(s.favorites, word) >= 0
}

// Favorites returns the favorites, most recently added first.
func (s *Store) Favorites() []models.WordAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.favorites)
}

// SaveQuizResult replaces the last quiz result.
func (s *Store) SaveQuizResult(r models.QuizResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuiz = &r
}

// LastQuizResult returns the last saved quiz result, if any.
func (s *Store) LastQuizResult() (models.QuizResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastQuiz == nil {
		return models.QuizResult{}, false
	}
	return *s.lastQuiz, true
}

func indexOf(list []models.WordAnalysis, word string) int {
	word = strings.TrimSpace(word)
	for i := range list {
		if strings.EqualFold(list[i].Word, word) {
			return i
		}
	}
	return -1
}

// prepend puts item first and removes any other entry for the same word.
func prepend(list []models.WordAnalysis, item models.WordAnalysis) []models.WordAnalysis {
	out := make([]models.WordAnalysis, 0, len(list)+1)
	out = append(out, item)
	for _, w := range list {
		if !item.SameWord(&w) {
			out = append(out, w)
		}
	}
	return out
}

func cloneAll(list []models.WordAnalysis) []models.WordAnalysis {
	out := make([]models.WordAnalysis, len(list))
	for i := range list {
		out[i] = *list[i].Clone()
	}
	return out
}
