// Package ledger owns the running effectiveness score of every question in
// the bank and applies the retirement rule after each rating.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/xaenox/interview-ranker/internal/models"
)

// DefaultRetirementThreshold is the score below which the weakest questions
// are retired.
const DefaultRetirementThreshold = 30.0

var ErrUnknownQuestion = errors.New("unknown question")

// Update is the outcome of folding one rating into the ledger.
type Update struct {
	Question models.Question
	Retired  []models.Question
}

// Ledger is safe for concurrent use. Every Apply is a single atomic
// read-modify-write of score, count and status across the bank.
type Ledger struct {
	mu        sync.RWMutex
	questions []*models.Question
	index     map[int]*models.Question
	threshold float64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRetirementThreshold overrides DefaultRetirementThreshold.
func WithRetirementThreshold(t float64) Option {
	return func(l *Ledger) {
		l.threshold = t
	}
}

// New creates a ledger seeded with a copy of questions.
func New(questions []models.Question, opts ...Option) *Ledger {
	l := &Ledger{threshold: DefaultRetirementThreshold}
	for _, opt := range opts {
		opt(l)
	}
	l.Reset(questions)
	return l
}

// Reset discards the current bank and replaces it with a copy of questions.
func (l *Ledger) Reset(questions []models.Question) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.questions = make([]*models.Question, 0, len(questions))
	l.index = make(map[int]*models.Question, len(questions))
	for _, q := range questions {
		q.Score = models.Clamp(q.Score, models.MinScore, models.MaxScore)
		l.questions = append(l.questions, &q)
		l.index[q.ID] = &q
	}
}

// Apply folds rating, on the 0-100 scale, into the question's weighted
// running average and then re-evaluates retirement across the bank.
func (l *Ledger) Apply(id int, rating float64) (Update, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q, ok := l.index[id]
	if !ok {
		return Update{}, fmt.Errorf("apply rating to question %d: %w", id, ErrUnknownQuestion)
	}

	n := float64(q.RatingCount)
	next := rating
	if q.RatingCount > 0 {
		next = (n*q.Score + rating) / (n + 1)
	}

	q.LastScore = q.Score
	q.Score = models.Clamp(next, models.MinScore, models.MaxScore)
	q.RatingCount++

	retired := l.retireLowest()
	return Update{Question: *q, Retired: retired}, nil
}

// retireLowest retires every active question whose score equals the bank
// minimum when that minimum is below the threshold. Equality is exact.
func (l *Ledger) retireLowest() []models.Question {
	lowest := models.MaxScore
	for _, q := range l.questions {
		if q.Score < lowest {
			lowest = q.Score
		}
	}
	if lowest >= l.threshold {
		return nil
	}

	var retired []models.Question
	for _, q := range l.questions {
		if q.Score == lowest && q.Status == models.StatusActive {
			q.Status = models.StatusRetired
			retired = append(retired, *q)
		}
	}
	return retired
}

// Get returns a copy of the question with the given ID.
func (l *Ledger) Get(id int) (models.Question, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	q, ok := l.index[id]
	if !ok {
		return models.Question{}, false
	}
	return *q, true
}

// Active returns the questions that are not retired, in bank order.
func (l *Ledger) Active() []models.Question {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Question, 0, len(l.questions))
	for _, q := range l.questions {
		if q.Eligible() {
			out = append(out, *q)
		}
	}
	return out
}

// Snapshot returns every question in bank order.
func (l *Ledger) Snapshot() []models.Question {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Question, len(l.questions))
	for i, q := range l.questions {
		out[i] = *q
	}
	return out
}

// Ranked returns every question sorted by descending score. Ties keep bank
// order.
func (l *Ledger) Ranked() []models.Question {
	out := l.Snapshot()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
