// Package segment locates the slice of a transcript that belongs to one
// question's ask-and-answer exchange.
package segment

import (
	"sort"
	"strings"

	"github.com/xaenox/interview-ranker/internal/models"
)

const (
	// MaxMessages bounds a segment when no next-question boundary is found.
	MaxMessages = 30

	excerptLength = 100
)

// FindStart returns the index of the first interviewer message at or after
// from that renders the question text, or -1.
func FindStart(msgs []models.Message, text string, from int) int {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return -1
	}
	if from < 0 {
		from = 0
	}
	for i := from; i < len(msgs); i++ {
		if !msgs[i].Role.IsInterviewer() {
			continue
		}
		if matches(msgs[i].Content, needle) {
			return i
		}
	}
	return -1
}

func matches(content, needle string) bool {
	lower := strings.ToLower(content)
	if strings.Contains(lower, needle) {
		return true
	}
	excerpt := strings.TrimSpace(leading(lower, excerptLength))
	return excerpt != "" && strings.Contains(needle, excerpt)
}

func leading(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Extract returns the messages of target's exchange. askOrder lists the asked
// questions in the order they were put to the respondent; the segment ends
// where the question after target begins. An empty result means the question
// could not be located.
func Extract(msgs []models.Message, target models.Question, askOrder []models.Question) []models.Message {
	start := FindStart(msgs, target.Text, 0)
	if start < 0 {
		return nil
	}

	end := start + MaxMessages
	if end > len(msgs) {
		end = len(msgs)
	}

	if next, ok := nextAsked(target.ID, askOrder); ok {
		if b := FindStart(msgs, next.Text, start+1); b >= 0 && b < end {
			end = b
		}
	}

	out := make([]models.Message, end-start)
	copy(out, msgs[start:end])
	return out
}

func nextAsked(id int, askOrder []models.Question) (models.Question, bool) {
	for i, q := range askOrder {
		if q.ID == id && i+1 < len(askOrder) {
			return askOrder[i+1], true
		}
	}
	return models.Question{}, false
}

// OrderByAsk sorts questions by the position at which they were first asked.
// Questions that cannot be located go last, ordered by ID.
func OrderByAsk(msgs []models.Message, questions []models.Question) []models.Question {
	type anchored struct {
		q   models.Question
		pos int
	}
	items := make([]anchored, len(questions))
	for i, q := range questions {
		items[i] = anchored{q: q, pos: FindStart(msgs, q.Text, 0)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case a.pos < 0 && b.pos < 0:
			return a.q.ID < b.q.ID
		case a.pos < 0:
			return false
		case b.pos < 0:
			return true
		case a.pos != b.pos:
			return a.pos < b.pos
		}
		return a.q.ID < b.q.ID
	})

	ordered := make([]models.Question, len(items))
	for i, it := range items {
		ordered[i] = it.q
	}
	return ordered
}
