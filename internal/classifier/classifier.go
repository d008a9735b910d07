package classifier

import (
	"context"
	"strings"
	"unicode"

	"github.com/xaenox/interview-ranker/internal/models"
	"github.com/xaenox/interview-ranker/internal/segment"
)

// StatusClassifier reports which bank questions have been asked and fully
// answered. Every call sees the whole transcript and returns complete sets.
type StatusClassifier interface {
	Classify(ctx context.Context, conversation []models.Message, bank []models.Question) (*models.Analysis, error)
}

// AnswerRater scores one question's exchange on a 0-10 scale.
type AnswerRater interface {
	Rate(ctx context.Context, question models.Question, conversationSegment []models.Message) (*models.Rating, error)
}

const (
	MinRating = 0.0
	MaxRating = 10.0
)

// SimpleClassifier works offline from transcript text alone
type SimpleClassifier struct {
	minAnswerWords int
}

func NewSimpleClassifier(minAnswerWords int) *SimpleClassifier {
	if minAnswerWords <= 0 {
		minAnswerWords = 12
	}
	return &SimpleClassifier{
		minAnswerWords: minAnswerWords,
	}
}

// Classify treats a question as asked once an interviewer message renders it
// and as answered once the respondent has said enough inside its segment.
func (c *SimpleClassifier) Classify(ctx context.Context, conversation []models.Message, bank []models.Question) (*models.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	asked := make([]models.Question, 0, len(bank))
	for _, q := range bank {
		if segment.FindStart(conversation, q.Text, 0) >= 0 {
			asked = append(asked, q)
		}
	}
	order := segment.OrderByAsk(conversation, asked)

	result := &models.Analysis{
		AskedQuestions:    []int{},
		AnsweredQuestions: []int{},
	}
	for _, q := range order {
		result.AskedQuestions = append(result.AskedQuestions, q.ID)
		if respondentWords(segment.Extract(conversation, q, order)) >= c.minAnswerWords {
			result.AnsweredQuestions = append(result.AnsweredQuestions, q.ID)
		}
	}
	return result, nil
}

func respondentWords(msgs []models.Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role.IsRespondent() {
			n += len(strings.Fields(m.Content))
		}
	}
	return n
}

// SimpleRater scores answers with surface heuristics
type SimpleRater struct{}

func NewSimpleRater() *SimpleRater {
	return &SimpleRater{}
}

var starKeywords = []string{
	"situation", "task", "action", "result", "i decided", "i led", "i built",
	"we shipped", "outcome", "learned", "because", "so that",
}

func (r *SimpleRater) Rate(ctx context.Context, question models.Question, conversationSegment []models.Message) (*models.Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var words []string
	for _, m := range conversationSegment {
		if m.Role.IsRespondent() {
			words = append(words, strings.Fields(m.Content)...)
		}
	}
	if len(words) == 0 {
		return &models.Rating{}, nil
	}

	concrete := 0
	distinct := make(map[string]struct{}, len(words))
	for i, w := range words {
		trimmed := strings.TrimFunc(w, unicode.IsPunct)
		if trimmed == "" {
			continue
		}
		distinct[strings.ToLower(trimmed)] = struct{}{}
		first := []rune(trimmed)[0]
		if unicode.IsDigit(first) || (i > 0 && unicode.IsUpper(first)) {
			concrete++
		}
	}

	text := strings.ToLower(strings.Join(words, " "))
	star := 0
	for _, kw := range starKeywords {
		if strings.Contains(text, kw) {
			star++
		}
	}

	rating := models.Rating{
		Specificity:        float64(concrete) * 2,
		Depth:              float64(len(words)) / 15,
		BehavioralEvidence: float64(star) * 2,
		Novelty:            float64(len(distinct)) / float64(len(words)) * 10,
	}
	rating = rating.Clamp(MinRating, MaxRating)
	rating.OverallScore = (rating.Specificity + rating.Depth + rating.BehavioralEvidence + rating.Novelty) / 4
	return &rating, nil
}
