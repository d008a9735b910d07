// Package bank loads the static question bank that seeds every call session.
package bank

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xaenox/interview-ranker/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultBaseline is the starting score of a question that declares none.
const DefaultBaseline = 50.0

type file struct {
	Questions []entry `yaml:"questions"`
}

type entry struct {
	ID          int      `yaml:"id"`
	Text        string   `yaml:"text"`
	Strength    string   `yaml:"strength"`
	Baseline    *float64 `yaml:"baseline"`
	Score       *float64 `yaml:"score"`
	RatingCount int      `yaml:"rating_count"`
	Status      string   `yaml:"status"`
}

// LoadFile reads and validates a YAML question bank.
func LoadFile(path string) ([]models.Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question bank: %w", err)
	}
	defer f.Close()

	questions, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("question bank %s: %w", path, err)
	}
	return questions, nil
}

// Decode parses and validates a YAML question bank.
func Decode(r io.Reader) ([]models.Question, error) {
	var doc file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no questions defined")
		}
		return nil, fmt.Errorf("decode: %w", err)
	}

	if len(doc.Questions) == 0 {
		return nil, errors.New("no questions defined")
	}

	seen := make(map[int]struct{}, len(doc.Questions))
	questions := make([]models.Question, 0, len(doc.Questions))
	for i, e := range doc.Questions {
		q, err := e.toQuestion()
		if err != nil {
			return nil, fmt.Errorf("question #%d: %w", i+1, err)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("question #%d: duplicate id %d", i+1, q.ID)
		}
		seen[q.ID] = struct{}{}
		questions = append(questions, q)
	}
	return questions, nil
}

func (e entry) toQuestion() (models.Question, error) {
	if e.ID <= 0 {
		return models.Question{}, fmt.Errorf("id must be positive, got %d", e.ID)
	}
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return models.Question{}, fmt.Errorf("question %d has no text", e.ID)
	}
	if e.RatingCount < 0 {
		return models.Question{}, fmt.Errorf("question %d has negative rating_count", e.ID)
	}

	baseline := DefaultBaseline
	if e.Baseline != nil {
		baseline = *e.Baseline
	}
	score := baseline
	if e.Score != nil {
		score = *e.Score
	}
	for name, v := range map[string]float64{"baseline": baseline, "score": score} {
		if v < models.MinScore || v > models.MaxScore {
			return models.Question{}, fmt.Errorf("question %d %s %v outside [0,100]", e.ID, name, v)
		}
	}

	status := models.StatusActive
	if e.Status != "" {
		status = models.QuestionStatus(strings.ToLower(e.Status))
		if !status.Valid() {
			return models.Question{}, fmt.Errorf("question %d has unknown status %q", e.ID, e.Status)
		}
	}

	return models.Question{
		ID:            e.ID,
		Text:          text,
		Strength:      e.Strength,
		BaselineScore: baseline,
		Score:         score,
		LastScore:     score,
		RatingCount:   e.RatingCount,
		Status:        status,
	}, nil
}
