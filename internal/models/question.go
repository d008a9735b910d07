package models

// QuestionStatus is the lifecycle status of a bank question
type QuestionStatus string

const (
	StatusActive  QuestionStatus = "active"
	StatusRetired QuestionStatus = "retired"
	StatusNew     QuestionStatus = "new"
)

// Valid reports whether s is a known status
func (s QuestionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusRetired, StatusNew:
		return true
	}
	return false
}

const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Question is an entry in the interview question bank
type Question struct {
	ID            int            `json:"id"`
	Text          string         `json:"text"`
	Strength      string         `json:"strength,omitempty"`
	BaselineScore float64        `json:"baselineScore"`
	Score         float64        `json:"score"`
	LastScore     float64        `json:"lastScore"`
	RatingCount   int            `json:"ratingCount"`
	Status        QuestionStatus `json:"status"`
}

// Eligible reports whether the question can still be asked and rated
func (q Question) Eligible() bool {
	return q.Status != StatusRetired
}

// Delta is the change applied by the most recent rating
func (q Question) Delta() float64 {
	return q.Score - q.LastScore
}

// QuestionPhase is the per-session progress of a question
type QuestionPhase string

const (
	PhaseUnasked   QuestionPhase = "unasked"
	PhaseAsked     QuestionPhase = "asked"
	PhaseAnalyzing QuestionPhase = "analyzing"
	PhaseAnswered  QuestionPhase = "answered"
)
