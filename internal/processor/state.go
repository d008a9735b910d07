package processor

import (
	"time"

	"github.com/xaenox/interview-ranker/internal/models"
)

// Phase is the lifecycle of a call session
type Phase string

const (
	PhaseIdle   Phase = "idle"
	PhaseActive Phase = "active"
	PhaseEnded  Phase = "ended"
)

// session is the per-call derived state. The transcript itself is never
// retained beyond the snapshot waiting for the debounce timer.
type session struct {
	id         string
	generation uint64
	phase      Phase
	startedAt  time.Time

	lastLength int
	pending    []models.Message
	timer      *time.Timer

	asked    map[int]struct{}
	answered map[int]struct{}
	askOrder []int
	inFlight map[int]struct{}

	current      *int
	lastQuestion *int
	lastRating   *models.Rating
	speaker      models.Role
}

func newSession(id string, generation uint64, phase Phase, startedAt time.Time) session {
	return session{
		id:         id,
		generation: generation,
		phase:      phase,
		startedAt:  startedAt,
		asked:      make(map[int]struct{}),
		answered:   make(map[int]struct{}),
		inFlight:   make(map[int]struct{}),
	}
}

func (s *session) info() models.SessionInfo {
	return models.SessionInfo{ID: s.id, StartedAt: s.startedAt}
}

func (s *session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// end clears the derived stream state. Late ratings are rejected by phase.
func (s *session) end() {
	s.stopTimer()
	s.phase = PhaseEnded
	s.lastLength = 0
	s.pending = nil
	s.asked = make(map[int]struct{})
	s.answered = make(map[int]struct{})
	s.askOrder = nil
	s.inFlight = make(map[int]struct{})
	s.current = nil
	s.speaker = ""
}

// updateCurrent points at the most recently asked question still awaiting an
// answer.
func (s *session) updateCurrent() {
	s.current = nil
	for i := len(s.askOrder) - 1; i >= 0; i-- {
		id := s.askOrder[i]
		if _, done := s.answered[id]; !done {
			s.current = &id
			return
		}
	}
}

func (s *session) questionPhase(id int) models.QuestionPhase {
	if _, ok := s.inFlight[id]; ok {
		return models.PhaseAnalyzing
	}
	if _, ok := s.answered[id]; ok {
		return models.PhaseAnswered
	}
	if _, ok := s.asked[id]; ok {
		return models.PhaseAsked
	}
	return models.PhaseUnasked
}

// Snapshot is the read model offered to the presentation layer
type Snapshot struct {
	SessionID         string                       `json:"sessionId"`
	Phase             Phase                        `json:"phase"`
	Speaker           models.Role                  `json:"speaker,omitempty"`
	Asked             []int                        `json:"asked"`
	Answered          []int                        `json:"answered"`
	InProgress        []int                        `json:"inProgress"`
	AskOrder          []int                        `json:"askOrder"`
	CurrentQuestionID *int                         `json:"currentQuestionId"`
	LastQuestionID    *int                         `json:"lastQuestionId"`
	LastRating        *models.Rating               `json:"lastRating"`
	Phases            map[int]models.QuestionPhase `json:"phases"`
	Questions         []models.Question            `json:"questions"`
}

// Snapshot returns the current session view with the bank ranked by score.
func (p *Processor) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := &p.session
	snap := Snapshot{
		SessionID:         s.id,
		Phase:             s.phase,
		Speaker:           s.speaker,
		Asked:             sortedIDs(s.asked),
		Answered:          sortedIDs(s.answered),
		InProgress:        sortedIDs(s.inFlight),
		AskOrder:          append([]int{}, s.askOrder...),
		CurrentQuestionID: copyInt(s.current),
		LastQuestionID:    copyInt(s.lastQuestion),
		Questions:         p.ledger.Ranked(),
	}
	if s.lastRating != nil {
		r := *s.lastRating
		snap.LastRating = &r
	}
	snap.Phases = make(map[int]models.QuestionPhase, len(snap.Questions))
	for _, q := range snap.Questions {
		snap.Phases[q.ID] = s.questionPhase(q.ID)
	}
	return snap
}

// QuestionPhase reports the per-session progress of one question.
func (p *Processor) QuestionPhase(id int) models.QuestionPhase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.questionPhase(id)
}

// SessionID returns the current or most recent session ID.
func (p *Processor) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.id
}

// Questions returns the live bank ranked by descending score.
func (p *Processor) Questions() []models.Question {
	return p.ledger.Ranked()
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
