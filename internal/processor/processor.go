// Package processor turns a stream of transcript events into question
// ratings. It debounces transcript growth, asks a classifier which questions
// have been answered, rates each newly answered question at most once at a
// time, and folds the results into the scoring ledger.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/interview-ranker/internal/classifier"
	"github.com/xaenox/interview-ranker/internal/ledger"
	"github.com/xaenox/interview-ranker/internal/metrics"
	"github.com/xaenox/interview-ranker/internal/models"
	"github.com/xaenox/interview-ranker/internal/segment"
	"go.uber.org/zap"
)

const (
	// RatingScale converts 0-10 rater output to the ledger's 0-100 scale.
	RatingScale = 10.0

	DefaultDebounce = 500 * time.Millisecond
	DefaultTimeout  = 30 * time.Second
)

var (
	ErrUnknownEvent  = errors.New("unknown event")
	ErrSessionActive = errors.New("call session already active")
	ErrClosed        = errors.New("processor closed")
)

// Observer is notified of session lifecycle and applied ratings. Calls are
// made from a single goroutine, in event order, after the state change.
type Observer interface {
	SessionStarted(ctx context.Context, session models.SessionInfo)
	RatingApplied(ctx context.Context, event models.RatingEvent)
	SessionEnded(ctx context.Context, summary models.SessionSummary)
}

// Option configures a Processor.
type Option func(*Processor)

func WithDebounce(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.debounce = d
		}
	}
}

// WithTimeout bounds each classifier, rater and observer call.
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithObserver(o ...Observer) Option {
	return func(p *Processor) {
		p.observers = append(p.observers, o...)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

type ratingResult struct {
	generation uint64
	sessionID  string
	question   models.Question
	rating     *models.Rating
	err        error
	elapsed    time.Duration
}

type Processor struct {
	classifier classifier.StatusClassifier
	rater      classifier.AnswerRater
	ledger     *ledger.Ledger
	seed       []models.Question
	observers  []Observer
	notify     *dispatcher
	metrics    *metrics.Metrics
	logger     *zap.Logger
	debounce   time.Duration
	timeout    time.Duration

	// cycleMu serialises classification cycles so that analysis state only
	// moves forward through the transcript.
	cycleMu sync.Mutex

	mu      sync.Mutex
	session session
	closed  bool

	results  chan ratingResult
	inflight sync.WaitGroup
	done     chan struct{}
}

// New creates a processor. The ledger is re-seeded from seed at every call
// start.
func New(clf classifier.StatusClassifier, rater classifier.AnswerRater, l *ledger.Ledger, seed []models.Question, logger *zap.Logger, opts ...Option) *Processor {
	p := &Processor{
		classifier: clf,
		rater:      rater,
		ledger:     l,
		seed:       append([]models.Question(nil), seed...),
		logger:     logger,
		debounce:   DefaultDebounce,
		timeout:    DefaultTimeout,
		session:    newSession("", 0, PhaseIdle, time.Time{}),
		results:    make(chan ratingResult, 64),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.notify = newDispatcher(p.observers, p.timeout)
	go p.applyLoop()
	return p
}

// Handle dispatches one transport event. It never blocks on remote calls.
func (p *Processor) Handle(ctx context.Context, ev Event) error {
	if ev == nil {
		return fmt.Errorf("%w: nil", ErrUnknownEvent)
	}
	p.metrics.RecordEvent(ev.Type())

	switch e := ev.(type) {
	case CallStart:
		return p.startCall()
	case CallEnd:
		return p.endCall(e.Reason, e.SessionID)
	case ConversationUpdate:
		return p.conversationUpdated(e.Conversation)
	case SpeechStart:
		p.setSpeaker(e.Role, true)
		return nil
	case SpeechEnd:
		p.setSpeaker(e.Role, false)
		return nil
	case TransportError:
		p.logger.Warn("Transport reported an error",
			zap.String("session_id", p.SessionID()),
			zap.String("error", e.Message))
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}

func (p *Processor) startCall() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.session.phase == PhaseActive {
		p.mu.Unlock()
		return ErrSessionActive
	}

	generation := p.session.generation + 1
	p.session = newSession(uuid.New().String(), generation, PhaseActive, time.Now())
	p.ledger.Reset(p.seed)
	info := p.session.info()
	active := len(p.ledger.Active())
	p.notify.post(func(ctx context.Context, o Observer) { o.SessionStarted(ctx, info) })
	p.mu.Unlock()

	p.metrics.SetActiveQuestions(active)
	p.metrics.SetInFlight(0)
	p.logger.Info("Call started",
		zap.String("session_id", info.ID),
		zap.Uint64("generation", generation),
		zap.Int("active_questions", active))
	return nil
}

func (p *Processor) endCall(reason, sessionID string) error {
	p.mu.Lock()
	s := &p.session
	if s.phase != PhaseActive {
		p.mu.Unlock()
		return nil
	}
	if sessionID != "" && sessionID != s.id {
		p.mu.Unlock()
		p.logger.Info("Ignoring call end for another session",
			zap.String("session_id", sessionID),
			zap.String("active_session_id", s.id))
		return nil
	}

	s.stopTimer()
	summary := models.SessionSummary{
		SessionInfo: s.info(),
		EndedAt:     time.Now(),
		Asked:       sortedIDs(s.asked),
		Answered:    sortedIDs(s.answered),
		Questions:   p.ledger.Ranked(),
	}
	abandoned := len(s.inFlight)
	s.end()
	p.notify.post(func(ctx context.Context, o Observer) { o.SessionEnded(ctx, summary) })
	p.mu.Unlock()

	p.metrics.SetInFlight(0)
	p.logger.Info("Call ended",
		zap.String("session_id", summary.ID),
		zap.String("reason", reason),
		zap.Int("asked", len(summary.Asked)),
		zap.Int("answered", len(summary.Answered)),
		zap.Int("abandoned_ratings", abandoned))
	return nil
}

func (p *Processor) conversationUpdated(conversation []models.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	s := &p.session
	if s.phase != PhaseActive {
		p.logger.Debug("Ignoring conversation update outside a call",
			zap.Int("messages", len(conversation)))
		return nil
	}
	if len(conversation) <= s.lastLength {
		return nil
	}

	s.pending = append([]models.Message(nil), conversation...)
	s.stopTimer()
	generation := s.generation
	s.timer = time.AfterFunc(p.debounce, func() {
		p.runCycle(generation)
	})
	return nil
}

func (p *Processor) setSpeaker(role models.Role, speaking bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case speaking:
		p.session.speaker = role
	case p.session.speaker == role:
		p.session.speaker = ""
	}
}

type ratingJob struct {
	question models.Question
	segment  []models.Message
}

// runCycle classifies the latest pending transcript and launches ratings for
// newly answered questions.
func (p *Processor) runCycle(generation uint64) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	p.mu.Lock()
	s := &p.session
	if p.closed || s.generation != generation || s.phase != PhaseActive {
		p.mu.Unlock()
		return
	}
	conversation := s.pending
	sessionID := s.id
	if len(conversation) <= s.lastLength {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	// Live ledger state, so retirements since the event are honoured.
	active := p.ledger.Active()
	p.metrics.SetActiveQuestions(len(active))
	if len(active) == 0 {
		p.metrics.RecordClassification("skipped", 0)
		p.logger.Debug("No active questions, skipping analysis",
			zap.String("session_id", sessionID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	started := time.Now()
	analysis, err := p.classifier.Classify(ctx, conversation, active)
	cancel()
	if err != nil {
		p.metrics.RecordClassification("error", time.Since(started))
		p.logger.Warn("Question analysis failed, will retry on next update",
			zap.Error(err),
			zap.String("session_id", sessionID),
			zap.Int("messages", len(conversation)))
		return
	}
	p.metrics.RecordClassification("success", time.Since(started))

	jobs, order := p.recordAnalysis(generation, conversation, analysis)
	for _, job := range jobs {
		job.segment = segment.Extract(conversation, job.question, order)
		if len(job.segment) == 0 {
			p.forgetAnswer(generation, job.question.ID)
			p.logger.Info("Could not locate question in transcript, skipping rating",
				zap.String("session_id", sessionID),
				zap.Int("question_id", job.question.ID))
			continue
		}

		p.inflight.Add(1)
		go p.rate(generation, sessionID, job)
	}
}

// recordAnalysis replaces the asked/answered sets and claims the in-flight
// marker for every newly answered question.
func (p *Processor) recordAnalysis(generation uint64, conversation []models.Message, analysis *models.Analysis) ([]ratingJob, []models.Question) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := &p.session
	if s.generation != generation || s.phase != PhaseActive {
		return nil, nil
	}

	previous := s.answered
	s.lastLength = len(conversation)
	s.asked = toSet(analysis.AskedQuestions)
	s.answered = toSet(analysis.AnsweredQuestions)

	asked := make([]models.Question, 0, len(s.asked))
	for id := range s.asked {
		if q, ok := p.ledger.Get(id); ok {
			asked = append(asked, q)
		}
	}
	order := segment.OrderByAsk(conversation, asked)
	s.askOrder = s.askOrder[:0]
	for _, q := range order {
		s.askOrder = append(s.askOrder, q.ID)
	}
	s.updateCurrent()

	var jobs []ratingJob
	for id := range s.answered {
		if _, known := previous[id]; known {
			continue
		}
		if _, busy := s.inFlight[id]; busy {
			p.logger.Debug("Rating already in flight",
				zap.String("session_id", s.id),
				zap.Int("question_id", id))
			continue
		}
		q, ok := p.ledger.Get(id)
		if !ok {
			continue
		}
		s.inFlight[id] = struct{}{}
		jobs = append(jobs, ratingJob{question: q})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].question.ID < jobs[j].question.ID })
	p.metrics.SetInFlight(len(s.inFlight))

	p.logger.Debug("Question analysis applied",
		zap.String("session_id", s.id),
		zap.Int("messages", len(conversation)),
		zap.Ints("asked", analysis.AskedQuestions),
		zap.Ints("answered", analysis.AnsweredQuestions),
		zap.Int("newly_answered", len(jobs)))
	return jobs, order
}

// forgetAnswer releases a question whose segment could not be found so that
// a later cycle sees it as newly answered again.
func (p *Processor) forgetAnswer(generation uint64, id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := &p.session
	if s.generation != generation {
		return
	}
	delete(s.inFlight, id)
	delete(s.answered, id)
	p.metrics.SetInFlight(len(s.inFlight))
}

func (p *Processor) rate(generation uint64, sessionID string, job ratingJob) {
	defer p.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	started := time.Now()
	rating, err := p.rater.Rate(ctx, job.question, job.segment)
	if err == nil && rating == nil {
		err = errors.New("rater returned no rating")
	}
	p.results <- ratingResult{
		generation: generation,
		sessionID:  sessionID,
		question:   job.question,
		rating:     rating,
		err:        err,
		elapsed:    time.Since(started),
	}
}

// applyLoop is the single writer that folds rating results into the ledger.
func (p *Processor) applyLoop() {
	defer close(p.done)
	for res := range p.results {
		p.apply(res)
	}
}

func (p *Processor) apply(res ratingResult) {
	id := res.question.ID

	p.mu.Lock()
	s := &p.session
	current := res.generation == s.generation
	if current {
		delete(s.inFlight, id)
		p.metrics.SetInFlight(len(s.inFlight))
	}

	if res.err != nil {
		p.mu.Unlock()
		p.metrics.RecordRating("error", res.elapsed)
		p.logger.Warn("Answer rating failed",
			zap.Error(res.err),
			zap.String("session_id", res.sessionID),
			zap.Int("question_id", id))
		return
	}
	if !current || s.phase != PhaseActive {
		p.mu.Unlock()
		p.metrics.RecordRating("stale", res.elapsed)
		p.logger.Info("Discarding rating from a finished session",
			zap.String("session_id", res.sessionID),
			zap.Int("question_id", id))
		return
	}

	rating := res.rating.Clamp(classifier.MinRating, classifier.MaxRating).Scale(RatingScale)
	update, err := p.ledger.Apply(id, rating.OverallScore)
	if err != nil {
		p.mu.Unlock()
		p.metrics.RecordRating("error", res.elapsed)
		p.logger.Error("Failed to apply rating",
			zap.Error(err),
			zap.String("session_id", res.sessionID),
			zap.Int("question_id", id))
		return
	}

	s.lastQuestion = &id
	s.lastRating = &rating
	event := models.RatingEvent{
		SessionID: s.id,
		Question:  update.Question,
		Rating:    rating,
		Retired:   update.Retired,
		RatedAt:   time.Now(),
	}
	p.notify.post(func(ctx context.Context, o Observer) { o.RatingApplied(ctx, event) })
	p.mu.Unlock()

	p.metrics.RecordRating("success", res.elapsed)
	p.metrics.RecordScore(strconv.Itoa(id), update.Question.Score, len(update.Retired))
	p.logger.Info("Rating applied",
		zap.String("session_id", event.SessionID),
		zap.Int("question_id", id),
		zap.Float64("overall", rating.OverallScore),
		zap.Float64("score", update.Question.Score),
		zap.Float64("last_score", update.Question.LastScore),
		zap.Int("rating_count", update.Question.RatingCount))
	for _, q := range update.Retired {
		p.logger.Info("Question retired",
			zap.String("session_id", event.SessionID),
			zap.Int("question_id", q.ID),
			zap.Float64("score", q.Score))
	}
}

// Close stops the debounce timer, waits for launched ratings to drain, stops
// the apply loop and flushes pending observer notifications.
func (p *Processor) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.session.stopTimer()
	p.mu.Unlock()

	// A cycle already past its closed check may still launch ratings.
	p.cycleMu.Lock()
	p.cycleMu.Unlock()

	p.inflight.Wait()
	close(p.results)
	<-p.done
	p.notify.close()
	return nil
}

func toSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortedIDs(set map[int]struct{}) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
