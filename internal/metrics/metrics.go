package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the ranker. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	EventsTotal          *prometheus.CounterVec
	ClassificationsTotal *prometheus.CounterVec
	ClassifyDuration     prometheus.Histogram
	RatingsTotal         *prometheus.CounterVec
	RatingDuration       prometheus.Histogram
	RatingsInFlight      prometheus.Gauge
	ActiveQuestions      prometheus.Gauge
	RetirementsTotal     prometheus.Counter
	QuestionScore        *prometheus.GaugeVec
}

// NewMetrics registers all collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranker_events_total",
				Help: "Transport events received by type",
			},
			[]string{"type"},
		),
		ClassificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranker_classifications_total",
				Help: "Question status classification cycles by result",
			},
			[]string{"result"},
		),
		ClassifyDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ranker_classify_duration_seconds",
				Help:    "Duration of question status classification calls",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to 12.8s
			},
		),
		RatingsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranker_ratings_total",
				Help: "Answer ratings by result",
			},
			[]string{"result"},
		),
		RatingDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ranker_rating_duration_seconds",
				Help:    "Duration of answer rating calls",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
			},
		),
		RatingsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "ranker_ratings_in_flight",
				Help: "Questions currently being rated",
			},
		),
		ActiveQuestions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "ranker_active_questions",
				Help: "Questions that are not retired",
			},
		),
		RetirementsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "ranker_retirements_total",
				Help: "Questions retired from the active bank",
			},
		),
		QuestionScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ranker_question_score",
				Help: "Current effectiveness score per question",
			},
			[]string{"question_id"},
		),
	}
}

func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(eventType).Inc()
}

func (m *Metrics) RecordClassification(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(result).Inc()
	if d > 0 {
		m.ClassifyDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) RecordRating(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.RatingsTotal.WithLabelValues(result).Inc()
	m.RatingDuration.Observe(d.Seconds())
}

func (m *Metrics) SetInFlight(n int) {
	if m == nil {
		return
	}
	m.RatingsInFlight.Set(float64(n))
}

func (m *Metrics) SetActiveQuestions(n int) {
	if m == nil {
		return
	}
	m.ActiveQuestions.Set(float64(n))
}

func (m *Metrics) RecordScore(questionID string, score float64, retired int) {
	if m == nil {
		return
	}
	m.QuestionScore.WithLabelValues(questionID).Set(score)
	m.RetirementsTotal.Add(float64(retired))
}
