package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordEvent("conversation-update")
	m.RecordEvent("conversation-update")
	m.RecordClassification("success", 200*time.Millisecond)
	m.RecordClassification("skipped", 0)
	m.RecordRating("error", time.Second)
	m.SetInFlight(2)
	m.SetActiveQuestions(5)
	m.RecordScore("3", 42.5, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("conversation-update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassificationsTotal.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RatingsTotal.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RatingsInFlight))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ActiveQuestions))
	assert.Equal(t, 42.5, testutil.ToFloat64(m.QuestionScore.WithLabelValues("3")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RetirementsTotal))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordEvent("x")
		m.RecordClassification("success", time.Second)
		m.RecordRating("success", time.Second)
		m.SetInFlight(1)
		m.SetActiveQuestions(1)
		m.RecordScore("1", 1, 1)
	})
}
