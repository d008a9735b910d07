package ledger

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/interview-ranker/internal/models"
)

func question(id int, score float64, count int, status models.QuestionStatus) models.Question {
	return models.Question{
		ID:            id,
		Text:          "question",
		BaselineScore: score,
		Score:         score,
		LastScore:     score,
		RatingCount:   count,
		Status:        status,
	}
}

func TestApply_WeightedAverage(t *testing.T) {
	l := New([]models.Question{question(1, 50, 2, models.StatusActive)})

	u, err := l.Apply(1, 80)
	require.NoError(t, err)

	assert.InDelta(t, 60.0, u.Question.Score, 1e-9)
	assert.Equal(t, 50.0, u.Question.LastScore)
	assert.Equal(t, 3, u.Question.RatingCount)
	assert.Empty(t, u.Retired)
}

func TestApply_FirstRatingReplacesBaseline(t *testing.T) {
	l := New([]models.Question{question(1, 50, 0, models.StatusActive)})

	u, err := l.Apply(1, 73.5)
	require.NoError(t, err)

	assert.Equal(t, 73.5, u.Question.Score)
	assert.Equal(t, 50.0, u.Question.LastScore)
	assert.Equal(t, 1, u.Question.RatingCount)
}

func TestApply_ClampsToRange(t *testing.T) {
	l := New([]models.Question{
		question(1, 50, 0, models.StatusActive),
		question(2, 50, 0, models.StatusActive),
	})

	u, err := l.Apply(1, 250)
	require.NoError(t, err)
	assert.Equal(t, 100.0, u.Question.Score)

	u, err = l.Apply(2, -40)
	require.NoError(t, err)
	assert.Equal(t, 0.0, u.Question.Score)
}

func TestApply_UnknownQuestion(t *testing.T) {
	l := New([]models.Question{question(1, 50, 0, models.StatusActive)})

	_, err := l.Apply(9, 10)
	require.ErrorIs(t, err, ErrUnknownQuestion)
}

func TestRetirement_TiesAllRetire(t *testing.T) {
	l := New([]models.Question{
		question(1, 10, 1, models.StatusActive),
		question(2, 45, 1, models.StatusActive),
		question(3, 20, 1, models.StatusActive),
	})

	// (1*20 + 0) / 2 = 10 ties question 1 at the minimum.
	u, err := l.Apply(3, 0)
	require.NoError(t, err)

	require.Len(t, u.Retired, 2)
	q1, _ := l.Get(1)
	q2, _ := l.Get(2)
	q3, _ := l.Get(3)
	assert.Equal(t, models.StatusRetired, q1.Status)
	assert.Equal(t, models.StatusActive, q2.Status)
	assert.Equal(t, models.StatusRetired, q3.Status)
}

func TestRetirement_ThresholdNotReached(t *testing.T) {
	l := New([]models.Question{
		question(1, 30, 1, models.StatusActive),
		question(2, 60, 1, models.StatusActive),
	})

	u, err := l.Apply(2, 60)
	require.NoError(t, err)
	assert.Empty(t, u.Retired)
	assert.Len(t, l.Active(), 2)
}

func TestRetirement_RetiredMinimumShieldsActive(t *testing.T) {
	l := New([]models.Question{
		question(1, 5, 1, models.StatusRetired),
		question(2, 20, 1, models.StatusActive),
	})

	u, err := l.Apply(2, 20)
	require.NoError(t, err)
	assert.Empty(t, u.Retired)
	q2, _ := l.Get(2)
	assert.Equal(t, models.StatusActive, q2.Status)
}

func TestRetirement_NewQuestionsAreNotRetired(t *testing.T) {
	l := New([]models.Question{
		question(1, 10, 0, models.StatusNew),
		question(2, 80, 1, models.StatusActive),
	})

	u, err := l.Apply(2, 80)
	require.NoError(t, err)
	assert.Empty(t, u.Retired)
	assert.Len(t, l.Active(), 2)
}

func TestRetirement_NoResurrection(t *testing.T) {
	l := New([]models.Question{
		question(1, 10, 1, models.StatusActive),
		question(2, 90, 1, models.StatusActive),
	})

	_, err := l.Apply(2, 90)
	require.NoError(t, err)
	q1, _ := l.Get(1)
	require.Equal(t, models.StatusRetired, q1.Status)

	for i := 0; i < 10; i++ {
		u, err := l.Apply(1, 100)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRetired, u.Question.Status)
	}
	q1, _ = l.Get(1)
	assert.Greater(t, q1.Score, 90.0)
	assert.Equal(t, models.StatusRetired, q1.Status)
}

func TestRetirement_CustomThreshold(t *testing.T) {
	l := New([]models.Question{
		question(1, 40, 1, models.StatusActive),
		question(2, 80, 1, models.StatusActive),
	}, WithRetirementThreshold(50))

	u, err := l.Apply(2, 80)
	require.NoError(t, err)
	require.Len(t, u.Retired, 1)
	assert.Equal(t, 1, u.Retired[0].ID)
}

func TestScoreStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	bank := make([]models.Question, 8)
	for i := range bank {
		bank[i] = question(i+1, 50, 0, models.StatusActive)
	}
	l := New(bank)

	for i := 0; i < 2000; i++ {
		id := rng.Intn(len(bank)) + 1
		before, _ := l.Get(id)
		u, err := l.Apply(id, rng.Float64()*300-100)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, u.Question.Score, 0.0)
		assert.LessOrEqual(t, u.Question.Score, 100.0)
		assert.Equal(t, before.RatingCount+1, u.Question.RatingCount)
	}
}

func TestRanked(t *testing.T) {
	l := New([]models.Question{
		question(1, 40, 0, models.StatusActive),
		question(2, 70, 0, models.StatusActive),
		question(3, 40, 0, models.StatusActive),
	})

	ranked := l.Ranked()
	ids := []int{ranked[0].ID, ranked[1].ID, ranked[2].ID}
	assert.Equal(t, []int{2, 1, 3}, ids)
}

func TestEmptyBank(t *testing.T) {
	l := New(nil)
	assert.Empty(t, l.Active())
	assert.Empty(t, l.Ranked())
	assert.Empty(t, l.Snapshot())
}

func TestReset(t *testing.T) {
	l := New([]models.Question{question(1, 50, 0, models.StatusActive)})
	_, err := l.Apply(1, 90)
	require.NoError(t, err)

	l.Reset([]models.Question{question(1, 50, 0, models.StatusActive)})
	q, ok := l.Get(1)
	require.True(t, ok)
	assert.Equal(t, 50.0, q.Score)
	assert.Equal(t, 0, q.RatingCount)
}

func TestConcurrentApply(t *testing.T) {
	bank := []models.Question{
		question(1, 50, 0, models.StatusActive),
		question(2, 50, 0, models.StatusActive),
	}
	l := New(bank)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, _ = l.Apply(id, 60)
		}(i%2 + 1)
	}
	wg.Wait()

	q1, _ := l.Get(1)
	q2, _ := l.Get(2)
	assert.Equal(t, 50, q1.RatingCount)
	assert.Equal(t, 50, q2.RatingCount)
	assert.InDelta(t, 60.0, q1.Score, 1e-9)
}
