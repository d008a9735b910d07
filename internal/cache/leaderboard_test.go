package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/interview-ranker/internal/models"
	"go.uber.org/zap"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "session:abc:questions", scoresKey("abc"))
	assert.Equal(t, "session:abc:status", statusKey("abc"))
}

// redisClient connects to REDIS_ADDR or skips the test.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLeaderboard_MirrorsSession(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	lb := NewLeaderboard(client, time.Minute, zap.NewNop())
	id := uuid.New().String()
	t.Cleanup(func() { client.Del(ctx, scoresKey(id), statusKey(id)) })

	lb.SessionStarted(ctx, models.SessionInfo{ID: id})
	lb.RatingApplied(ctx, models.RatingEvent{
		SessionID: id,
		Question:  models.Question{ID: 1, Score: 45, Status: models.StatusActive},
		Retired:   []models.Question{{ID: 2, Score: 12.5, Status: models.StatusRetired}},
	})
	lb.RatingApplied(ctx, models.RatingEvent{
		SessionID: id,
		Question:  models.Question{ID: 3, Score: 70, Status: models.StatusActive},
	})

	top, err := lb.Top(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, LeaderboardEntry{QuestionID: 3, Score: 70, Status: models.StatusActive, Rank: 1}, top[0])
	assert.Equal(t, models.StatusRetired, top[2].Status)

	rank, err := lb.Rank(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank)

	rank, err = lb.Rank(ctx, id, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), rank)

	lb.SessionEnded(ctx, models.SessionSummary{SessionInfo: models.SessionInfo{ID: id}})
	ttl, err := client.TTL(ctx, scoresKey(id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	lb.SessionStarted(ctx, models.SessionInfo{ID: id})
	top, err = lb.Top(ctx, id, 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestLeaderboard_UnreachableRedisIsLogged(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	lb := NewLeaderboard(client, 0, zap.NewNop())
	ctx := context.Background()

	assert.NotPanics(t, func() {
		lb.SessionStarted(ctx, models.SessionInfo{ID: "x"})
		lb.RatingApplied(ctx, models.RatingEvent{SessionID: "x", Question: models.Question{ID: 1}})
		lb.SessionEnded(ctx, models.SessionSummary{SessionInfo: models.SessionInfo{ID: "x"}})
	})
	_, err := lb.Top(ctx, "x", 5)
	assert.Error(t, err)
}
