// Package cache mirrors the live question ranking of a call session into
// Redis so that dashboards can read it without going through the ranker.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xaenox/interview-ranker/internal/models"
	"go.uber.org/zap"
)

// LeaderboardEntry is one ranked question as read back from Redis
type LeaderboardEntry struct {
	QuestionID int                   `json:"questionId"`
	Score      float64               `json:"score"`
	Status     models.QuestionStatus `json:"status"`
	Rank       int                   `json:"rank"`
}

// Leaderboard keeps a ZSET of question scores and a hash of statuses per
// session. It implements the processor's Observer; Redis failures are
// logged and never reach the call path.
type Leaderboard struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewLeaderboard creates a mirror. Keys of a finished session expire after
// ttl; zero keeps them forever.
func NewLeaderboard(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Leaderboard {
	return &Leaderboard{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func scoresKey(sessionID string) string {
	return fmt.Sprintf("session:%s:questions", sessionID)
}

func statusKey(sessionID string) string {
	return fmt.Sprintf("session:%s:status", sessionID)
}

func member(id int) string {
	return strconv.Itoa(id)
}

// write queues the score and status of each question on pipe.
func write(ctx context.Context, pipe redis.Pipeliner, sessionID string, questions ...models.Question) {
	for _, q := range questions {
		pipe.ZAdd(ctx, scoresKey(sessionID), redis.Z{Score: q.Score, Member: member(q.ID)})
		pipe.HSet(ctx, statusKey(sessionID), member(q.ID), string(q.Status))
	}
}

// SessionStarted drops whatever an earlier session with the same ID left.
func (l *Leaderboard) SessionStarted(ctx context.Context, session models.SessionInfo) {
	if err := l.client.Del(ctx, scoresKey(session.ID), statusKey(session.ID)).Err(); err != nil {
		l.logger.Error("Failed to reset leaderboard",
			zap.Error(err),
			zap.String("session_id", session.ID))
	}
}

func (l *Leaderboard) RatingApplied(ctx context.Context, event models.RatingEvent) {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		write(ctx, pipe, event.SessionID, event.Question)
		write(ctx, pipe, event.SessionID, event.Retired...)
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to mirror rating",
			zap.Error(err),
			zap.String("session_id", event.SessionID),
			zap.Int("question_id", event.Question.ID))
	}
}

// SessionEnded writes the final bank and starts the expiry clock.
func (l *Leaderboard) SessionEnded(ctx context.Context, summary models.SessionSummary) {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		write(ctx, pipe, summary.ID, summary.Questions...)
		if l.ttl > 0 {
			pipe.Expire(ctx, scoresKey(summary.ID), l.ttl)
			pipe.Expire(ctx, statusKey(summary.ID), l.ttl)
		}
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to finalise leaderboard",
			zap.Error(err),
			zap.String("session_id", summary.ID))
	}
}

// Top returns up to limit questions of a session by descending score.
func (l *Leaderboard) Top(ctx context.Context, sessionID string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	results, err := l.client.ZRevRangeWithScores(ctx, scoresKey(sessionID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard %s: %w", sessionID, err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	fields := make([]string, len(results))
	for i, z := range results {
		fields[i], _ = z.Member.(string)
	}
	statuses, err := l.client.HMGet(ctx, statusKey(sessionID), fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("read statuses %s: %w", sessionID, err)
	}

	entries := make([]LeaderboardEntry, 0, len(results))
	for i, z := range results {
		id, err := strconv.Atoi(fields[i])
		if err != nil {
			continue
		}
		entry := LeaderboardEntry{QuestionID: id, Score: z.Score, Rank: len(entries) + 1}
		if s, ok := statuses[i].(string); ok {
			entry.Status = models.QuestionStatus(s)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Rank returns the 1-indexed rank of a question, or -1 when it is unknown.
func (l *Leaderboard) Rank(ctx context.Context, sessionID string, questionID int) (int64, error) {
	rank, err := l.client.ZRevRank(ctx, scoresKey(sessionID), member(questionID)).Result()
	if errors.Is(err, redis.Nil) {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	return rank + 1, nil
}
