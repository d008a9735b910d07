package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/xaenox/interview-ranker/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", config.Host),
		zap.String("dbname", config.DBName))
	return storage, nil
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (s *PostgresStorage) StartSession(ctx context.Context, session models.SessionInfo) error {
	query := `INSERT INTO sessions (id, started_at) VALUES ($1, $2)`

	if _, err := s.db.ExecContext(ctx, query, session.ID, session.StartedAt); err != nil {
		return fmt.Errorf("error creating session: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecordRating(ctx context.Context, event models.RatingEvent) error {
	query := `
		INSERT INTO ratings (
			session_id, question_id, specificity, depth, behavioral_evidence, novelty,
			overall_score, score_before, score_after, rating_count, status, retired, rated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	retired := make([]int64, len(event.Retired))
	for i, q := range event.Retired {
		retired[i] = int64(q.ID)
	}

	q := event.Question
	r := event.Rating
	_, err := s.db.ExecContext(ctx, query,
		event.SessionID,
		q.ID,
		r.Specificity,
		r.Depth,
		r.BehavioralEvidence,
		r.Novelty,
		r.OverallScore,
		q.LastScore,
		q.Score,
		q.RatingCount,
		string(q.Status),
		pq.Array(retired),
		event.RatedAt,
	)
	if err != nil {
		return fmt.Errorf("error recording rating: %w", err)
	}
	return nil
}

func (s *PostgresStorage) EndSession(ctx context.Context, summary models.SessionSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE sessions SET ended_at = $1, asked = $2, answered = $3 WHERE id = $4`,
		summary.EndedAt, pq.Array(toInt64(summary.Asked)), pq.Array(toInt64(summary.Answered)), summary.ID)
	if err != nil {
		return fmt.Errorf("error ending session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session %s not found", summary.ID)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_questions (session_id, question_id, text, score, last_score, rating_count, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, question_id) DO UPDATE
		SET score = EXCLUDED.score, last_score = EXCLUDED.last_score,
		    rating_count = EXCLUDED.rating_count, status = EXCLUDED.status`)
	if err != nil {
		return fmt.Errorf("error preparing question snapshot: %w", err)
	}
	defer stmt.Close()

	for _, q := range summary.Questions {
		if _, err := stmt.ExecContext(ctx, summary.ID, q.ID, q.Text, q.Score, q.LastScore, q.RatingCount, string(q.Status)); err != nil {
			return fmt.Errorf("error saving question %d: %w", q.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing session: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	rec := &SessionRecord{}
	var endedAt sql.NullTime
	var asked, answered pq.Int64Array

	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, asked, answered FROM sessions WHERE id = $1`, sessionID,
	).Scan(&rec.Session.ID, &rec.Session.StartedAt, &endedAt, &asked, &answered)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying session: %w", err)
	}

	if endedAt.Valid {
		rec.Summary = &models.SessionSummary{
			SessionInfo: rec.Session,
			EndedAt:     endedAt.Time,
			Asked:       fromInt64(asked),
			Answered:    fromInt64(answered),
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, specificity, depth, behavioral_evidence, novelty, overall_score,
		       score_before, score_after, rating_count, status, rated_at
		FROM ratings
		WHERE session_id = $1
		ORDER BY rated_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("error querying ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ev := models.RatingEvent{SessionID: sessionID}
		var status string
		err := rows.Scan(
			&ev.Question.ID,
			&ev.Rating.Specificity,
			&ev.Rating.Depth,
			&ev.Rating.BehavioralEvidence,
			&ev.Rating.Novelty,
			&ev.Rating.OverallScore,
			&ev.Question.LastScore,
			&ev.Question.Score,
			&ev.Question.RatingCount,
			&status,
			&ev.RatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning rating: %w", err)
		}
		ev.Question.Status = models.QuestionStatus(status)
		rec.Ratings = append(rec.Ratings, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ratings: %w", err)
	}
	return rec, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func toInt64(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func fromInt64(ids []int64) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
