package storage

import (
	"context"

	"github.com/xaenox/interview-ranker/internal/models"
)

// Journal is a write-only audit trail of call sessions and the ratings they
// produced. Nothing in it is read back into the ledger.
type Journal interface {
	StartSession(ctx context.Context, session models.SessionInfo) error
	RecordRating(ctx context.Context, event models.RatingEvent) error
	EndSession(ctx context.Context, summary models.SessionSummary) error
	Close() error
}

// SessionReader exposes journal contents for inspection and tests
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (*SessionRecord, error)
}

// SessionRecord is a journaled session with its ratings
type SessionRecord struct {
	Session models.SessionInfo
	Summary *models.SessionSummary
	Ratings []models.RatingEvent
}
