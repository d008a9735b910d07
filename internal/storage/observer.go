package storage

import (
	"context"

	"github.com/xaenox/interview-ranker/internal/models"
	"go.uber.org/zap"
)

// Observer journals processor lifecycle events. Journal failures are logged
// and never interrupt the session.
type Observer struct {
	journal Journal
	logger  *zap.Logger
}

func NewObserver(journal Journal, logger *zap.Logger) *Observer {
	return &Observer{journal: journal, logger: logger}
}

func (o *Observer) SessionStarted(ctx context.Context, session models.SessionInfo) {
	if err := o.journal.StartSession(ctx, session); err != nil {
		o.logger.Error("Failed to journal session start",
			zap.Error(err),
			zap.String("session_id", session.ID))
	}
}

func (o *Observer) RatingApplied(ctx context.Context, event models.RatingEvent) {
	if err := o.journal.RecordRating(ctx, event); err != nil {
		o.logger.Error("Failed to journal rating",
			zap.Error(err),
			zap.String("session_id", event.SessionID),
			zap.Int("question_id", event.Question.ID))
	}
}

func (o *Observer) SessionEnded(ctx context.Context, summary models.SessionSummary) {
	if err := o.journal.EndSession(ctx, summary); err != nil {
		o.logger.Error("Failed to journal session end",
			zap.Error(err),
			zap.String("session_id", summary.ID))
	}
}
