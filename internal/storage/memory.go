package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/xaenox/interview-ranker/internal/models"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string]*SessionRecord
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*SessionRecord),
	}
}

func (s *MemoryStorage) StartSession(ctx context.Context, session models.SessionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already started", session.ID)
	}
	s.sessions[session.ID] = &SessionRecord{Session: session}
	return nil
}

func (s *MemoryStorage) RecordRating(ctx context.Context, event models.RatingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.sessions[event.SessionID]
	if !exists {
		return fmt.Errorf("session %s not found", event.SessionID)
	}
	rec.Ratings = append(rec.Ratings, event)
	return nil
}

func (s *MemoryStorage) EndSession(ctx context.Context, summary models.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.sessions[summary.ID]
	if !exists {
		return fmt.Errorf("session %s not found", summary.ID)
	}
	rec.Summary = &summary
	return nil
}

func (s *MemoryStorage) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	cp := *rec
	cp.Ratings = append([]models.RatingEvent(nil), rec.Ratings...)
	return &cp, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
