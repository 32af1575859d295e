// internal/services/live_session_service.go
package services

import (
	"sync"
	"time"

	apperrors "github.com/drawatale/drawatale-backend/internal/errors"
	"github.com/drawatale/drawatale-backend/internal/models"
)

const (
	LiveUpdateAnalysis = "analysis"
	LiveUpdatePong     = "pong"
	LiveUpdateError    = "error"

	defaultMaxLiveEvents = 20000
)

// LiveUpdate is pushed to session subscribers.
type LiveUpdate struct {
	Type     string                   `json:"type"`
	Analysis *models.ProgressAnalysis `json:"analysis,omitempty"`
	Message  string                   `json:"message,omitempty"`
}

// LiveSession accumulates the action log of a drawing in progress.
type LiveSession struct {
	ID          string
	UserID      string
	StartTime   time.Time
	UpdateTime  time.Time
	events      []models.TimeLapseEvent
	duration    float64
	subscribers map[chan LiveUpdate]bool
	mutex       sync.Mutex
}

// LiveSessionService tracks open live-analysis sessions.
type LiveSessionService struct {
	sessions  map[string]*LiveSession
	mutex     sync.RWMutex
	analyzer  *ProgressAnalyzer
	maxEvents int
}

func NewLiveSessionService(analyzer *ProgressAnalyzer) *LiveSessionService {
	return &LiveSessionService{
		sessions:  make(map[string]*LiveSession),
		analyzer:  analyzer,
		maxEvents: defaultMaxLiveEvents,
	}
}

// CreateSession returns the existing session for id or a new one.
func (s *LiveSessionService) CreateSession(id, userID string) *LiveSession {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if session, exists := s.sessions[id]; exists {
		return session
	}
	now := time.Now()
	session := &LiveSession{
		ID:          id,
		UserID:      userID,
		StartTime:   now,
		UpdateTime:  now,
		subscribers: make(map[chan LiveUpdate]bool),
	}
	s.sessions[id] = session
	return session
}

func (s *LiveSessionService) GetSession(id string) (*LiveSession, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	session, exists := s.sessions[id]
	return session, exists
}

// Append adds a batch of events, re-analyses the whole log and notifies
// subscribers. A positive duration replaces the stored one.
func (s *LiveSessionService) Append(id string, events []models.TimeLapseEvent, duration float64) (*models.ProgressAnalysis, error) {
	session, ok := s.GetSession(id)
	if !ok {
		return nil, apperrors.NewNotFoundError("live session not found", nil)
	}

	session.mutex.Lock()
	defer session.mutex.Unlock()

	if len(session.events)+len(events) > s.maxEvents {
		return nil, apperrors.NewValidationError("too many events in this session", nil)
	}
	session.events = append(session.events, events...)
	if duration > 0 {
		session.duration = duration
	}
	session.UpdateTime = time.Now()

	analysis := s.analyzer.AnalyzeDrawingProgress(session.events, session.duration)
	session.publishLocked(LiveUpdate{Type: LiveUpdateAnalysis, Analysis: analysis})
	return analysis, nil
}

// Reset clears the buffered log.
func (s *LiveSessionService) Reset(id string) error {
	session, ok := s.GetSession(id)
	if !ok {
		return apperrors.NewNotFoundError("live session not found", nil)
	}
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.events = nil
	session.duration = 0
	session.UpdateTime = time.Now()
	return nil
}

// CloseSession drops the session and closes its subscriber channels.
func (s *LiveSessionService) CloseSession(id string) {
	s.mutex.Lock()
	session, exists := s.sessions[id]
	delete(s.sessions, id)
	s.mutex.Unlock()
	if !exists {
		return
	}

	session.mutex.Lock()
	defer session.mutex.Unlock()
	for ch := range session.subscribers {
		delete(session.subscribers, ch)
		close(ch)
	}
}

// Count returns the number of open sessions.
func (s *LiveSessionService) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.sessions)
}

// CleanupIdleSessions closes sessions untouched for longer than maxAge.
func (s *LiveSessionService) CleanupIdleSessions(maxAge time.Duration) int {
	now := time.Now()
	var stale []string

	s.mutex.RLock()
	for id, session := range s.sessions {
		session.mutex.Lock()
		idle := now.Sub(session.UpdateTime) > maxAge
		session.mutex.Unlock()
		if idle {
			stale = append(stale, id)
		}
	}
	s.mutex.RUnlock()

	for _, id := range stale {
		s.CloseSession(id)
	}
	return len(stale)
}

// Subscribe returns a buffered channel of updates for this session.
func (ls *LiveSession) Subscribe() chan LiveUpdate {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	ch := make(chan LiveUpdate, 16)
	ls.subscribers[ch] = true
	return ch
}

// Unsubscribe is a no-op for channels already closed by CloseSession.
func (ls *LiveSession) Unsubscribe(ch chan LiveUpdate) {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()
	if ls.subscribers[ch] {
		delete(ls.subscribers, ch)
		close(ch)
	}
}

// publishLocked sends u to every subscriber without blocking.
func (ls *LiveSession) publishLocked(u LiveUpdate) {
	for ch := range ls.subscribers {
		select {
		case ch <- u:
		default:
		}
	}
}

// EventCount returns the number of buffered events.
func (ls *LiveSession) EventCount() int {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()
	return len(ls.events)
}
