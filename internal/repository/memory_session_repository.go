package repository

import (
	"context"
	"sync"
	"time"

	"github.com/airtime-live/stagedoor/internal/domain"
)

// MemorySessionRepository implements SessionRepository using in-memory storage.
// This is useful for testing and development.
type MemorySessionRepository struct {
	sessions map[string]*domain.Session
	byUser   map[string][]string // userID -> []sessionID
	mu       sync.RWMutex
}

// NewMemorySessionRepository creates a new in-memory session repository
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*domain.Session),
		byUser:   make(map[string][]string),
	}
}

// Create persists a new session. At most one queued or active session may
// exist per user, mirroring the partial unique index on the sessions table.
func (r *MemorySessionRepository) Create(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.IsQueued() || session.IsActive() {
		for _, id := range r.byUser[session.UserID] {
			if live := r.sessions[id]; live != nil && (live.IsQueued() || live.IsActive()) {
				return domain.ErrAlreadyHasSession
			}
		}
	}

	s := cloneSession(session)
	r.sessions[session.ID] = s
	r.byUser[session.UserID] = append(r.byUser[session.UserID], session.ID)
	return nil
}

// GetByID retrieves a session by ID
func (r *MemorySessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

// GetCurrentForUser returns the user's queued or active session, if any
func (r *MemorySessionRepository) GetCurrentForUser(ctx context.Context, userID string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.Session
	for _, id := range r.byUser[userID] {
		s := r.sessions[id]
		if s == nil || (!s.IsQueued() && !s.IsActive()) {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(latest), nil
}

// Update persists the mutable fields of an existing session
func (r *MemorySessionRepository) Update(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; !exists {
		return domain.ErrSessionNotFound
	}

	s := cloneSession(session)
	s.UpdatedAt = time.Now()
	r.sessions[session.ID] = s
	return nil
}

// UpdateQueuePosition mirrors queue position and wait estimate onto the row
func (r *MemorySessionRepository) UpdateQueuePosition(ctx context.Context, id string, position, waitMinutes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return domain.ErrSessionNotFound
	}

	pos := position
	wait := waitMinutes
	session.QueuePosition = &pos
	session.EstimatedWait = &wait
	session.UpdatedAt = time.Now()
	return nil
}

// ListOverdueActive returns active sessions whose end time has passed
func (r *MemorySessionRepository) ListOverdueActive(ctx context.Context, now time.Time) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var overdue []*domain.Session
	for _, s := range r.sessions {
		if s.Overdue(now) {
			overdue = append(overdue, cloneSession(s))
		}
	}
	return overdue, nil
}

func cloneSession(s *domain.Session) *domain.Session {
	c := *s
	if s.QueuePosition != nil {
		v := *s.QueuePosition
		c.QueuePosition = &v
	}
	if s.EstimatedWait != nil {
		v := *s.EstimatedWait
		c.EstimatedWait = &v
	}
	if s.StartTime != nil {
		v := *s.StartTime
		c.StartTime = &v
	}
	if s.EndTime != nil {
		v := *s.EndTime
		c.EndTime = &v
	}
	return &c
}
