// Package registry owns all in-memory per-agent occupancy state: the single
// active-session marker and the FIFO line of waiting requests. Every other
// component goes through this interface; nothing else touches the maps.
package registry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/airtime-live/stagedoor/internal/domain"
	"github.com/airtime-live/stagedoor/internal/repository"
	"github.com/airtime-live/stagedoor/pkg/logger"
)

// AgentRegistry tracks at most one active session per agent and the FIFO
// queue of waiting requests per agent
type AgentRegistry interface {
	// GetActiveSession returns the active marker for an agent, or nil
	GetActiveSession(agentID string) *domain.ActiveSession

	// SetActive installs the active-session marker for an agent
	SetActive(agentID string, marker *domain.ActiveSession)

	// ClearActive removes the active-session marker for an agent
	ClearActive(agentID string)

	// Enqueue appends an entry to the tail and returns its 1-based position.
	// The position and wait estimate are mirrored onto the session row.
	Enqueue(ctx context.Context, agentID, userID, sessionID string) int

	// DequeueNext pops the head entry and renumbers the rest; nil when empty
	DequeueNext(ctx context.Context, agentID string) *domain.QueueEntry

	// RemoveFromQueue removes an arbitrary entry and renumbers the rest;
	// reports whether anything was removed
	RemoveFromQueue(ctx context.Context, agentID, sessionID string) bool

	// QueueLength returns the number of waiting entries for an agent
	QueueLength(agentID string) int

	// PeekNext returns the head entry without removing it, or nil
	PeekNext(agentID string) *domain.QueueEntry

	// Snapshot returns the agent's occupancy and a copy of its queue
	Snapshot(agentID string) *domain.AgentAvailability
}

// agentState is the per-agent occupancy record
type agentState struct {
	active *domain.ActiveSession
	queue  []*domain.QueueEntry
}

// registry implements AgentRegistry with a single mutex over all agents.
// Queue order is strict FIFO by arrival; positions stay contiguous 1..N.
type registry struct {
	mu          sync.Mutex
	agents      map[string]*agentState
	sessionRepo repository.SessionRepository
	waitPerSlot time.Duration
	log         *logger.Logger
}

// Config contains configuration for the registry
type Config struct {
	// WaitPerPosition is the wait estimate attributed to each queue slot
	WaitPerPosition time.Duration
}

// New creates a new in-memory agent registry
func New(sessionRepo repository.SessionRepository, cfg *Config) AgentRegistry {
	waitPerSlot := 5 * time.Minute
	if cfg != nil && cfg.WaitPerPosition > 0 {
		waitPerSlot = cfg.WaitPerPosition
	}
	return &registry{
		agents:      make(map[string]*agentState),
		sessionRepo: sessionRepo,
		waitPerSlot: waitPerSlot,
		log:         logger.Get(),
	}
}

func (r *registry) state(agentID string) *agentState {
	st, ok := r.agents[agentID]
	if !ok {
		st = &agentState{}
		r.agents[agentID] = st
	}
	return st
}

// GetActiveSession returns the active marker for an agent, or nil
func (r *registry) GetActiveSession(agentID string) *domain.ActiveSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.agents[agentID]
	if !ok || st.active == nil {
		return nil
	}
	marker := *st.active
	return &marker
}

// SetActive installs the active-session marker for an agent
func (r *registry) SetActive(agentID string, marker *domain.ActiveSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := *marker
	r.state(agentID).active = &m
}

// ClearActive removes the active-session marker for an agent
func (r *registry) ClearActive(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.agents[agentID]; ok {
		st.active = nil
	}
}

// Enqueue appends an entry to the tail and returns its 1-based position
func (r *registry) Enqueue(ctx context.Context, agentID, userID, sessionID string) int {
	r.mu.Lock()
	st := r.state(agentID)
	entry := &domain.QueueEntry{
		UserID:    userID,
		SessionID: sessionID,
		Position:  len(st.queue) + 1,
		AddedAt:   time.Now(),
	}
	st.queue = append(st.queue, entry)
	position := entry.Position
	r.mu.Unlock()

	r.mirrorPosition(ctx, sessionID, position)
	return position
}

// DequeueNext pops the head entry and renumbers the remainder
func (r *registry) DequeueNext(ctx context.Context, agentID string) *domain.QueueEntry {
	r.mu.Lock()
	st, ok := r.agents[agentID]
	if !ok || len(st.queue) == 0 {
		r.mu.Unlock()
		return nil
	}

	head := st.queue[0]
	st.queue = st.queue[1:]
	renumbered := renumber(st.queue)
	r.mu.Unlock()

	for _, e := range renumbered {
		r.mirrorPosition(ctx, e.SessionID, e.Position)
	}

	entry := *head
	return &entry
}

// RemoveFromQueue removes an arbitrary entry and renumbers the remainder
func (r *registry) RemoveFromQueue(ctx context.Context, agentID, sessionID string) bool {
	r.mu.Lock()
	st, ok := r.agents[agentID]
	if !ok {
		r.mu.Unlock()
		return false
	}

	idx := -1
	for i, e := range st.queue {
		if e.SessionID == sessionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return false
	}

	st.queue = append(st.queue[:idx], st.queue[idx+1:]...)
	renumbered := renumber(st.queue)
	r.mu.Unlock()

	for _, e := range renumbered {
		r.mirrorPosition(ctx, e.SessionID, e.Position)
	}
	return true
}

// QueueLength returns the number of waiting entries for an agent
func (r *registry) QueueLength(agentID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.agents[agentID]; ok {
		return len(st.queue)
	}
	return 0
}

// PeekNext returns the head entry without removing it
func (r *registry) PeekNext(agentID string) *domain.QueueEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.agents[agentID]
	if !ok || len(st.queue) == 0 {
		return nil
	}
	entry := *st.queue[0]
	return &entry
}

// Snapshot returns the agent's occupancy and a copy of its queue
func (r *registry) Snapshot(agentID string) *domain.AgentAvailability {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := &domain.AgentAvailability{
		AgentID: agentID,
		Queue:   []domain.QueueEntry{},
	}

	st, ok := r.agents[agentID]
	if !ok {
		return snap
	}

	if st.active != nil {
		marker := *st.active
		snap.ActiveSession = &marker
	}
	snap.QueueLength = len(st.queue)
	for _, e := range st.queue {
		snap.Queue = append(snap.Queue, *e)
	}
	return snap
}

// renumber reassigns contiguous 1..N positions and returns copies of the
// entries whose position changed
func renumber(queue []*domain.QueueEntry) []*domain.QueueEntry {
	var changed []*domain.QueueEntry
	for i, e := range queue {
		want := i + 1
		if e.Position != want {
			e.Position = want
			c := *e
			changed = append(changed, &c)
		}
	}
	return changed
}

// mirrorPosition persists a queue position onto the session row. The
// in-memory queue stays the source of truth; a store failure here only
// degrades the durable mirror, so it is logged and not propagated.
func (r *registry) mirrorPosition(ctx context.Context, sessionID string, position int) {
	waitMinutes := int(time.Duration(position) * r.waitPerSlot / time.Minute)
	if err := r.sessionRepo.UpdateQueuePosition(ctx, sessionID, position, waitMinutes); err != nil {
		r.log.Warn("failed to mirror queue position",
			zap.String("session_id", sessionID),
			zap.Int("position", position),
			zap.Error(err),
		)
	}
}
