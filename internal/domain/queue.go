package domain

import "time"

// QueueEntry represents a pending request for session access on one agent.
// Positions are 1-based and kept contiguous by the registry.
type QueueEntry struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Position  int       `json:"position"`
	AddedAt   time.Time `json:"added_at"`
}

// ActiveSession marks the single session currently holding an agent
type ActiveSession struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	AgentID   string    `json:"agent_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Remaining returns how long until the active session ends
func (a *ActiveSession) Remaining(now time.Time) time.Duration {
	if a == nil {
		return 0
	}
	d := a.EndTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// AgentAvailability is a snapshot of an agent's occupancy and waiting line
type AgentAvailability struct {
	AgentID       string         `json:"agent_id"`
	ActiveSession *ActiveSession `json:"active_session,omitempty"`
	QueueLength   int            `json:"queue_length"`
	Queue         []QueueEntry   `json:"queue"`
}
