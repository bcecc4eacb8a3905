package dto

import (
	"time"

	"github.com/airtime-live/stagedoor/internal/domain"
)

// BookSessionRequest represents a request to book a private session
type BookSessionRequest struct {
	AgentID         string `json:"agent_id" binding:"required"`
	DurationMinutes int    `json:"duration,omitempty"`
}

// BookSessionResponse is returned after booking; either active immediately
// or queued with a position and wait estimate
type BookSessionResponse struct {
	SessionID     string     `json:"session_id"`
	AgentID       string     `json:"agent_id"`
	Status        string     `json:"status"`
	PointsCost    int        `json:"points_cost"`
	NewBalance    int        `json:"new_balance"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	QueuePosition *int       `json:"queue_position,omitempty"`
	EstimatedWait *int       `json:"estimated_wait_time,omitempty"`
}

// CancelSessionResponse is returned after a queued session is cancelled
type CancelSessionResponse struct {
	SessionID      string `json:"session_id"`
	Status         string `json:"status"`
	RefundedPoints int    `json:"refunded_points"`
	NewBalance     int    `json:"new_balance"`
}

// SessionResponse represents a session in API responses
type SessionResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	AgentID       string     `json:"agent_id"`
	Status        string     `json:"status"`
	Duration      int        `json:"duration"`
	PointsCost    int        `json:"points_cost"`
	QueuePosition *int       `json:"queue_position,omitempty"`
	EstimatedWait *int       `json:"estimated_wait_time,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SessionFromDomain converts a domain session to its API shape
func SessionFromDomain(s *domain.Session) *SessionResponse {
	return &SessionResponse{
		ID:            s.ID,
		UserID:        s.UserID,
		AgentID:       s.AgentID,
		Status:        s.Status.String(),
		Duration:      s.DurationMinutes,
		PointsCost:    s.PointsCost,
		QueuePosition: s.QueuePosition,
		EstimatedWait: s.EstimatedWait,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		CreatedAt:     s.CreatedAt,
	}
}

// AgentAvailabilityResponse is a snapshot of an agent's occupancy
type AgentAvailabilityResponse struct {
	AgentID       string               `json:"agent_id"`
	Busy          bool                 `json:"busy"`
	ActiveSession *ActiveSessionInfo   `json:"active_session,omitempty"`
	QueueLength   int                  `json:"queue_length"`
	Queue         []QueueEntryResponse `json:"queue"`
}

// ActiveSessionInfo summarizes the session currently holding the agent
type ActiveSessionInfo struct {
	SessionID        string    `json:"session_id"`
	UserID           string    `json:"user_id"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	RemainingSeconds int       `json:"remaining_seconds"`
}

// QueueEntryResponse represents one waiting entry
type QueueEntryResponse struct {
	Position  int       `json:"position"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	AddedAt   time.Time `json:"added_at"`
}
