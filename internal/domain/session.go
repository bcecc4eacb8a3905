package domain

import "time"

// SessionStatus represents the lifecycle state of a session
type SessionStatus string

const (
	SessionStatusQueued    SessionStatus = "queued"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// String returns the status as a string
func (s SessionStatus) String() string {
	return string(s)
}

// Session is a time-boxed grant of exclusive access to an agent for one user
type Session struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	AgentID         string        `json:"agent_id"`
	Status          SessionStatus `json:"status"`
	DurationMinutes int           `json:"duration"`
	PointsCost      int           `json:"points_cost"`
	QueuePosition   *int          `json:"queue_position,omitempty"`
	EstimatedWait   *int          `json:"estimated_wait_time,omitempty"` // minutes
	StartTime       *time.Time    `json:"start_time,omitempty"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsActive reports whether the session is currently active
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive
}

// IsQueued reports whether the session is waiting in a queue
func (s *Session) IsQueued() bool {
	return s.Status == SessionStatusQueued
}

// IsFinished reports whether the session has reached a terminal state
func (s *Session) IsFinished() bool {
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusCancelled
}

// BelongsToUser reports whether the session is owned by the given user
func (s *Session) BelongsToUser(userID string) bool {
	return s.UserID == userID
}

// Overdue reports whether an active session's end time has already passed
func (s *Session) Overdue(now time.Time) bool {
	return s.Status == SessionStatusActive && s.EndTime != nil && s.EndTime.Before(now)
}
