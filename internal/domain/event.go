package domain

import (
	"fmt"
	"time"
)

// StreamEventType identifies an audit event on the event stream
type StreamEventType string

const (
	EventSessionBooked    StreamEventType = "session.booked"
	EventSessionStarted   StreamEventType = "session.started"
	EventSessionEnded     StreamEventType = "session.ended"
	EventSessionCancelled StreamEventType = "session.cancelled"
	EventPointsChanged    StreamEventType = "points.changed"
)

// SessionEvent is the audit record published for session lifecycle changes
type SessionEvent struct {
	EventID   string          `json:"event_id"`
	EventType StreamEventType `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Session   *Session        `json:"session"`
}

// NewSessionEvent creates a session audit event
func NewSessionEvent(eventType StreamEventType, session *Session, eventID string) *SessionEvent {
	return &SessionEvent{
		EventID:   eventID,
		EventType: eventType,
		Timestamp: time.Now(),
		Session:   session,
	}
}

// Key returns the partition key for the event
func (e *SessionEvent) Key() string {
	return fmt.Sprintf("agent:%s", e.Session.AgentID)
}

// LedgerEvent is the audit record published for balance movements
type LedgerEvent struct {
	EventID     string          `json:"event_id"`
	EventType   StreamEventType `json:"event_type"`
	Timestamp   time.Time       `json:"timestamp"`
	Transaction *Transaction    `json:"transaction"`
}

// NewLedgerEvent creates a ledger audit event
func NewLedgerEvent(tx *Transaction, eventID string) *LedgerEvent {
	return &LedgerEvent{
		EventID:     eventID,
		EventType:   EventPointsChanged,
		Timestamp:   time.Now(),
		Transaction: tx,
	}
}

// Key returns the partition key for the event
func (e *LedgerEvent) Key() string {
	return fmt.Sprintf("user:%s", e.Transaction.UserID)
}
