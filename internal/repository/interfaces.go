package repository

import (
	"context"
	"time"

	"github.com/airtime-live/stagedoor/internal/domain"
)

// UserRepository defines durable storage for users
type UserRepository interface {
	// Create persists a new user
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID; returns domain.ErrUserNotFound when missing
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email; returns domain.ErrUserNotFound when missing
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// ExistsByEmail reports whether a user with the email exists
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Update persists the mutable fields of an existing user
	Update(ctx context.Context, user *domain.User) error

	// ListRegenDue returns active users whose nextRegenAt is null or not after now
	ListRegenDue(ctx context.Context, now time.Time, limit int) ([]*domain.User, error)

	// IncrementSessionCount bumps the user's completed-session counter
	IncrementSessionCount(ctx context.Context, userID string) error
}

// SessionRepository defines durable storage for sessions
type SessionRepository interface {
	// Create persists a new session
	Create(ctx context.Context, session *domain.Session) error

	// GetByID retrieves a session by ID; returns domain.ErrSessionNotFound when missing
	GetByID(ctx context.Context, id string) (*domain.Session, error)

	// GetCurrentForUser returns the user's session in {queued, active}, if any;
	// returns domain.ErrSessionNotFound when none exists
	GetCurrentForUser(ctx context.Context, userID string) (*domain.Session, error)

	// Update persists the mutable fields of an existing session
	Update(ctx context.Context, session *domain.Session) error

	// UpdateQueuePosition mirrors the in-memory queue position and wait
	// estimate onto the session row
	UpdateQueuePosition(ctx context.Context, id string, position, waitMinutes int) error

	// ListOverdueActive returns sessions still marked active whose end time
	// has already passed
	ListOverdueActive(ctx context.Context, now time.Time) ([]*domain.Session, error)
}

// TransactionRepository defines append-only storage for ledger entries
type TransactionRepository interface {
	// Create appends a ledger entry; entries are never updated or deleted
	Create(ctx context.Context, tx *domain.Transaction) error

	// ListByUser returns the user's entries newest first
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error)

	// CountByUser returns the number of entries for a user
	CountByUser(ctx context.Context, userID string) (int, error)
}
