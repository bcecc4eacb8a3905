package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/airtime-live/stagedoor/internal/domain"
)

// MemoryUserRepository implements UserRepository using in-memory storage.
// This is useful for testing and development.
type MemoryUserRepository struct {
	users   map[string]*domain.User
	byEmail map[string]string // lower(email) -> userID
	mu      sync.RWMutex
}

// NewMemoryUserRepository creates a new in-memory user repository
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:   make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

// Create persists a new user
func (r *MemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := *user
	r.users[user.ID] = &u
	r.byEmail[strings.ToLower(user.Email)] = user.ID
	return nil
}

// GetByID retrieves a user by ID
func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	u := *user
	return &u, nil
}

// GetByEmail retrieves a user by email
func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byEmail[strings.ToLower(email)]
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	u := *r.users[id]
	return &u, nil
}

// ExistsByEmail reports whether a user with the email exists
func (r *MemoryUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.byEmail[strings.ToLower(email)]
	return exists, nil
}

// Update persists the mutable fields of an existing user
func (r *MemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; !exists {
		return domain.ErrUserNotFound
	}

	u := *user
	u.UpdatedAt = time.Now()
	r.users[user.ID] = &u
	return nil
}

// IncrementSessionCount bumps the user's completed-session counter
func (r *MemoryUserRepository) IncrementSessionCount(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[userID]
	if !exists {
		return domain.ErrUserNotFound
	}

	user.TotalSessions++
	user.UpdatedAt = time.Now()
	return nil
}

// ListRegenDue returns active users whose nextRegenAt is null or has passed
func (r *MemoryUserRepository) ListRegenDue(ctx context.Context, now time.Time, limit int) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []*domain.User
	for _, user := range r.users {
		if user.IsActive && user.RegenDue(now) {
			u := *user
			due = append(due, &u)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		// nil nextRegenAt sorts first
		switch {
		case due[i].NextRegenAt == nil:
			return true
		case due[j].NextRegenAt == nil:
			return false
		default:
			return due[i].NextRegenAt.Before(*due[j].NextRegenAt)
		}
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}
