package repository

import (
	"context"
	"sync"

	"github.com/airtime-live/stagedoor/internal/domain"
)

// MemoryTransactionRepository implements TransactionRepository using
// in-memory storage. This is useful for testing and development.
type MemoryTransactionRepository struct {
	byUser map[string][]*domain.Transaction // append order, oldest first
	mu     sync.RWMutex
}

// NewMemoryTransactionRepository creates a new in-memory transaction repository
func NewMemoryTransactionRepository() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{
		byUser: make(map[string][]*domain.Transaction),
	}
}

// Create appends a ledger entry
func (r *MemoryTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := *tx
	r.byUser[tx.UserID] = append(r.byUser[tx.UserID], &t)
	return nil
}

// ListByUser returns the user's ledger entries newest first
func (r *MemoryTransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.byUser[userID]
	var page []*domain.Transaction
	// Walk backwards: newest entries were appended last
	for i := len(entries) - 1 - offset; i >= 0 && len(page) < limit; i-- {
		t := *entries[i]
		page = append(page, &t)
	}
	return page, nil
}

// CountByUser returns the number of ledger entries for a user
func (r *MemoryTransactionRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byUser[userID]), nil
}
