package dto

import (
	"time"

	"github.com/airtime-live/stagedoor/internal/domain"
)

// SpendPointsRequest represents a direct points spend
type SpendPointsRequest struct {
	Amount int    `json:"amount" binding:"required,min=1"`
	Reason string `json:"reason,omitempty"`
}

// SpendPointsResponse is returned after a successful spend
type SpendPointsResponse struct {
	NewBalance  int                  `json:"new_balance"`
	Transaction *TransactionResponse `json:"transaction"`
}

// BalanceResponse carries the current balance and regeneration info
type BalanceResponse struct {
	UserID      string     `json:"user_id"`
	Points      int        `json:"points"`
	MaxPoints   int        `json:"max_points"`
	NextRegenAt *time.Time `json:"next_regen_at,omitempty"`
}

// TransactionResponse represents a ledger entry in API responses
type TransactionResponse struct {
	ID            string    `json:"id"`
	Kind          string    `json:"type"`
	Amount        int       `json:"amount"`
	Description   string    `json:"description"`
	RelatedID     string    `json:"related_id,omitempty"`
	BalanceBefore int       `json:"balance_before"`
	BalanceAfter  int       `json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// TransactionFromDomain converts a ledger entry to its API shape
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:            t.ID,
		Kind:          t.Kind.String(),
		Amount:        t.Amount,
		Description:   t.Description,
		RelatedID:     t.RelatedID,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		CreatedAt:     t.CreatedAt,
	}
}

// TransactionHistoryResponse is a page of ledger entries, newest first
type TransactionHistoryResponse struct {
	Transactions []*TransactionResponse `json:"transactions"`
	Page         int                    `json:"page"`
	PageSize     int                    `json:"page_size"`
	HasMore      bool                   `json:"has_more"`
}
