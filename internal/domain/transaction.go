package domain

import "time"

// TransactionKind is the kind of balance movement
type TransactionKind string

const (
	TransactionSpend      TransactionKind = "spend"
	TransactionEarn       TransactionKind = "earn"
	TransactionRegenerate TransactionKind = "regenerate"
	TransactionBonus      TransactionKind = "bonus"
)

// String returns the kind as a string
func (k TransactionKind) String() string {
	return string(k)
}

// Debit reports whether the kind subtracts from the balance
func (k TransactionKind) Debit() bool {
	return k == TransactionSpend
}

// Transaction is an immutable ledger entry recording one balance movement.
// balanceAfter = balanceBefore - amount for spend, + amount otherwise.
type Transaction struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Kind          TransactionKind `json:"type"`
	Amount        int             `json:"amount"`
	Description   string          `json:"description"`
	RelatedID     string          `json:"related_id,omitempty"`
	BalanceBefore int             `json:"balance_before"`
	BalanceAfter  int             `json:"balance_after"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Consistent verifies the before/after arithmetic of the entry
func (t *Transaction) Consistent() bool {
	if t.Kind.Debit() {
		return t.BalanceAfter == t.BalanceBefore-t.Amount
	}
	return t.BalanceAfter == t.BalanceBefore+t.Amount
}
