package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/airtime-live/stagedoor/internal/domain"
	"github.com/airtime-live/stagedoor/pkg/telemetry"
)

// PostgresTransactionRepository implements TransactionRepository using PostgreSQL.
// The transactions table is append-only: no UPDATE or DELETE paths exist.
type PostgresTransactionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTransactionRepository creates a new PostgresTransactionRepository
func NewPostgresTransactionRepository(pool *pgxpool.Pool) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{pool: pool}
}

// Create appends a ledger entry
func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.transaction.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("transaction_id", tx.ID),
		attribute.String("user_id", tx.UserID),
		attribute.String("kind", tx.Kind.String()),
		attribute.Int("amount", tx.Amount),
	)

	query := `
		INSERT INTO transactions (
			id, user_id, kind, amount, description, related_id,
			balance_before, balance_after, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9
		)
	`

	_, err := r.pool.Exec(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Kind.String(),
		tx.Amount,
		tx.Description,
		nullString(tx.RelatedID),
		tx.BalanceBefore,
		tx.BalanceAfter,
		tx.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListByUser returns the user's ledger entries newest first
func (r *PostgresTransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.transaction.list_by_user")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)

	query := `
		SELECT id, user_id, kind, amount, description, related_id,
			balance_before, balance_after, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		tx := &domain.Transaction{}
		var kind string
		var relatedID *string
		if err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&kind,
			&tx.Amount,
			&tx.Description,
			&relatedID,
			&tx.BalanceBefore,
			&tx.BalanceAfter,
			&tx.CreatedAt,
		); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Kind = domain.TransactionKind(kind)
		if relatedID != nil {
			tx.RelatedID = *relatedID
		}
		txs = append(txs, tx)
	}

	span.SetAttributes(attribute.Int("count", len(txs)))
	span.SetStatus(codes.Ok, "")
	return txs, rows.Err()
}

// CountByUser returns the number of ledger entries for a user
func (r *PostgresTransactionRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.transaction.count_by_user")
	defer span.End()

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM transactions WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return count, nil
}

// nullString converts an empty string to a NULL-able pointer
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
