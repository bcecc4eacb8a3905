package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/airtime-live/stagedoor/internal/domain"
	"github.com/airtime-live/stagedoor/pkg/telemetry"
)

// PostgresUserRepository implements UserRepository using PostgreSQL with pgxpool
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `
	id, name, email, password_hash, points, role, subscription_tier,
	is_active, total_sessions, next_regen_at, last_login_at, created_at, updated_at`

// Create persists a new user
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.user.create")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", user.ID))

	query := `
		INSERT INTO users (
			id, name, email, password_hash, points, role, subscription_tier,
			is_active, total_sessions, next_regen_at, last_login_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13
		)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Points,
		string(user.Role),
		user.Tier,
		user.IsActive,
		user.TotalSessions,
		user.NextRegenAt,
		user.LastLoginAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create user: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a user by its ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.user.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", id))

	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`
	user, err := r.scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "user not found")
			return nil, domain.ErrUserNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.user.get_by_email")
	defer span.End()

	query := `SELECT` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	user, err := r.scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "user not found")
			return nil, domain.ErrUserNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return user, nil
}

// ExistsByEmail reports whether a user with the email exists
func (r *PostgresUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.user.exists_by_email")
	defer span.End()

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM users WHERE LOWER(email) = LOWER($1)`, email,
	).Scan(&count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to count users by email: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return count > 0, nil
}

// Update persists the mutable fields of an existing user
func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.user.update")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", user.ID))

	query := `
		UPDATE users SET
			name = $2, points = $3, role = $4, subscription_tier = $5,
			is_active = $6, total_sessions = $7, next_regen_at = $8,
			last_login_at = $9, updated_at = $10
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Points,
		string(user.Role),
		user.Tier,
		user.IsActive,
		user.TotalSessions,
		user.NextRegenAt,
		user.LastLoginAt,
		time.Now(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "user not found")
		return domain.ErrUserNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// IncrementSessionCount bumps the user's completed-session counter
func (r *PostgresUserRepository) IncrementSessionCount(ctx context.Context, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.user.increment_session_count")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	query := `UPDATE users SET total_sessions = total_sessions + 1, updated_at = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, userID, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to increment session count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "user not found")
		return domain.ErrUserNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListRegenDue returns active users whose nextRegenAt is null or has passed
func (r *PostgresUserRepository) ListRegenDue(ctx context.Context, now time.Time, limit int) ([]*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.user.list_regen_due")
	defer span.End()

	query := `SELECT` + userColumns + `
		FROM users
		WHERE is_active = TRUE AND (next_regen_at IS NULL OR next_regen_at <= $1)
		ORDER BY next_regen_at ASC NULLS FIRST
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list regen-due users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	span.SetAttributes(attribute.Int("count", len(users)))
	span.SetStatus(codes.Ok, "")
	return users, rows.Err()
}

func (r *PostgresUserRepository) scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	var role string
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Points,
		&role,
		&user.Tier,
		&user.IsActive,
		&user.TotalSessions,
		&user.NextRegenAt,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = domain.UserRole(role)
	return user, nil
}
