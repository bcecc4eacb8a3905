package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/airtime-live/stagedoor/internal/domain"
	"github.com/airtime-live/stagedoor/pkg/telemetry"
)

const pgUniqueViolationCode = "23505"

// PostgresSessionRepository implements SessionRepository using PostgreSQL with pgxpool
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSessionRepository creates a new PostgresSessionRepository
func NewPostgresSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

const sessionColumns = `
	id, user_id, agent_id, status, duration_minutes, points_cost,
	queue_position, estimated_wait_minutes, start_time, end_time,
	created_at, updated_at`

// Create persists a new session
func (r *PostgresSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.session.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", session.ID),
		attribute.String("user_id", session.UserID),
		attribute.String("agent_id", session.AgentID),
	)

	query := `
		INSERT INTO sessions (
			id, user_id, agent_id, status, duration_minutes, points_cost,
			queue_position, estimated_wait_minutes, start_time, end_time,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12
		)
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.AgentID,
		session.Status.String(),
		session.DurationMinutes,
		session.PointsCost,
		session.QueuePosition,
		session.EstimatedWait,
		session.StartTime,
		session.EndTime,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			span.SetStatus(codes.Error, "user already has a live session")
			return domain.ErrAlreadyHasSession
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create session: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a session by its ID
func (r *PostgresSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.session.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("session_id", id))

	query := `SELECT` + sessionColumns + ` FROM sessions WHERE id = $1`
	session, err := r.scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "session not found")
			return nil, domain.ErrSessionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return session, nil
}

// GetCurrentForUser returns the user's queued or active session, if any
func (r *PostgresSessionRepository) GetCurrentForUser(ctx context.Context, userID string) (*domain.Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.session.get_current_for_user")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	query := `SELECT` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND status IN ('queued', 'active')
		ORDER BY created_at DESC
		LIMIT 1
	`

	session, err := r.scanSession(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "session not found")
			return nil, domain.ErrSessionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get current session: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return session, nil
}

// Update persists the mutable fields of an existing session
func (r *PostgresSessionRepository) Update(ctx context.Context, session *domain.Session) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.session.update")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", session.ID),
		attribute.String("status", session.Status.String()),
	)

	query := `
		UPDATE sessions SET
			status = $2, queue_position = $3, estimated_wait_minutes = $4,
			start_time = $5, end_time = $6, updated_at = $7
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		session.ID,
		session.Status.String(),
		session.QueuePosition,
		session.EstimatedWait,
		session.StartTime,
		session.EndTime,
		time.Now(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "session not found")
		return domain.ErrSessionNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// UpdateQueuePosition mirrors queue position and wait estimate onto the row
func (r *PostgresSessionRepository) UpdateQueuePosition(ctx context.Context, id string, position, waitMinutes int) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.session.update_queue_position")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", id),
		attribute.Int("position", position),
	)

	query := `
		UPDATE sessions SET
			queue_position = $2, estimated_wait_minutes = $3, updated_at = $4
		WHERE id = $1
	`

	if _, err := r.pool.Exec(ctx, query, id, position, waitMinutes, time.Now()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update queue position: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListOverdueActive returns active sessions whose end time has passed
func (r *PostgresSessionRepository) ListOverdueActive(ctx context.Context, now time.Time) ([]*domain.Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.session.list_overdue_active")
	defer span.End()

	query := `SELECT` + sessionColumns + `
		FROM sessions
		WHERE status = 'active' AND end_time IS NOT NULL AND end_time < $1
		ORDER BY end_time ASC
	`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list overdue sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := r.scanSession(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	span.SetAttributes(attribute.Int("count", len(sessions)))
	span.SetStatus(codes.Ok, "")
	return sessions, rows.Err()
}

func (r *PostgresSessionRepository) scanSession(row pgx.Row) (*domain.Session, error) {
	session := &domain.Session{}
	var status string
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.AgentID,
		&status,
		&session.DurationMinutes,
		&session.PointsCost,
		&session.QueuePosition,
		&session.EstimatedWait,
		&session.StartTime,
		&session.EndTime,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.Status = domain.SessionStatus(status)
	return session, nil
}
