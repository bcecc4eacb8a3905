package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/airtime-live/stagedoor/internal/domain"
	"github.com/airtime-live/stagedoor/internal/dto"
	"github.com/airtime-live/stagedoor/internal/metrics"
	"github.com/airtime-live/stagedoor/internal/registry"
	"github.com/airtime-live/stagedoor/internal/repository"
	"github.com/airtime-live/stagedoor/pkg/logger"
	"github.com/airtime-live/stagedoor/pkg/telemetry"
)

// Reasons recorded when a session ends
const (
	EndReasonExpired   = "expired"
	EndReasonUser      = "user_request"
	EndReasonRecovered = "recovered"
)

// SessionService defines the interface for session lifecycle business logic
type SessionService interface {
	// Book charges the user and either admits the session immediately or
	// enqueues it behind the agent's current occupant
	Book(ctx context.Context, userID string, req *dto.BookSessionRequest) (*dto.BookSessionResponse, error)

	// End finishes an active session and promotes the next queued one.
	// Ending an already-finished session is a no-op.
	End(ctx context.Context, sessionID, reason string) error

	// Cancel withdraws a queued session and refunds its cost. Only the
	// owner may cancel and only while the session is still queued.
	Cancel(ctx context.Context, sessionID, userID string) (*dto.CancelSessionResponse, error)

	// GetSession retrieves a session by ID
	GetSession(ctx context.Context, sessionID string) (*dto.SessionResponse, error)

	// GetCurrentSession retrieves the user's queued or active session
	GetCurrentSession(ctx context.Context, userID string) (*dto.SessionResponse, error)

	// GetAgentAvailability returns an agent's occupancy and waiting line
	GetAgentAvailability(ctx context.Context, agentID string) (*dto.AgentAvailabilityResponse, error)

	// RecoverOrphanedSessions closes active sessions whose end time passed
	// while no timer was armed, such as after a restart
	RecoverOrphanedSessions(ctx context.Context) (int, error)

	// Shutdown stops all armed session timers
	Shutdown()
}

// sessionService implements SessionService
type sessionService struct {
	sessionRepo     repository.SessionRepository
	userRepo        repository.UserRepository
	points          PointsService
	agents          registry.AgentRegistry
	notifier        Notifier
	eventPublisher  EventPublisher
	agentLocks      *keyedMutex
	userLocks       *keyedMutex
	timers          *timerTable
	defaultDuration time.Duration
	warningWindow   time.Duration
	waitPerSlot     time.Duration
	pointsCost      int
	freeAgentID     string
	log             *logger.Logger
}

// SessionServiceConfig contains configuration for the session service
type SessionServiceConfig struct {
	// DefaultDuration is the session length when the request does not set one
	DefaultDuration time.Duration

	// WarningWindow is how long before the end the warning fires
	WarningWindow time.Duration

	// WaitPerPosition is the wait estimate attributed to each queue slot
	WaitPerPosition time.Duration

	// PointsCost is the price of one private session
	PointsCost int

	// FreeAgentID names an agent exempt from the points charge, if any
	FreeAgentID string
}

// NewSessionService creates a new session service
func NewSessionService(
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	points PointsService,
	agents registry.AgentRegistry,
	notifier Notifier,
	eventPublisher EventPublisher,
	cfg *SessionServiceConfig,
) SessionService {
	defaultDuration := 5 * time.Minute
	warningWindow := 30 * time.Second
	waitPerSlot := 5 * time.Minute
	pointsCost := 10
	freeAgentID := ""
	if cfg != nil {
		if cfg.DefaultDuration > 0 {
			defaultDuration = cfg.DefaultDuration
		}
		if cfg.WarningWindow > 0 {
			warningWindow = cfg.WarningWindow
		}
		if cfg.WaitPerPosition > 0 {
			waitPerSlot = cfg.WaitPerPosition
		}
		if cfg.PointsCost > 0 {
			pointsCost = cfg.PointsCost
		}
		freeAgentID = cfg.FreeAgentID
	}
	if notifier == nil {
		notifier = NewNoOpNotifier()
	}
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &sessionService{
		sessionRepo:     sessionRepo,
		userRepo:        userRepo,
		points:          points,
		agents:          agents,
		notifier:        notifier,
		eventPublisher:  eventPublisher,
		agentLocks:      newKeyedMutex(),
		userLocks:       newKeyedMutex(),
		timers:          newTimerTable(),
		defaultDuration: defaultDuration,
		warningWindow:   warningWindow,
		waitPerSlot:     waitPerSlot,
		pointsCost:      pointsCost,
		freeAgentID:     freeAgentID,
		log:             logger.Get(),
	}
}

// Book charges the user and either admits or enqueues the session
func (s *sessionService) Book(ctx context.Context, userID string, req *dto.BookSessionRequest) (*dto.BookSessionResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.session.book")
	defer span.End()

	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}
	if req == nil || req.AgentID == "" {
		span.SetStatus(codes.Error, "invalid agent_id")
		return nil, domain.ErrInvalidAgentID
	}
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("agent_id", req.AgentID),
	)

	// One session per user at a time, queued or active. The check and the
	// charge+create below must not interleave with a concurrent booking by
	// the same user.
	unlockUser := s.userLocks.lock(userID)
	defer unlockUser()

	if _, err := s.sessionRepo.GetCurrentForUser(ctx, userID); err == nil {
		span.SetStatus(codes.Error, "user already has session")
		return nil, domain.ErrAlreadyHasSession
	} else if !errors.Is(err, domain.ErrSessionNotFound) {
		span.SetStatus(codes.Error, "session lookup failed")
		return nil, err
	}

	duration := s.defaultDuration
	if req.DurationMinutes > 0 {
		duration = time.Duration(req.DurationMinutes) * time.Minute
	}

	cost := s.pointsCost
	if s.freeAgentID != "" && req.AgentID == s.freeAgentID {
		cost = 0
	}

	session := &domain.Session{
		ID:              uuid.New().String(),
		UserID:          userID,
		AgentID:         req.AgentID,
		Status:          domain.SessionStatusQueued,
		DurationMinutes: int(duration / time.Minute),
		PointsCost:      cost,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	// Charge before anything becomes visible
	newBalance := 0
	if cost > 0 {
		tx, err := s.points.Spend(ctx, userID, cost, "private session booking", session.ID)
		if err != nil {
			span.SetStatus(codes.Error, "charge failed")
			return nil, err
		}
		newBalance = tx.BalanceAfter
	} else {
		balance, err := s.points.GetBalance(ctx, userID)
		if err != nil {
			span.SetStatus(codes.Error, "balance lookup failed")
			return nil, err
		}
		newBalance = balance.Points
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		s.refund(ctx, session)
		span.SetStatus(codes.Error, "session create failed")
		return nil, err
	}

	unlock := s.agentLocks.lock(req.AgentID)
	queued := s.agents.GetActiveSession(req.AgentID) != nil
	if queued {
		position := s.agents.Enqueue(ctx, req.AgentID, userID, session.ID)
		wait := int(time.Duration(position) * s.waitPerSlot / time.Minute)
		session.QueuePosition = &position
		session.EstimatedWait = &wait
		unlock()

		s.notify(ctx, userID, NotifyQueueJoined, map[string]interface{}{
			"session_id":          session.ID,
			"agent_id":            req.AgentID,
			"queue_position":      position,
			"estimated_wait_time": wait,
		})
	} else {
		if err := s.admit(ctx, session, false); err != nil {
			unlock()
			span.SetStatus(codes.Error, "admission failed")
			return nil, err
		}
		unlock()
	}

	metrics.RecordBooking(ctx, req.AgentID, queued)
	s.publish(ctx, domain.EventSessionBooked, session)

	span.SetStatus(codes.Ok, "session booked")
	return &dto.BookSessionResponse{
		SessionID:     session.ID,
		AgentID:       session.AgentID,
		Status:        session.Status.String(),
		PointsCost:    cost,
		NewBalance:    newBalance,
		StartTime:     session.StartTime,
		EndTime:       session.EndTime,
		QueuePosition: session.QueuePosition,
		EstimatedWait: session.EstimatedWait,
	}, nil
}

// admit starts a session on its agent. The caller holds the agent lock.
func (s *sessionService) admit(ctx context.Context, session *domain.Session, promoted bool) error {
	now := time.Now()
	start := now
	end := now.Add(time.Duration(session.DurationMinutes) * time.Minute)

	session.Status = domain.SessionStatusActive
	session.StartTime = &start
	session.EndTime = &end
	session.QueuePosition = nil
	session.EstimatedWait = nil
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return err
	}

	s.agents.SetActive(session.AgentID, &domain.ActiveSession{
		SessionID: session.ID,
		UserID:    session.UserID,
		AgentID:   session.AgentID,
		StartTime: start,
		EndTime:   end,
	})

	s.armTimers(session)

	waitSeconds := now.Sub(session.CreatedAt).Seconds()
	metrics.RecordSessionStart(ctx, session.AgentID, promoted, waitSeconds)

	s.notify(ctx, session.UserID, NotifySessionStarted, map[string]interface{}{
		"session_id": session.ID,
		"agent_id":   session.AgentID,
		"start_time": start,
		"end_time":   end,
	})
	s.publish(ctx, domain.EventSessionStarted, session)

	s.log.Info("session started",
		zap.String("session_id", session.ID),
		zap.String("agent_id", session.AgentID),
		zap.String("user_id", session.UserID),
		zap.Bool("promoted", promoted),
	)
	return nil
}

// End finishes an active session and promotes the next queued one
func (s *sessionService) End(ctx context.Context, sessionID, reason string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.session.end")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("reason", reason),
	)

	if sessionID == "" {
		span.SetStatus(codes.Error, "invalid session_id")
		return domain.ErrInvalidSessionID
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		span.SetStatus(codes.Error, "session lookup failed")
		return err
	}

	unlock := s.agentLocks.lock(session.AgentID)
	defer unlock()

	// Re-read under the lock; a timer and an explicit end can race
	session, err = s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		span.SetStatus(codes.Error, "session lookup failed")
		return err
	}
	if session.IsFinished() {
		span.SetStatus(codes.Ok, "already finished")
		return nil
	}
	if !session.IsActive() {
		span.SetStatus(codes.Error, "session not active")
		return domain.ErrSessionNotActive
	}

	s.stopTimers(sessionID)

	now := time.Now()
	started := now
	if session.StartTime != nil {
		started = *session.StartTime
	}
	session.Status = domain.SessionStatusCompleted
	session.EndTime = &now
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		span.SetStatus(codes.Error, "session update failed")
		return err
	}

	if active := s.agents.GetActiveSession(session.AgentID); active != nil && active.SessionID == sessionID {
		s.agents.ClearActive(session.AgentID)
	}

	if err := s.userRepo.IncrementSessionCount(ctx, session.UserID); err != nil {
		s.log.Warn("failed to increment session count",
			zap.String("user_id", session.UserID),
			zap.Error(err),
		)
	}

	metrics.RecordSessionEnd(ctx, session.AgentID, reason, now.Sub(started).Seconds())

	s.notify(ctx, session.UserID, NotifySessionEnded, map[string]interface{}{
		"session_id": session.ID,
		"agent_id":   session.AgentID,
		"reason":     reason,
	})
	s.publish(ctx, domain.EventSessionEnded, session)

	s.log.Info("session ended",
		zap.String("session_id", session.ID),
		zap.String("agent_id", session.AgentID),
		zap.String("reason", reason),
	)

	s.promoteNext(ctx, session.AgentID)

	span.SetStatus(codes.Ok, "session ended")
	return nil
}

// promoteNext admits the head of the agent's queue, if any. The caller
// holds the agent lock.
func (s *sessionService) promoteNext(ctx context.Context, agentID string) {
	head := s.agents.DequeueNext(ctx, agentID)
	if head == nil {
		return
	}

	next, err := s.sessionRepo.GetByID(ctx, head.SessionID)
	if err != nil {
		s.log.Error("failed to load promoted session",
			zap.String("session_id", head.SessionID),
			zap.Error(err),
		)
		s.promoteNext(ctx, agentID)
		return
	}
	if !next.IsQueued() {
		// Stale entry; skip to the one behind it
		s.promoteNext(ctx, agentID)
		return
	}

	if err := s.admit(ctx, next, true); err != nil {
		s.log.Error("failed to admit promoted session",
			zap.String("session_id", next.ID),
			zap.Error(err),
		)
		return
	}

	s.notifyQueuePositions(ctx, agentID)
}

// Cancel withdraws a queued session and refunds its cost
func (s *sessionService) Cancel(ctx context.Context, sessionID, userID string) (*dto.CancelSessionResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.session.cancel")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("user_id", userID),
	)

	if sessionID == "" {
		span.SetStatus(codes.Error, "invalid session_id")
		return nil, domain.ErrInvalidSessionID
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		span.SetStatus(codes.Error, "session lookup failed")
		return nil, err
	}
	if !session.BelongsToUser(userID) {
		span.SetStatus(codes.Error, "not the owner")
		return nil, domain.ErrNotCancellable
	}

	unlock := s.agentLocks.lock(session.AgentID)

	session, err = s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		unlock()
		span.SetStatus(codes.Error, "session lookup failed")
		return nil, err
	}
	if !session.IsQueued() {
		unlock()
		span.SetStatus(codes.Error, "session not queued")
		return nil, domain.ErrNotCancellable
	}

	s.agents.RemoveFromQueue(ctx, session.AgentID, sessionID)

	session.Status = domain.SessionStatusCancelled
	session.QueuePosition = nil
	session.EstimatedWait = nil
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		s.requeue(ctx, session)
		unlock()
		span.SetStatus(codes.Error, "session update failed")
		return nil, err
	}
	unlock()

	newBalance := 0
	refunded := session.PointsCost
	if refunded > 0 {
		tx, err := s.points.Earn(ctx, userID, domain.TransactionEarn, refunded, "booking refund", sessionID)
		if err != nil {
			// Cancellation and refund stand or fall together; put the
			// session back where it was
			s.restoreAfterFailedRefund(ctx, session)
			span.SetStatus(codes.Error, "refund failed")
			return nil, err
		}
		newBalance = tx.BalanceAfter
		metrics.RecordRefund(ctx, refunded)
	} else {
		balance, err := s.points.GetBalance(ctx, userID)
		if err != nil {
			span.SetStatus(codes.Error, "balance lookup failed")
			return nil, err
		}
		newBalance = balance.Points
	}

	metrics.RecordCancellation(ctx, session.AgentID)

	s.notify(ctx, userID, NotifySessionCancelled, map[string]interface{}{
		"session_id":      session.ID,
		"agent_id":        session.AgentID,
		"refunded_points": refunded,
	})
	s.publish(ctx, domain.EventSessionCancelled, session)
	s.notifyQueuePositions(ctx, session.AgentID)

	span.SetStatus(codes.Ok, "session cancelled")
	return &dto.CancelSessionResponse{
		SessionID:      session.ID,
		Status:         session.Status.String(),
		RefundedPoints: refunded,
		NewBalance:     newBalance,
	}, nil
}

// requeue puts a session back at the tail of its agent's queue. The caller
// holds the agent lock.
func (s *sessionService) requeue(ctx context.Context, session *domain.Session) {
	position := s.agents.Enqueue(ctx, session.AgentID, session.UserID, session.ID)
	wait := int(time.Duration(position) * s.waitPerSlot / time.Minute)
	session.Status = domain.SessionStatusQueued
	session.QueuePosition = &position
	session.EstimatedWait = &wait
}

// restoreAfterFailedRefund reverses a cancellation whose refund did not go
// through: the session is readmitted if its agent went idle in the meantime,
// otherwise it rejoins the queue at the tail.
func (s *sessionService) restoreAfterFailedRefund(ctx context.Context, session *domain.Session) {
	unlock := s.agentLocks.lock(session.AgentID)
	defer unlock()

	if s.agents.GetActiveSession(session.AgentID) == nil {
		if err := s.admit(ctx, session, false); err != nil {
			s.log.Error("failed to readmit session after refund failure",
				zap.String("session_id", session.ID),
				zap.String("agent_id", session.AgentID),
				zap.Error(err),
			)
		}
		return
	}

	s.requeue(ctx, session)
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		s.log.Error("failed to restore session after refund failure",
			zap.String("session_id", session.ID),
			zap.String("agent_id", session.AgentID),
			zap.Error(err),
		)
	}
}

// GetSession retrieves a session by ID
func (s *sessionService) GetSession(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.session.get")
	defer span.End()

	if sessionID == "" {
		span.SetStatus(codes.Error, "invalid session_id")
		return nil, domain.ErrInvalidSessionID
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		span.SetStatus(codes.Error, "session lookup failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "session retrieved")
	return dto.SessionFromDomain(session), nil
}

// GetCurrentSession retrieves the user's queued or active session
func (s *sessionService) GetCurrentSession(ctx context.Context, userID string) (*dto.SessionResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.session.get_current")
	defer span.End()

	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	session, err := s.sessionRepo.GetCurrentForUser(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "session lookup failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "session retrieved")
	return dto.SessionFromDomain(session), nil
}

// GetAgentAvailability returns an agent's occupancy and waiting line
func (s *sessionService) GetAgentAvailability(ctx context.Context, agentID string) (*dto.AgentAvailabilityResponse, error) {
	_, span := telemetry.StartSpan(ctx, "service.session.agent_availability")
	defer span.End()

	if agentID == "" {
		span.SetStatus(codes.Error, "invalid agent_id")
		return nil, domain.ErrInvalidAgentID
	}

	snap := s.agents.Snapshot(agentID)

	resp := &dto.AgentAvailabilityResponse{
		AgentID:     agentID,
		Busy:        snap.ActiveSession != nil,
		QueueLength: snap.QueueLength,
		Queue:       make([]dto.QueueEntryResponse, 0, len(snap.Queue)),
	}
	if snap.ActiveSession != nil {
		resp.ActiveSession = &dto.ActiveSessionInfo{
			SessionID:        snap.ActiveSession.SessionID,
			UserID:           snap.ActiveSession.UserID,
			StartTime:        snap.ActiveSession.StartTime,
			EndTime:          snap.ActiveSession.EndTime,
			RemainingSeconds: int(snap.ActiveSession.Remaining(time.Now()).Seconds()),
		}
	}
	for _, e := range snap.Queue {
		resp.Queue = append(resp.Queue, dto.QueueEntryResponse{
			Position:  e.Position,
			UserID:    e.UserID,
			SessionID: e.SessionID,
			AddedAt:   e.AddedAt,
		})
	}

	span.SetStatus(codes.Ok, "availability retrieved")
	return resp, nil
}

// RecoverOrphanedSessions closes active sessions whose end time passed
func (s *sessionService) RecoverOrphanedSessions(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.session.recover_orphaned")
	defer span.End()

	overdue, err := s.sessionRepo.ListOverdueActive(ctx, time.Now())
	if err != nil {
		span.SetStatus(codes.Error, "overdue lookup failed")
		return 0, err
	}

	recovered := 0
	for _, session := range overdue {
		if err := s.End(ctx, session.ID, EndReasonRecovered); err != nil {
			s.log.Error("failed to recover orphaned session",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
			continue
		}
		recovered++
	}

	if recovered > 0 {
		metrics.RecordRecovery(ctx, int64(recovered))
		s.log.Info("recovered orphaned sessions", zap.Int("count", recovered))
	}

	span.SetStatus(codes.Ok, "recovery complete")
	return recovered, nil
}

// Shutdown stops all armed session timers
func (s *sessionService) Shutdown() {
	s.timers.stopAll()
}

// refund returns a session's cost after a failed booking step
func (s *sessionService) refund(ctx context.Context, session *domain.Session) {
	if session.PointsCost <= 0 {
		return
	}
	if _, err := s.points.Earn(ctx, session.UserID, domain.TransactionEarn, session.PointsCost, "booking refund", session.ID); err != nil {
		s.log.Error("failed to refund booking charge",
			zap.String("session_id", session.ID),
			zap.String("user_id", session.UserID),
			zap.Error(err),
		)
	}
}

// armTimers schedules the warning and end timers for an active session
func (s *sessionService) armTimers(session *domain.Session) {
	sessionID := session.ID
	agentID := session.AgentID
	userID := session.UserID
	end := *session.EndTime

	var warning *time.Timer
	if delay := time.Until(end.Add(-s.warningWindow)); delay > 0 {
		warning = time.AfterFunc(delay, func() {
			s.fireWarning(sessionID, agentID, userID, end)
		})
	}

	endTimer := time.AfterFunc(time.Until(end), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.End(ctx, sessionID, EndReasonExpired); err != nil {
			s.log.Error("failed to end expired session",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	})

	s.timers.set(sessionID, warning, endTimer)
}

// fireWarning notifies the active user that the session is about to end and
// the queue head that the agent frees up soon
func (s *sessionService) fireWarning(sessionID, agentID, userID string, end time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.notify(ctx, userID, NotifySessionWarning, map[string]interface{}{
		"session_id":        sessionID,
		"agent_id":          agentID,
		"remaining_seconds": int(time.Until(end).Seconds()),
	})

	if head := s.agents.PeekNext(agentID); head != nil {
		s.notify(ctx, head.UserID, NotifyQueueWarning, map[string]interface{}{
			"session_id":       head.SessionID,
			"agent_id":         agentID,
			"starting_seconds": int(time.Until(end).Seconds()),
		})
	}
}

// notifyQueuePositions tells every waiting user their current position
func (s *sessionService) notifyQueuePositions(ctx context.Context, agentID string) {
	snap := s.agents.Snapshot(agentID)
	for _, e := range snap.Queue {
		wait := int(time.Duration(e.Position) * s.waitPerSlot / time.Minute)
		s.notify(ctx, e.UserID, NotifyQueueUpdated, map[string]interface{}{
			"session_id":          e.SessionID,
			"agent_id":            agentID,
			"queue_position":      e.Position,
			"estimated_wait_time": wait,
		})
	}
}

func (s *sessionService) notify(ctx context.Context, userID, event string, payload interface{}) {
	if err := s.notifier.NotifyUser(ctx, userID, event, payload); err != nil {
		s.log.Warn("failed to deliver notification",
			zap.String("user_id", userID),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

func (s *sessionService) publish(ctx context.Context, eventType domain.StreamEventType, session *domain.Session) {
	if err := s.eventPublisher.PublishSessionEvent(ctx, eventType, session); err != nil {
		s.log.Warn("failed to publish session event",
			zap.String("session_id", session.ID),
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}

// timerTable tracks the armed timers per session
type timerTable struct {
	mu     sync.Mutex
	timers map[string]*sessionTimers
}

type sessionTimers struct {
	warning *time.Timer
	end     *time.Timer
}

func newTimerTable() *timerTable {
	return &timerTable{timers: make(map[string]*sessionTimers)}
}

func (t *timerTable) set(sessionID string, warning, end *time.Timer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.timers[sessionID]; ok {
		old.stop()
	}
	t.timers[sessionID] = &sessionTimers{warning: warning, end: end}
}

func (t *timerTable) stop(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st, ok := t.timers[sessionID]; ok {
		st.stop()
		delete(t.timers, sessionID)
	}
}

func (t *timerTable) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, st := range t.timers {
		st.stop()
		delete(t.timers, id)
	}
}

func (st *sessionTimers) stop() {
	if st.warning != nil {
		st.warning.Stop()
	}
	if st.end != nil {
		st.end.Stop()
	}
}

// stopTimers disarms the timers for a session
func (s *sessionService) stopTimers(sessionID string) {
	s.timers.stop(sessionID)
}
