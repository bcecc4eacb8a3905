package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airtime-live/stagedoor/internal/domain"
	"github.com/airtime-live/stagedoor/internal/dto"
	"github.com/airtime-live/stagedoor/internal/registry"
	"github.com/airtime-live/stagedoor/internal/repository"
)

// recordingNotifier captures notifications for assertions
type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	UserID string
	Event  string
}

func (n *recordingNotifier) NotifyUser(ctx context.Context, userID, event string, payload interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{UserID: userID, Event: event})
	return nil
}

func (n *recordingNotifier) received(userID, event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e.UserID == userID && e.Event == event {
			return true
		}
	}
	return false
}

type sessionFixture struct {
	svc         SessionService
	points      PointsService
	userRepo    *repository.MemoryUserRepository
	sessionRepo *repository.MemorySessionRepository
	notifier    *recordingNotifier
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	userRepo := repository.NewMemoryUserRepository()
	sessionRepo := repository.NewMemorySessionRepository()
	txRepo := repository.NewMemoryTransactionRepository()
	notifier := &recordingNotifier{}

	points := NewPointsService(userRepo, txRepo, notifier, nil, &PointsServiceConfig{
		MaxPoints:   100,
		RegenAmount: 50,
	})
	agents := registry.New(sessionRepo, &registry.Config{WaitPerPosition: 5 * time.Minute})

	svc := NewSessionService(sessionRepo, userRepo, points, agents, notifier, nil, &SessionServiceConfig{
		DefaultDuration: 5 * time.Minute,
		WarningWindow:   30 * time.Second,
		WaitPerPosition: 5 * time.Minute,
		PointsCost:      10,
	})
	t.Cleanup(svc.Shutdown)

	return &sessionFixture{
		svc:         svc,
		points:      points,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		notifier:    notifier,
	}
}

func (f *sessionFixture) seedUser(t *testing.T, id string, points int) {
	t.Helper()
	require.NoError(t, f.userRepo.Create(context.Background(), newTestUser(id, points)))
}

func (f *sessionFixture) balance(t *testing.T, userID string) int {
	t.Helper()
	user, err := f.userRepo.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return user.Points
}

func TestSessionService_BookIdleAgentStartsImmediately(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 100)
	ctx := context.Background()

	resp, err := f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)

	assert.Equal(t, "active", resp.Status)
	assert.Equal(t, 10, resp.PointsCost)
	assert.Equal(t, 90, resp.NewBalance)
	require.NotNil(t, resp.StartTime)
	require.NotNil(t, resp.EndTime)
	assert.Nil(t, resp.QueuePosition)

	assert.Equal(t, 90, f.balance(t, "user-a"))
	assert.True(t, f.notifier.received("user-a", NotifySessionStarted))

	stored, err := f.sessionRepo.GetByID(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive())
}

func TestSessionService_BookBusyAgentQueues(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 100)
	f.seedUser(t, "user-b", 100)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)

	resp, err := f.svc.Book(ctx, "user-b", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)

	assert.Equal(t, "queued", resp.Status)
	require.NotNil(t, resp.QueuePosition)
	assert.Equal(t, 1, *resp.QueuePosition)
	require.NotNil(t, resp.EstimatedWait)
	assert.Equal(t, 5, *resp.EstimatedWait)
	assert.Nil(t, resp.StartTime)

	// Charged when enqueued, not when admitted
	assert.Equal(t, 90, f.balance(t, "user-b"))
	assert.True(t, f.notifier.received("user-b", NotifyQueueJoined))
}

func TestSessionService_BookInsufficientPoints(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 5)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	assert.ErrorIs(t, err, domain.ErrInsufficientPoints)

	// No charge and no session
	assert.Equal(t, 5, f.balance(t, "user-a"))
	_, err = f.sessionRepo.GetCurrentForUser(ctx, "user-a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionService_BookSecondSessionRejected(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 100)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)

	// A second booking is rejected even for a different agent
	_, err = f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-2"})
	assert.ErrorIs(t, err, domain.ErrAlreadyHasSession)
	assert.Equal(t, 90, f.balance(t, "user-a"))
}

func TestSessionService_ConcurrentBookingsCreateOneSession(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 100)
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{
				AgentID: fmt.Sprintf("agent-%d", i),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrAlreadyHasSession)
		}
	}
	assert.Equal(t, 1, succeeded)

	// Exactly one charge went through
	assert.Equal(t, 90, f.balance(t, "user-a"))

	current, err := f.sessionRepo.GetCurrentForUser(ctx, "user-a")
	require.NoError(t, err)
	assert.True(t, current.IsActive())
}

func TestSessionService_EndPromotesNextInLine(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 100)
	f.seedUser(t, "user-b", 100)
	f.seedUser(t, "user-c", 100)
	ctx := context.Background()

	respA, err := f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)
	respB, err := f.svc.Book(ctx, "user-b", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)
	respC, err := f.svc.Book(ctx, "user-c", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, *respC.QueuePosition)

	require.NoError(t, f.svc.End(ctx, respA.SessionID, EndReasonUser))

	endedA, err := f.sessionRepo.GetByID(ctx, respA.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, endedA.Status)
	assert.True(t, f.notifier.received("user-a", NotifySessionEnded))

	userA, err := f.userRepo.GetByID(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, 1, userA.TotalSessions)

	// B got the agent, C moved to the front of the line
	activeB, err := f.sessionRepo.GetByID(ctx, respB.SessionID)
	require.NoError(t, err)
	assert.True(t, activeB.IsActive())
	assert.True(t, f.notifier.received("user-b", NotifySessionStarted))

	queuedC, err := f.sessionRepo.GetByID(ctx, respC.SessionID)
	require.NoError(t, err)
	assert.True(t, queuedC.IsQueued())
	require.NotNil(t, queuedC.QueuePosition)
	assert.Equal(t, 1, *queuedC.QueuePosition)

	avail, err := f.svc.GetAgentAvailability(ctx, "agent-1")
	require.NoError(t, err)
	assert.True(t, avail.Busy)
	assert.Equal(t, 1, avail.QueueLength)
	assert.Equal(t, respB.SessionID, avail.ActiveSession.SessionID)
}

func TestSessionService_EndIsIdempotent(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 100)
	ctx := context.Background()

	resp, err := f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)

	require.NoError(t, f.svc.End(ctx, resp.SessionID, EndReasonUser))
	require.NoError(t, f.svc.End(ctx, resp.SessionID, EndReasonExpired))

	stored, err := f.sessionRepo.GetByID(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, stored.Status)
}

func TestSessionService_EndQueuedSessionRejected(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 100)
	f.seedUser(t, "user-b", 100)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)
	respB, err := f.svc.Book(ctx, "user-b", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)

	// A session that never started cannot be ended, only cancelled
	err = f.svc.End(ctx, respB.SessionID, EndReasonUser)
	assert.ErrorIs(t, err, domain.ErrSessionNotActive)
}

func TestSessionService_EndFreesAgentWhenQueueEmpty(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 100)
	ctx := context.Background()

	resp, err := f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)
	require.NoError(t, f.svc.End(ctx, resp.SessionID, EndReasonUser))

	avail, err := f.svc.GetAgentAvailability(ctx, "agent-1")
	require.NoError(t, err)
	assert.False(t, avail.Busy)
	assert.Equal(t, 0, avail.QueueLength)

	// The user can book again
	_, err = f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)
}

func TestSessionService_CancelQueuedRefundsAndShifts(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 100)
	f.seedUser(t, "user-b", 100)
	f.seedUser(t, "user-c", 100)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)
	respB, err := f.svc.Book(ctx, "user-b", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)
	respC, err := f.svc.Book(ctx, "user-c", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)

	result, err := f.svc.Cancel(ctx, respB.SessionID, "user-b")
	require.NoError(t, err)

	assert.Equal(t, "cancelled", result.Status)
	assert.Equal(t, 10, result.RefundedPoints)
	assert.Equal(t, 100, result.NewBalance)
	assert.Equal(t, 100, f.balance(t, "user-b"))
	assert.True(t, f.notifier.received("user-b", NotifySessionCancelled))

	// C shifted from position 2 to 1
	queuedC, err := f.sessionRepo.GetByID(ctx, respC.SessionID)
	require.NoError(t, err)
	require.NotNil(t, queuedC.QueuePosition)
	assert.Equal(t, 1, *queuedC.QueuePosition)
	assert.True(t, f.notifier.received("user-c", NotifyQueueUpdated))
}

// flakyPoints injects Earn failures in front of a real points service
type flakyPoints struct {
	PointsService
	earnErr error
}

func (p *flakyPoints) Earn(ctx context.Context, userID string, kind domain.TransactionKind, amount int, description, relatedID string) (*domain.Transaction, error) {
	if p.earnErr != nil {
		return nil, p.earnErr
	}
	return p.PointsService.Earn(ctx, userID, kind, amount, description, relatedID)
}

func TestSessionService_CancelRefundFailureKeepsSessionQueued(t *testing.T) {
	userRepo := repository.NewMemoryUserRepository()
	sessionRepo := repository.NewMemorySessionRepository()
	txRepo := repository.NewMemoryTransactionRepository()
	points := &flakyPoints{PointsService: NewPointsService(userRepo, txRepo, nil, nil, nil)}
	agents := registry.New(sessionRepo, nil)

	svc := NewSessionService(sessionRepo, userRepo, points, agents, nil, nil, &SessionServiceConfig{
		DefaultDuration: 5 * time.Minute,
		PointsCost:      10,
	})
	t.Cleanup(svc.Shutdown)

	ctx := context.Background()
	require.NoError(t, userRepo.Create(ctx, newTestUser("user-a", 100)))
	require.NoError(t, userRepo.Create(ctx, newTestUser("user-b", 100)))

	_, err := svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)
	respB, err := svc.Book(ctx, "user-b", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)

	points.earnErr = errors.New("ledger store down")
	_, err = svc.Cancel(ctx, respB.SessionID, "user-b")
	require.Error(t, err)

	// Cancellation did not stick: still queued, still charged
	stored, err := sessionRepo.GetByID(ctx, respB.SessionID)
	require.NoError(t, err)
	assert.True(t, stored.IsQueued())
	require.NotNil(t, stored.QueuePosition)
	assert.Equal(t, 1, *stored.QueuePosition)

	userB, err := userRepo.GetByID(ctx, "user-b")
	require.NoError(t, err)
	assert.Equal(t, 90, userB.Points)

	avail, err := svc.GetAgentAvailability(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 1, avail.QueueLength)

	// Once the ledger recovers the cancellation goes through whole
	points.earnErr = nil
	result, err := svc.Cancel(ctx, respB.SessionID, "user-b")
	require.NoError(t, err)
	assert.Equal(t, 10, result.RefundedPoints)
	assert.Equal(t, 100, result.NewBalance)

	stored, err = sessionRepo.GetByID(ctx, respB.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCancelled, stored.Status)
}

func TestSessionService_CancelActiveRejected(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 100)
	ctx := context.Background()

	resp, err := f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, resp.SessionID, "user-a")
	assert.ErrorIs(t, err, domain.ErrNotCancellable)
	assert.Equal(t, 90, f.balance(t, "user-a"))
}

func TestSessionService_CancelByNonOwnerRejected(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 100)
	f.seedUser(t, "user-b", 100)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)
	respB, err := f.svc.Book(ctx, "user-b", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, respB.SessionID, "user-a")
	assert.ErrorIs(t, err, domain.ErrNotCancellable)
}

func TestSessionService_FreeAgentSkipsCharge(t *testing.T) {
	userRepo := repository.NewMemoryUserRepository()
	sessionRepo := repository.NewMemorySessionRepository()
	txRepo := repository.NewMemoryTransactionRepository()
	points := NewPointsService(userRepo, txRepo, nil, nil, nil)
	agents := registry.New(sessionRepo, nil)

	svc := NewSessionService(sessionRepo, userRepo, points, agents, nil, nil, &SessionServiceConfig{
		DefaultDuration: 5 * time.Minute,
		PointsCost:      10,
		FreeAgentID:     "agent-free",
	})
	t.Cleanup(svc.Shutdown)

	ctx := context.Background()
	require.NoError(t, userRepo.Create(ctx, newTestUser("user-a", 0)))

	// Booking the free agent works even with a zero balance
	resp, err := svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-free"})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.PointsCost)
	assert.Equal(t, 0, resp.NewBalance)
	assert.Equal(t, "active", resp.Status)

	count, _ := txRepo.CountByUser(ctx, "user-a")
	assert.Equal(t, 0, count)
}

func TestSessionService_CustomDurationRespected(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 100)
	ctx := context.Background()

	resp, err := f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1", DurationMinutes: 10})
	require.NoError(t, err)

	require.NotNil(t, resp.StartTime)
	require.NotNil(t, resp.EndTime)
	assert.Equal(t, 10*time.Minute, resp.EndTime.Sub(*resp.StartTime))
}

func TestSessionService_RecoverOrphanedSessions(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 100)
	ctx := context.Background()

	// Simulate a session left active by a previous run
	start := time.Now().Add(-10 * time.Minute)
	end := time.Now().Add(-5 * time.Minute)
	orphan := &domain.Session{
		ID:              "orphan-1",
		UserID:          "user-a",
		AgentID:         "agent-1",
		Status:          domain.SessionStatusActive,
		DurationMinutes: 5,
		PointsCost:      10,
		StartTime:       &start,
		EndTime:         &end,
		CreatedAt:       start,
	}
	require.NoError(t, f.sessionRepo.Create(ctx, orphan))

	recovered, err := f.svc.RecoverOrphanedSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	stored, err := f.sessionRepo.GetByID(ctx, "orphan-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, stored.Status)

	// The agent is free for new bookings afterwards
	resp, err := f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)
	assert.Equal(t, "active", resp.Status)
}

func TestSessionService_GetCurrentSession(t *testing.T) {
	f := newSessionFixture(t)
	f.seedUser(t, "user-a", 100)
	ctx := context.Background()

	_, err := f.svc.GetCurrentSession(ctx, "user-a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	resp, err := f.svc.Book(ctx, "user-a", &dto.BookSessionRequest{AgentID: "agent-1"})
	require.NoError(t, err)

	current, err := f.svc.GetCurrentSession(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, current.ID)
	assert.Equal(t, "active", current.Status)
}
