package registry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airtime-live/stagedoor/internal/domain"
	"github.com/airtime-live/stagedoor/internal/repository"
)

func newTestRegistry(t *testing.T) (AgentRegistry, *repository.MemorySessionRepository) {
	t.Helper()
	repo := repository.NewMemorySessionRepository()
	reg := New(repo, &Config{WaitPerPosition: 5 * time.Minute})
	return reg, repo
}

func seedQueuedSession(t *testing.T, repo *repository.MemorySessionRepository, userID, agentID string) *domain.Session {
	t.Helper()
	session := &domain.Session{
		ID:              uuid.New().String(),
		UserID:          userID,
		AgentID:         agentID,
		Status:          domain.SessionStatusQueued,
		DurationMinutes: 5,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), session))
	return session
}

func TestRegistry_SingleActivePerAgent(t *testing.T) {
	reg, _ := newTestRegistry(t)

	assert.Nil(t, reg.GetActiveSession("agent-1"))

	now := time.Now()
	reg.SetActive("agent-1", &domain.ActiveSession{
		SessionID: "sess-1",
		UserID:    "user-1",
		AgentID:   "agent-1",
		StartTime: now,
		EndTime:   now.Add(5 * time.Minute),
	})

	active := reg.GetActiveSession("agent-1")
	require.NotNil(t, active)
	assert.Equal(t, "sess-1", active.SessionID)

	// other agents are unaffected
	assert.Nil(t, reg.GetActiveSession("agent-2"))

	reg.ClearActive("agent-1")
	assert.Nil(t, reg.GetActiveSession("agent-1"))
}

func TestRegistry_EnqueueAssignsContiguousPositions(t *testing.T) {
	reg, repo := newTestRegistry(t)
	ctx := context.Background()

	s1 := seedQueuedSession(t, repo, "user-a", "agent-1")
	s2 := seedQueuedSession(t, repo, "user-b", "agent-1")
	s3 := seedQueuedSession(t, repo, "user-c", "agent-1")

	assert.Equal(t, 1, reg.Enqueue(ctx, "agent-1", "user-a", s1.ID))
	assert.Equal(t, 2, reg.Enqueue(ctx, "agent-1", "user-b", s2.ID))
	assert.Equal(t, 3, reg.Enqueue(ctx, "agent-1", "user-c", s3.ID))
	assert.Equal(t, 3, reg.QueueLength("agent-1"))

	// positions and wait estimates are mirrored onto the session rows
	stored, err := repo.GetByID(ctx, s2.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.QueuePosition)
	assert.Equal(t, 2, *stored.QueuePosition)
	require.NotNil(t, stored.EstimatedWait)
	assert.Equal(t, 10, *stored.EstimatedWait)
}

func TestRegistry_DequeueNextIsFIFOAndRenumbers(t *testing.T) {
	reg, repo := newTestRegistry(t)
	ctx := context.Background()

	s1 := seedQueuedSession(t, repo, "user-a", "agent-1")
	s2 := seedQueuedSession(t, repo, "user-b", "agent-1")
	s3 := seedQueuedSession(t, repo, "user-c", "agent-1")
	reg.Enqueue(ctx, "agent-1", "user-a", s1.ID)
	reg.Enqueue(ctx, "agent-1", "user-b", s2.ID)
	reg.Enqueue(ctx, "agent-1", "user-c", s3.ID)

	head := reg.DequeueNext(ctx, "agent-1")
	require.NotNil(t, head)
	assert.Equal(t, s1.ID, head.SessionID)
	assert.Equal(t, "user-a", head.UserID)
	assert.Equal(t, 2, reg.QueueLength("agent-1"))

	// remaining entries shifted to 1 and 2
	snap := reg.Snapshot("agent-1")
	require.Len(t, snap.Queue, 2)
	assert.Equal(t, s2.ID, snap.Queue[0].SessionID)
	assert.Equal(t, 1, snap.Queue[0].Position)
	assert.Equal(t, s3.ID, snap.Queue[1].SessionID)
	assert.Equal(t, 2, snap.Queue[1].Position)

	// renumbering reached the store
	stored, err := repo.GetByID(ctx, s3.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.QueuePosition)
	assert.Equal(t, 2, *stored.QueuePosition)
	require.NotNil(t, stored.EstimatedWait)
	assert.Equal(t, 10, *stored.EstimatedWait)
}

func TestRegistry_DequeueNextEmptyQueue(t *testing.T) {
	reg, _ := newTestRegistry(t)
	assert.Nil(t, reg.DequeueNext(context.Background(), "agent-1"))
}

func TestRegistry_RemoveFromQueueShiftsLaterEntries(t *testing.T) {
	reg, repo := newTestRegistry(t)
	ctx := context.Background()

	s1 := seedQueuedSession(t, repo, "user-a", "agent-1")
	s2 := seedQueuedSession(t, repo, "user-b", "agent-1")
	s3 := seedQueuedSession(t, repo, "user-c", "agent-1")
	reg.Enqueue(ctx, "agent-1", "user-a", s1.ID)
	reg.Enqueue(ctx, "agent-1", "user-b", s2.ID)
	reg.Enqueue(ctx, "agent-1", "user-c", s3.ID)

	// remove the middle entry
	assert.True(t, reg.RemoveFromQueue(ctx, "agent-1", s2.ID))
	assert.Equal(t, 2, reg.QueueLength("agent-1"))

	snap := reg.Snapshot("agent-1")
	require.Len(t, snap.Queue, 2)
	assert.Equal(t, s1.ID, snap.Queue[0].SessionID)
	assert.Equal(t, 1, snap.Queue[0].Position)
	assert.Equal(t, s3.ID, snap.Queue[1].SessionID)
	assert.Equal(t, 2, snap.Queue[1].Position)

	stored, err := repo.GetByID(ctx, s3.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.QueuePosition)
	assert.Equal(t, 2, *stored.QueuePosition)
}

func TestRegistry_RemoveFromQueueUnknownSession(t *testing.T) {
	reg, repo := newTestRegistry(t)
	ctx := context.Background()

	assert.False(t, reg.RemoveFromQueue(ctx, "agent-1", "missing"))

	s1 := seedQueuedSession(t, repo, "user-a", "agent-1")
	reg.Enqueue(ctx, "agent-1", "user-a", s1.ID)
	assert.False(t, reg.RemoveFromQueue(ctx, "agent-1", "missing"))
	assert.Equal(t, 1, reg.QueueLength("agent-1"))
}

func TestRegistry_PeekNextDoesNotRemove(t *testing.T) {
	reg, repo := newTestRegistry(t)
	ctx := context.Background()

	assert.Nil(t, reg.PeekNext("agent-1"))

	s1 := seedQueuedSession(t, repo, "user-a", "agent-1")
	reg.Enqueue(ctx, "agent-1", "user-a", s1.ID)

	head := reg.PeekNext("agent-1")
	require.NotNil(t, head)
	assert.Equal(t, s1.ID, head.SessionID)
	assert.Equal(t, 1, reg.QueueLength("agent-1"))
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	reg, repo := newTestRegistry(t)
	ctx := context.Background()

	now := time.Now()
	reg.SetActive("agent-1", &domain.ActiveSession{
		SessionID: "sess-1",
		UserID:    "user-1",
		AgentID:   "agent-1",
		StartTime: now,
		EndTime:   now.Add(5 * time.Minute),
	})
	s1 := seedQueuedSession(t, repo, "user-a", "agent-1")
	reg.Enqueue(ctx, "agent-1", "user-a", s1.ID)

	snap := reg.Snapshot("agent-1")
	require.NotNil(t, snap.ActiveSession)
	require.Len(t, snap.Queue, 1)

	// mutating the snapshot must not leak into registry state
	snap.ActiveSession.SessionID = "tampered"
	snap.Queue[0].Position = 99

	fresh := reg.Snapshot("agent-1")
	assert.Equal(t, "sess-1", fresh.ActiveSession.SessionID)
	assert.Equal(t, 1, fresh.Queue[0].Position)
}

func TestRegistry_QueuesAreIsolatedPerAgent(t *testing.T) {
	reg, repo := newTestRegistry(t)
	ctx := context.Background()

	s1 := seedQueuedSession(t, repo, "user-a", "agent-1")
	s2 := seedQueuedSession(t, repo, "user-b", "agent-2")

	assert.Equal(t, 1, reg.Enqueue(ctx, "agent-1", "user-a", s1.ID))
	assert.Equal(t, 1, reg.Enqueue(ctx, "agent-2", "user-b", s2.ID))
	assert.Equal(t, 1, reg.QueueLength("agent-1"))
	assert.Equal(t, 1, reg.QueueLength("agent-2"))

	head := reg.DequeueNext(ctx, "agent-1")
	require.NotNil(t, head)
	assert.Equal(t, s1.ID, head.SessionID)
	assert.Equal(t, 1, reg.QueueLength("agent-2"))
}
