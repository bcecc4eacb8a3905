package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/airtime-live/stagedoor/internal/domain"
	"github.com/airtime-live/stagedoor/internal/dto"
	"github.com/airtime-live/stagedoor/internal/metrics"
	"github.com/airtime-live/stagedoor/internal/repository"
	"github.com/airtime-live/stagedoor/pkg/logger"
	"github.com/airtime-live/stagedoor/pkg/telemetry"
)

// PointsService defines the interface for balance and ledger business logic.
// All balance mutations for one user are serialized; the ledger records a
// before/after pair for every movement and a balance never goes negative.
type PointsService interface {
	// Spend deducts points from a user's balance
	Spend(ctx context.Context, userID string, amount int, description, relatedID string) (*domain.Transaction, error)

	// Earn credits points to a user's balance; the cap does not apply
	Earn(ctx context.Context, userID string, kind domain.TransactionKind, amount int, description, relatedID string) (*domain.Transaction, error)

	// Regenerate applies one scheduled regeneration to a user: grants the
	// configured amount clamped to the cap and advances the next regen time.
	// Returns nil when the user was at the cap and only got rescheduled.
	Regenerate(ctx context.Context, userID string) (*domain.Transaction, error)

	// GetBalance retrieves a user's current balance and regeneration info
	GetBalance(ctx context.Context, userID string) (*dto.BalanceResponse, error)

	// GetHistory retrieves a page of a user's ledger entries, newest first
	GetHistory(ctx context.Context, userID string, page, pageSize int) (*dto.TransactionHistoryResponse, error)
}

// pointsService implements PointsService
type pointsService struct {
	userRepo       repository.UserRepository
	txRepo         repository.TransactionRepository
	notifier       Notifier
	eventPublisher EventPublisher
	userLocks      *keyedMutex
	maxPoints      int
	regenAmount    int
	regenInterval  time.Duration
	log            *logger.Logger
}

// PointsServiceConfig contains configuration for the points service
type PointsServiceConfig struct {
	MaxPoints     int
	RegenAmount   int
	RegenInterval time.Duration
}

// NewPointsService creates a new points service
func NewPointsService(
	userRepo repository.UserRepository,
	txRepo repository.TransactionRepository,
	notifier Notifier,
	eventPublisher EventPublisher,
	cfg *PointsServiceConfig,
) PointsService {
	maxPoints := 100
	regenAmount := 50
	regenInterval := 24 * time.Hour
	if cfg != nil {
		if cfg.MaxPoints > 0 {
			maxPoints = cfg.MaxPoints
		}
		if cfg.RegenAmount > 0 {
			regenAmount = cfg.RegenAmount
		}
		if cfg.RegenInterval > 0 {
			regenInterval = cfg.RegenInterval
		}
	}
	if notifier == nil {
		notifier = NewNoOpNotifier()
	}
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &pointsService{
		userRepo:       userRepo,
		txRepo:         txRepo,
		notifier:       notifier,
		eventPublisher: eventPublisher,
		userLocks:      newKeyedMutex(),
		maxPoints:      maxPoints,
		regenAmount:    regenAmount,
		regenInterval:  regenInterval,
		log:            logger.Get(),
	}
}

// Spend deducts points from a user's balance
func (s *pointsService) Spend(ctx context.Context, userID string, amount int, description, relatedID string) (*domain.Transaction, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.points.spend")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("amount", amount),
	)

	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}
	if amount <= 0 {
		span.SetStatus(codes.Error, "invalid amount")
		return nil, domain.ErrInvalidAmount
	}

	unlock := s.userLocks.lock(userID)
	defer unlock()

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, err
	}
	if !user.IsActive {
		span.SetStatus(codes.Error, "user inactive")
		return nil, domain.ErrUserInactive
	}
	if !user.CanAfford(amount) {
		metrics.RecordSpendRejection(ctx, description)
		span.SetStatus(codes.Error, "insufficient points")
		return nil, domain.ErrInsufficientPoints
	}

	tx, err := s.applyMovement(ctx, user, domain.TransactionSpend, amount, description, relatedID)
	if err != nil {
		span.SetStatus(codes.Error, "movement failed")
		return nil, err
	}

	metrics.RecordSpend(ctx, amount, description)
	span.SetStatus(codes.Ok, "points spent")
	return tx, nil
}

// Earn credits points to a user's balance
func (s *pointsService) Earn(ctx context.Context, userID string, kind domain.TransactionKind, amount int, description, relatedID string) (*domain.Transaction, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.points.earn")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("kind", kind.String()),
		attribute.Int("amount", amount),
	)

	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}
	if amount <= 0 || kind.Debit() {
		span.SetStatus(codes.Error, "invalid amount")
		return nil, domain.ErrInvalidAmount
	}

	unlock := s.userLocks.lock(userID)
	defer unlock()

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, err
	}

	tx, err := s.applyMovement(ctx, user, kind, amount, description, relatedID)
	if err != nil {
		span.SetStatus(codes.Error, "movement failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "points earned")
	return tx, nil
}

// Regenerate applies one scheduled regeneration to a user
func (s *pointsService) Regenerate(ctx context.Context, userID string) (*domain.Transaction, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.points.regenerate")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	unlock := s.userLocks.lock(userID)
	defer unlock()

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, err
	}

	// Re-check under the lock; a spend or earn may have raced the sweep
	if !user.RegenDue(time.Now()) {
		span.SetStatus(codes.Ok, "not due")
		return nil, nil
	}

	next := time.Now().Add(s.regenInterval)

	grant := s.regenAmount
	if room := s.maxPoints - user.Points; room < grant {
		grant = room
	}

	// At or above the cap: only reschedule
	if grant <= 0 {
		user.NextRegenAt = &next
		if err := s.userRepo.Update(ctx, user); err != nil {
			span.SetStatus(codes.Error, "reschedule failed")
			return nil, err
		}
		span.SetStatus(codes.Ok, "at cap, rescheduled")
		return nil, nil
	}

	user.NextRegenAt = &next
	tx, err := s.applyMovement(ctx, user, domain.TransactionRegenerate, grant, "scheduled regeneration", "")
	if err != nil {
		span.SetStatus(codes.Error, "movement failed")
		return nil, err
	}

	metrics.RecordRegen(ctx, grant)
	span.SetStatus(codes.Ok, "points regenerated")
	return tx, nil
}

// GetBalance retrieves a user's current balance and regeneration info
func (s *pointsService) GetBalance(ctx context.Context, userID string) (*dto.BalanceResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.points.get_balance")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "balance retrieved")
	return &dto.BalanceResponse{
		UserID:      user.ID,
		Points:      user.Points,
		MaxPoints:   s.maxPoints,
		NextRegenAt: user.NextRegenAt,
	}, nil
}

// GetHistory retrieves a page of a user's ledger entries, newest first
func (s *pointsService) GetHistory(ctx context.Context, userID string, page, pageSize int) (*dto.TransactionHistoryResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.points.get_history")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("page", page),
	)

	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	offset := (page - 1) * pageSize
	entries, err := s.txRepo.ListByUser(ctx, userID, pageSize, offset)
	if err != nil {
		span.SetStatus(codes.Error, "history lookup failed")
		return nil, err
	}

	total, err := s.txRepo.CountByUser(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "count failed")
		return nil, err
	}

	resp := &dto.TransactionHistoryResponse{
		Transactions: make([]*dto.TransactionResponse, 0, len(entries)),
		Page:         page,
		PageSize:     pageSize,
		HasMore:      offset+len(entries) < total,
	}
	for _, e := range entries {
		resp.Transactions = append(resp.Transactions, dto.TransactionFromDomain(e))
	}

	span.SetStatus(codes.Ok, "history retrieved")
	return resp, nil
}

// applyMovement mutates the balance, persists the user and appends the
// ledger entry. Callers must hold the user's lock.
func (s *pointsService) applyMovement(ctx context.Context, user *domain.User, kind domain.TransactionKind, amount int, description, relatedID string) (*domain.Transaction, error) {
	before := user.Points
	if kind.Debit() {
		user.Points = before - amount
	} else {
		user.Points = before + amount
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		user.Points = before
		return nil, err
	}

	tx := &domain.Transaction{
		ID:            uuid.New().String(),
		UserID:        user.ID,
		Kind:          kind,
		Amount:        amount,
		Description:   description,
		RelatedID:     relatedID,
		BalanceBefore: before,
		BalanceAfter:  user.Points,
		CreatedAt:     time.Now(),
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		return nil, err
	}

	s.fanOut(ctx, tx)
	return tx, nil
}

// fanOut delivers the balance change to the user and the audit stream.
// Both are best effort; the movement has already committed.
func (s *pointsService) fanOut(ctx context.Context, tx *domain.Transaction) {
	if err := s.notifier.NotifyUser(ctx, tx.UserID, NotifyPointsChanged, dto.TransactionFromDomain(tx)); err != nil {
		s.log.Warn("failed to notify points change",
			zap.String("user_id", tx.UserID),
			zap.Error(err),
		)
	}
	if err := s.eventPublisher.PublishLedgerEvent(ctx, tx); err != nil {
		s.log.Warn("failed to publish ledger event",
			zap.String("user_id", tx.UserID),
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
	}
}

// keyedMutex serializes operations per key
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for a key and returns its unlock function
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
