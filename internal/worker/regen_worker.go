package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/airtime-live/stagedoor/internal/metrics"
	"github.com/airtime-live/stagedoor/internal/repository"
	"github.com/airtime-live/stagedoor/internal/service"
	"github.com/airtime-live/stagedoor/pkg/logger"
)

// RegenWorkerConfig contains configuration for the regeneration worker
type RegenWorkerConfig struct {
	// SweepInterval is the interval between sweeps for due users
	SweepInterval time.Duration

	// BatchSize is the number of users visited per sweep
	BatchSize int
}

// DefaultRegenWorkerConfig returns default configuration
func DefaultRegenWorkerConfig() *RegenWorkerConfig {
	return &RegenWorkerConfig{
		SweepInterval: time.Minute,
		BatchSize:     500,
	}
}

// RegenWorker periodically grants scheduled point regenerations. Sweeps
// never overlap; a sweep that outlasts the interval skips the next tick.
type RegenWorker struct {
	userRepo repository.UserRepository
	points   service.PointsService
	config   *RegenWorkerConfig
	cron     *cron.Cron
	log      *logger.Logger
	mu       sync.Mutex
	running  bool

	// Stats
	totalGranted  int64
	lastSweepTime time.Time
	lastDueCount  int
}

// NewRegenWorker creates a new regeneration worker
func NewRegenWorker(
	userRepo repository.UserRepository,
	points service.PointsService,
	config *RegenWorkerConfig,
) *RegenWorker {
	if config == nil {
		config = DefaultRegenWorkerConfig()
	}

	return &RegenWorker{
		userRepo: userRepo,
		points:   points,
		config:   config,
		log:      logger.Get(),
	}
}

// Start starts the regeneration worker
func (w *RegenWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("regen worker already running")
	}

	w.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	spec := fmt.Sprintf("@every %s", w.config.SweepInterval)
	if _, err := w.cron.AddFunc(spec, w.sweep); err != nil {
		return fmt.Errorf("failed to schedule regen sweep: %w", err)
	}

	w.cron.Start()
	w.running = true
	w.log.Info("Starting regen worker",
		zap.Duration("sweep_interval", w.config.SweepInterval),
		zap.Int("batch_size", w.config.BatchSize),
	)
	return nil
}

// Stop stops the regeneration worker and waits for a running sweep
func (w *RegenWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	<-w.cron.Stop().Done()
	w.running = false
	w.log.Info("Regen worker stopped", zap.Int64("total_granted", w.totalGranted))
}

// IsRunning reports whether the worker is running
func (w *RegenWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// sweep visits every due user once and applies their regeneration
func (w *RegenWorker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.SweepInterval)
	defer cancel()

	start := time.Now()
	granted, visited, err := w.SweepOnce(ctx)
	if err != nil {
		w.log.Error("Regen sweep failed", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.totalGranted += int64(granted)
	w.lastSweepTime = start
	w.lastDueCount = visited
	w.mu.Unlock()

	metrics.RecordRegenSweep(ctx, time.Since(start).Seconds(), visited)

	if visited > 0 {
		w.log.Info("Regen sweep complete",
			zap.Int("users_due", visited),
			zap.Int("grants", granted),
			zap.Duration("took", time.Since(start)),
		)
	}
}

// SweepOnce runs a single sweep and returns the grant and visit counts
func (w *RegenWorker) SweepOnce(ctx context.Context) (granted, visited int, err error) {
	due, err := w.userRepo.ListRegenDue(ctx, time.Now(), w.config.BatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list due users: %w", err)
	}

	for _, user := range due {
		visited++
		tx, err := w.points.Regenerate(ctx, user.ID)
		if err != nil {
			w.log.Error("Failed to regenerate points",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
			continue
		}
		if tx != nil {
			granted++
		}
	}
	return granted, visited, nil
}
