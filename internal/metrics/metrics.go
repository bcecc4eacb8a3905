package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/airtime-live/stagedoor/pkg/telemetry"
)

var (
	// Session counters
	SessionsBooked    *telemetry.Counter
	SessionsStarted   *telemetry.Counter
	SessionsEnded     *telemetry.Counter
	SessionsCancelled *telemetry.Counter
	SessionsRecovered *telemetry.Counter

	// Queue counters
	QueueJoined   *telemetry.Counter
	QueuePromoted *telemetry.Counter

	// Points counters
	PointsSpent       *telemetry.Counter
	PointsRefunded    *telemetry.Counter
	PointsRegenerated *telemetry.Counter
	SpendRejections   *telemetry.Counter

	// Histograms
	SessionDuration *telemetry.Histogram
	QueueWaitTime   *telemetry.Histogram
	RegenSweepTime  *telemetry.Histogram

	// Gauges
	ActiveSessions *telemetry.UpDownCounter
	QueueDepth     *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all session and points metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	SessionsBooked, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "session_bookings_total",
		Description: "Total number of session bookings accepted",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SessionsStarted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "session_starts_total",
		Description: "Total number of sessions admitted to an agent",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SessionsEnded, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "session_ends_total",
		Description: "Total number of sessions completed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SessionsCancelled, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "session_cancellations_total",
		Description: "Total number of queued sessions cancelled",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SessionsRecovered, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "session_recoveries_total",
		Description: "Total number of orphaned sessions closed on startup",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	QueueJoined, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "queue_joins_total",
		Description: "Total number of sessions enqueued behind a busy agent",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	QueuePromoted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "queue_promotions_total",
		Description: "Total number of queued sessions promoted to active",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	PointsSpent, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "points_spent_total",
		Description: "Total points deducted from balances",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	PointsRefunded, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "points_refunded_total",
		Description: "Total points returned by cancellations",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	PointsRegenerated, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "points_regenerated_total",
		Description: "Total points granted by scheduled regeneration",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SpendRejections, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "points_spend_rejections_total",
		Description: "Total spends rejected for insufficient balance",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SessionDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "session_duration_seconds",
		Description: "Wall time from session start to end",
		Unit:        "s",
	}, []float64{30, 60, 120, 180, 240, 300, 420, 600}) // 30s to 10min
	if err != nil {
		return err
	}

	QueueWaitTime, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "queue_wait_time_seconds",
		Description: "Time spent waiting in an agent queue",
		Unit:        "s",
	}, []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200}) // 1s to 20min
	if err != nil {
		return err
	}

	RegenSweepTime, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "points_regen_sweep_seconds",
		Description: "Duration of one regeneration sweep",
		Unit:        "s",
	}, []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30})
	if err != nil {
		return err
	}

	ActiveSessions, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "session_active_current",
		Description: "Current number of active sessions",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	QueueDepth, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "queue_depth",
		Description: "Current number of waiting sessions across agents",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordBooking records an accepted booking
func RecordBooking(ctx context.Context, agentID string, queued bool) {
	if SessionsBooked != nil {
		SessionsBooked.Inc(ctx,
			attribute.String("agent_id", agentID),
			attribute.Bool("queued", queued),
		)
	}
	if queued {
		if QueueJoined != nil {
			QueueJoined.Inc(ctx, attribute.String("agent_id", agentID))
		}
		if QueueDepth != nil {
			QueueDepth.Inc(ctx)
		}
	}
}

// RecordSessionStart records an admission
func RecordSessionStart(ctx context.Context, agentID string, promoted bool, waitSeconds float64) {
	if SessionsStarted != nil {
		SessionsStarted.Inc(ctx, attribute.String("agent_id", agentID))
	}
	if ActiveSessions != nil {
		ActiveSessions.Inc(ctx)
	}
	if promoted {
		if QueuePromoted != nil {
			QueuePromoted.Inc(ctx, attribute.String("agent_id", agentID))
		}
		if QueueDepth != nil {
			QueueDepth.Dec(ctx)
		}
		if QueueWaitTime != nil {
			QueueWaitTime.Record(ctx, waitSeconds, attribute.String("agent_id", agentID))
		}
	}
}

// RecordSessionEnd records a completed session
func RecordSessionEnd(ctx context.Context, agentID, reason string, durationSeconds float64) {
	if SessionsEnded != nil {
		SessionsEnded.Inc(ctx,
			attribute.String("agent_id", agentID),
			attribute.String("reason", reason),
		)
	}
	if ActiveSessions != nil {
		ActiveSessions.Dec(ctx)
	}
	if SessionDuration != nil {
		SessionDuration.Record(ctx, durationSeconds, attribute.String("agent_id", agentID))
	}
}

// RecordCancellation records a queued session cancellation
func RecordCancellation(ctx context.Context, agentID string) {
	if SessionsCancelled != nil {
		SessionsCancelled.Inc(ctx, attribute.String("agent_id", agentID))
	}
	if QueueDepth != nil {
		QueueDepth.Dec(ctx)
	}
}

// RecordRecovery records orphaned sessions closed on startup
func RecordRecovery(ctx context.Context, count int64) {
	if SessionsRecovered != nil {
		SessionsRecovered.Add(ctx, count)
	}
}

// RecordSpend records a points deduction
func RecordSpend(ctx context.Context, amount int, reason string) {
	if PointsSpent != nil {
		PointsSpent.Add(ctx, int64(amount), attribute.String("reason", reason))
	}
}

// RecordSpendRejection records a spend rejected for insufficient balance
func RecordSpendRejection(ctx context.Context, reason string) {
	if SpendRejections != nil {
		SpendRejections.Inc(ctx, attribute.String("reason", reason))
	}
}

// RecordRefund records points returned by a cancellation
func RecordRefund(ctx context.Context, amount int) {
	if PointsRefunded != nil {
		PointsRefunded.Add(ctx, int64(amount))
	}
}

// RecordRegen records a regeneration grant
func RecordRegen(ctx context.Context, amount int) {
	if PointsRegenerated != nil {
		PointsRegenerated.Add(ctx, int64(amount))
	}
}

// RecordRegenSweep records the duration of one regeneration sweep
func RecordRegenSweep(ctx context.Context, durationSeconds float64, usersVisited int) {
	if RegenSweepTime != nil {
		RegenSweepTime.Record(ctx, durationSeconds,
			attribute.Int("users_visited", usersVisited),
		)
	}
}
