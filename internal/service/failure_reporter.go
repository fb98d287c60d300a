package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/observability"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultFailureReportInterval = 5 * time.Minute
	defaultFailureReportLimit    = 1000
	maxReportedCorrelationIDs    = 10
)

// FailureReporter periodically surfaces unacknowledged failure log entries so undelivered
// notifications are noticed without someone polling the admin API.
type FailureReporter struct {
	failures repository.FailureLog
	logger   *zap.Logger
	metrics  *observability.Metrics
	interval time.Duration
	limit    int
}

func NewFailureReporter(
	failures repository.FailureLog,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*FailureReporter, error) {
	if failures == nil {
		return nil, fmt.Errorf("failure log is required")
	}
	if interval <= 0 {
		interval = defaultFailureReportInterval
	}
	if limit <= 0 {
		limit = defaultFailureReportLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FailureReporter{
		failures: failures,
		logger:   logger,
		interval: interval,
		limit:    limit,
	}, nil
}

func (r *FailureReporter) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

func (r *FailureReporter) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Report once at startup so entries left by a previous run are visible immediately.
	if err := r.report(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("failure report initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.report(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("failure report scan failed", zap.Error(err))
			}
		}
	}
}

// report counts unacknowledged entries among the newest limit entries.
func (r *FailureReporter) report(ctx context.Context) error {
	pending := 0
	scanned := 0
	ids := make([]string, 0, maxReportedCorrelationIDs)

	for entry, err := range r.failures.List(ctx) {
		if err != nil {
			return fmt.Errorf("failed to scan failure log: %w", err)
		}
		scanned++
		if !entry.Acknowledged {
			pending++
			if len(ids) < maxReportedCorrelationIDs {
				ids = append(ids, entry.Request.CorrelationID)
			}
		}
		if scanned >= r.limit {
			break
		}
	}

	r.metrics.SetFailureLogPending(pending)
	if pending == 0 {
		return nil
	}

	r.logger.Warn("undelivered notifications awaiting follow-up",
		zap.Int("pending", pending),
		zap.Strings("correlationIds", ids),
	)
	return nil
}
