package service

import (
	"context"
	"errors"
	"sync"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minAsyncConcurrency = 1

// ErrDispatcherClosed is returned by Submit after Close.
var ErrDispatcherClosed = errors.New("async dispatcher closed")

// AsyncDispatcher runs deliveries in the background so callers can continue their own flow.
// Rendering still happens on the caller's goroutine, so invalid event data is reported
// synchronously.
type AsyncDispatcher struct {
	engine   *Engine
	group    errgroup.Group
	logger   *zap.Logger
	metrics  *observability.Metrics
	onResult func(domain.DispatchResult)

	mu     sync.RWMutex
	closed bool
}

func NewAsyncDispatcher(engine *Engine, concurrency int, logger *zap.Logger) *AsyncDispatcher {
	if concurrency < minAsyncConcurrency {
		concurrency = minAsyncConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &AsyncDispatcher{
		engine: engine,
		logger: logger,
	}
	d.group.SetLimit(concurrency)
	return d
}

func (d *AsyncDispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// OnResult registers a callback invoked with every completed dispatch.
func (d *AsyncDispatcher) OnResult(fn func(domain.DispatchResult)) {
	d.onResult = fn
}

// Submit renders the notification and queues its delivery. It blocks only while the concurrency
// limit is saturated. The returned correlation ID identifies the dispatch in logs and the failure
// log.
func (d *AsyncDispatcher) Submit(ctx context.Context, kind domain.Kind, data domain.EventData, opts SendOptions) (string, error) {
	req, err := d.engine.Prepare(kind, data, opts)
	if err != nil {
		return "", err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return "", ErrDispatcherClosed
	}

	if ctx == nil {
		ctx = context.Background()
	}
	// The caller's request may finish long before the dispatch does.
	ctx = context.WithoutCancel(ctx)

	d.metrics.IncAsyncInFlight()
	d.group.Go(func() error {
		defer d.metrics.DecAsyncInFlight()

		result := d.engine.Deliver(ctx, req)
		if d.onResult != nil {
			d.onResult(result)
		}
		return nil
	})

	return req.CorrelationID, nil
}

// Close stops accepting work and waits for in-flight dispatches to finish.
func (d *AsyncDispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	err := d.group.Wait()
	d.logger.Info("async dispatcher drained")
	return err
}
