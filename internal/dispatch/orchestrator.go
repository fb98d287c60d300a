package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/health"
	"github.com/kursadbilgin/notify-dispatch/internal/observability"
	"github.com/kursadbilgin/notify-dispatch/internal/provider"
	"github.com/kursadbilgin/notify-dispatch/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	skipReasonNoCredentials = "credentials not configured"
	skipReasonUnhealthy     = "flagged unhealthy after authentication failure"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds each adapter call. Non-positive values keep provider.DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithRateLimiter denies calls to providers that are over budget.
func WithRateLimiter(limiter ratelimit.RateLimiter) Option {
	return func(o *Orchestrator) {
		o.limiter = limiter
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// Orchestrator walks the priority-ordered adapter chain for one request at a time. It is safe for
// concurrent dispatches; health state is shared through the registry.
type Orchestrator struct {
	mu       sync.RWMutex
	adapters []provider.Adapter

	health  *health.Registry
	limiter ratelimit.RateLimiter
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

func New(adapters []provider.Adapter, registry *health.Registry, opts ...Option) (*Orchestrator, error) {
	if registry == nil {
		return nil, fmt.Errorf("health registry is required")
	}

	ordered, err := orderAdapters(adapters)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		adapters: ordered,
		health:   registry,
		timeout:  provider.DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// Replace swaps the adapter chain and clears all health flags.
func (o *Orchestrator) Replace(adapters []provider.Adapter) error {
	ordered, err := orderAdapters(adapters)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.adapters = ordered
	o.mu.Unlock()

	o.health.Reset()
	return nil
}

// Descriptors returns the adapter descriptors in attempt order.
func (o *Orchestrator) Descriptors() []domain.ProviderDescriptor {
	adapters := o.snapshot()

	out := make([]domain.ProviderDescriptor, 0, len(adapters))
	for _, adapter := range adapters {
		out = append(out, adapter.Descriptor())
	}
	return out
}

func (o *Orchestrator) Health() *health.Registry {
	return o.health
}

// Dispatch tries adapters in priority order until one succeeds. It never fails: every problem is
// reported as an attempt outcome. A dispatch is not cancelled by its caller once started; each
// attempt is bounded by the per-attempt timeout instead.
func (o *Orchestrator) Dispatch(ctx context.Context, req domain.NotificationRequest) domain.DispatchResult {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(observability.WithCorrelationID(ctx, req.CorrelationID))
	logger := observability.WithContextLogger(o.logger, ctx)

	adapters := o.snapshot()
	result := domain.DispatchResult{
		CorrelationID: req.CorrelationID,
		Attempts:      make([]domain.AttemptOutcome, 0, len(adapters)),
	}

	for _, adapter := range adapters {
		desc := adapter.Descriptor()

		if reason, skip := o.skipReason(desc); skip {
			outcome := domain.AttemptOutcome{
				Provider:        desc.Name,
				StartedAt:       time.Now().UTC(),
				Result:          domain.ResultSkipped,
				ProviderMessage: reason,
			}
			result.Attempts = append(result.Attempts, outcome)
			o.metrics.IncProviderAttempt(desc.Name, outcome.Result.String())
			logger.Debug("provider skipped", observability.AttemptFields(outcome)...)
			continue
		}

		outcome := o.attempt(ctx, adapter, desc.Name, req)
		result.Attempts = append(result.Attempts, outcome)
		o.record(logger, outcome)

		if outcome.Result == domain.ResultSuccess {
			result.Succeeded = true
			result.FinalProvider = desc.Name
			break
		}
	}

	return result
}

func (o *Orchestrator) skipReason(desc domain.ProviderDescriptor) (string, bool) {
	if !desc.CredentialsPresent {
		return skipReasonNoCredentials, true
	}
	if o.health.IsUnhealthy(desc.Name) {
		return skipReasonUnhealthy, true
	}
	return "", false
}

func (o *Orchestrator) attempt(
	ctx context.Context,
	adapter provider.Adapter,
	name string,
	req domain.NotificationRequest,
) domain.AttemptOutcome {
	startedAt := time.Now()

	if o.limiter != nil {
		allowed, err := o.limiter.Allow(ctx, name)
		switch {
		case err != nil:
			// Fail open: losing the limiter must not stop notifications.
			o.logger.Warn("rate limiter unavailable, sending without limit",
				zap.String("provider", name),
				zap.Error(err),
			)
		case !allowed:
			return domain.AttemptOutcome{
				Provider:        name,
				StartedAt:       startedAt.UTC(),
				DurationMs:      time.Since(startedAt).Milliseconds(),
				Result:          domain.ResultTransportError,
				ProviderMessage: "rate limited",
			}
		}
	}

	outcome := o.invoke(ctx, adapter, req)
	outcome.Provider = name
	if outcome.StartedAt.IsZero() {
		outcome.StartedAt = startedAt.UTC()
	}
	outcome.DurationMs = time.Since(startedAt).Milliseconds()
	if !outcome.Result.IsValid() || outcome.Result == domain.ResultSkipped {
		outcome.Result = domain.ResultTransportError
	}

	return outcome
}

// invoke runs one Send under the attempt timeout, converting panics and overruns into transport
// failures.
func (o *Orchestrator) invoke(ctx context.Context, adapter provider.Adapter, req domain.NotificationRequest) domain.AttemptOutcome {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan domain.AttemptOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- domain.AttemptOutcome{
					Result:          domain.ResultTransportError,
					ProviderMessage: fmt.Sprintf("adapter panicked: %v", r),
				}
			}
		}()
		done <- adapter.Send(ctx, req.Recipient, req.Body)
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-ctx.Done():
		return domain.AttemptOutcome{
			Result:          domain.ResultTransportError,
			ProviderMessage: fmt.Sprintf("attempt timed out after %s", o.timeout),
		}
	}
}

func (o *Orchestrator) record(logger *zap.Logger, outcome domain.AttemptOutcome) {
	o.health.Observe(outcome.Provider, outcome.Result)
	o.metrics.IncProviderAttempt(outcome.Provider, outcome.Result.String())
	o.metrics.ObserveProviderAttemptDuration(outcome.Provider, time.Duration(outcome.DurationMs)*time.Millisecond)

	if outcome.Result == domain.ResultAuthError {
		logger.Error("provider rejected its credentials, skipping it until reload", observability.AttemptFields(outcome)...)
		return
	}
	logger.Debug("provider attempt finished", observability.AttemptFields(outcome)...)
}

func (o *Orchestrator) snapshot() []provider.Adapter {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.adapters
}

// orderAdapters validates the chain and sorts it by ascending priority, keeping registration order
// for ties.
func orderAdapters(adapters []provider.Adapter) ([]provider.Adapter, error) {
	if len(adapters) == 0 {
		return nil, domain.ErrNoProviders
	}

	seen := make(map[string]struct{}, len(adapters))
	ordered := make([]provider.Adapter, 0, len(adapters))
	for i, adapter := range adapters {
		if adapter == nil {
			return nil, fmt.Errorf("%w: adapter %d is nil", domain.ErrValidation, i)
		}
		name := strings.TrimSpace(adapter.Descriptor().Name)
		if name == "" {
			return nil, fmt.Errorf("%w: adapter %d has no name", domain.ErrValidation, i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate adapter %q", domain.ErrValidation, name)
		}
		seen[name] = struct{}{}
		ordered = append(ordered, adapter)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Descriptor().Priority < ordered[j].Descriptor().Priority
	})

	return ordered, nil
}
