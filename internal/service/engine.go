package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/observability"
	"github.com/kursadbilgin/notify-dispatch/internal/render"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultFailureListLimit = 100
	maxFailureListLimit     = 1000
)

// MessageRenderer turns event data into a channel-ready body and recipient.
type MessageRenderer interface {
	Render(kind domain.Kind, data domain.EventData) (body string, recipient string, err error)
	NormalizePhone(phone string) string
}

// Dispatcher delivers one rendered request through the provider chain.
type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.NotificationRequest) domain.DispatchResult
}

// SendOptions customises a single Send.
type SendOptions struct {
	// CorrelationID overrides the content-derived default.
	CorrelationID string
	// Recipient overrides the recipient chosen by the template.
	Recipient string
}

// BookingNotifications holds the results of NotifyBooking. Customer is nil when no confirmation
// was sent.
type BookingNotifications struct {
	Operator domain.DispatchResult  `json:"operator"`
	Customer *domain.DispatchResult `json:"customer,omitempty"`
}

// Engine is the entry point booking and payment flows call. Only rendering problems are returned
// as errors; provider failures are reported in the DispatchResult and recorded in the failure log.
type Engine struct {
	renderer   MessageRenderer
	dispatcher Dispatcher
	failures   repository.FailureLog
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
	newID      func() string
}

func NewEngine(
	renderer MessageRenderer,
	dispatcher Dispatcher,
	failures repository.FailureLog,
	logger *zap.Logger,
) (*Engine, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if failures == nil {
		return nil, fmt.Errorf("failure log is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		renderer:   renderer,
		dispatcher: dispatcher,
		failures:   failures,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

func (e *Engine) SetMetrics(metrics *observability.Metrics) {
	if e == nil {
		return
	}
	e.metrics = metrics
}

// Send renders kind with data and dispatches it. It fails only with domain.ErrInvalidEventData.
func (e *Engine) Send(ctx context.Context, kind domain.Kind, data domain.EventData, opts SendOptions) (domain.DispatchResult, error) {
	req, err := e.Prepare(kind, data, opts)
	if err != nil {
		return domain.DispatchResult{}, err
	}
	return e.Deliver(ctx, req), nil
}

// Prepare renders a request without sending it.
func (e *Engine) Prepare(kind domain.Kind, data domain.EventData, opts SendOptions) (domain.NotificationRequest, error) {
	body, recipient, err := e.renderer.Render(kind, data)
	if err != nil {
		return domain.NotificationRequest{}, err
	}

	if override := strings.TrimSpace(opts.Recipient); override != "" {
		recipient = e.renderer.NormalizePhone(override)
		if !domain.IsE164(recipient) {
			return domain.NotificationRequest{}, fmt.Errorf("%w: recipient %q is not a phone number", domain.ErrInvalidEventData, opts.Recipient)
		}
	}

	correlationID := strings.TrimSpace(opts.CorrelationID)
	if correlationID == "" {
		correlationID = render.CorrelationID(kind, data)
	}

	return domain.NotificationRequest{
		Recipient:     recipient,
		Body:          body,
		Kind:          kind,
		CorrelationID: correlationID,
	}, nil
}

// Deliver dispatches a prepared request and records it in the failure log when no provider
// delivered it.
func (e *Engine) Deliver(ctx context.Context, req domain.NotificationRequest) domain.DispatchResult {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = observability.WithCorrelationID(ctx, req.CorrelationID)
	base := observability.WithContextLogger(e.logger, ctx)
	logger := base.With(zap.String("kind", req.Kind.String()))

	result := e.dispatcher.Dispatch(ctx, req)
	e.metrics.IncDispatch(req.Kind.String(), result.Succeeded)

	if result.Succeeded {
		logger.Info("notification delivered",
			zap.String("provider", result.FinalProvider),
			zap.Int("attempts", len(result.Attempts)),
		)
		return result
	}

	entry, err := e.failures.Record(context.WithoutCancel(ctx), req, result.Attempts)
	if err != nil {
		e.metrics.IncFailureLogRecord(false)
		fields := append(observability.RequestFields(req), zap.Any("attempts", result.Attempts), zap.Error(err))
		base.Error("failed to record undelivered notification", fields...)
		return result
	}

	e.metrics.IncFailureLogRecord(true)
	result.FailureLogged = true
	logger.Warn("notification undelivered, recorded for manual follow-up",
		zap.Int("attempts", len(result.Attempts)),
		zap.Time("loggedAt", entry.LoggedAt),
	)

	return result
}

// NotifyBooking sends the operator alert for a new booking and, once that succeeded, the
// customer's confirmation when a customer phone is present.
func (e *Engine) NotifyBooking(ctx context.Context, data domain.EventData) (BookingNotifications, error) {
	operator, err := e.Send(ctx, domain.KindBookingCreated, data, SendOptions{})
	if err != nil {
		return BookingNotifications{}, err
	}

	out := BookingNotifications{Operator: operator}
	if !operator.Succeeded || !hasValue(data, "customerPhone") {
		return out, nil
	}

	customer, err := e.Send(ctx, domain.KindBookingConfirmation, data, SendOptions{})
	if err != nil {
		observability.WithContextLogger(e.logger, observability.WithCorrelationID(ctx, operator.CorrelationID)).
			Warn("customer confirmation skipped", zap.Error(err))
		return out, nil
	}
	out.Customer = &customer

	return out, nil
}

// TestConnection sends a timestamped test message to the operator.
func (e *Engine) TestConnection(ctx context.Context) (domain.DispatchResult, error) {
	data := domain.EventData{"sentAt": e.now()}
	return e.Send(ctx, domain.KindGenericTest, data, SendOptions{CorrelationID: "test-" + e.newID()})
}

// Failures lists failure log entries newest first, at most limit of them.
func (e *Engine) Failures(ctx context.Context, limit int) ([]domain.FailureLogEntry, error) {
	if limit <= 0 {
		limit = defaultFailureListLimit
	}
	limit = min(limit, maxFailureListLimit)

	entries := make([]domain.FailureLogEntry, 0, min(limit, defaultFailureListLimit))
	for entry, err := range e.failures.List(ctx) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		if len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

func (e *Engine) AcknowledgeFailure(ctx context.Context, correlationID string) error {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return fmt.Errorf("%w: correlation id is required", domain.ErrValidation)
	}
	if err := e.failures.Acknowledge(ctx, correlationID); err != nil {
		return err
	}

	observability.WithContextLogger(e.logger, observability.WithCorrelationID(ctx, correlationID)).
		Info("failure log entry acknowledged")
	return nil
}

func (e *Engine) ClearFailures(ctx context.Context) error {
	if err := e.failures.Clear(ctx); err != nil {
		return err
	}
	e.logger.Info("failure log cleared")
	return nil
}

func hasValue(data domain.EventData, key string) bool {
	value, ok := data[key]
	if !ok || value == nil {
		return false
	}
	if s, isString := value.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// Ready reports whether the failure log backend is reachable.
func (e *Engine) Ready(ctx context.Context) error {
	return e.failures.Ping(ctx)
}
