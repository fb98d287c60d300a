package observability

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type correlationIDKey struct{}

const serviceName = "notify-dispatch"

// NewLogger builds the JSON production logger. Every entry carries the service name so log
// shippers can route failure-log alerts without parsing messages.
func NewLogger(level string) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.MessageKey = "message"
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	cfg.InitialFields = map[string]any{"service": serviceName}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	var parsed zapcore.Level
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		normalized = "info"
	}

	if err := parsed.UnmarshalText([]byte(normalized)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return parsed, nil
}

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	correlationID, ok := ctx.Value(correlationIDKey{}).(string)
	if !ok || correlationID == "" {
		return "", false
	}

	return correlationID, true
}

func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}

	correlationID, ok := CorrelationIDFromContext(ctx)
	if !ok {
		return logger
	}

	return logger.With(zap.String("correlationId", correlationID))
}

// AttemptFields renders an attempt outcome as structured log fields.
func AttemptFields(outcome domain.AttemptOutcome) []zap.Field {
	fields := []zap.Field{
		zap.String("provider", outcome.Provider),
		zap.String("result", outcome.Result.String()),
		zap.Int64("durationMs", outcome.DurationMs),
	}
	if msg := strings.TrimSpace(outcome.ProviderMessage); msg != "" {
		fields = append(fields, zap.String("providerMessage", msg))
	}
	return fields
}

// RequestFields carries everything an operator needs to resend a notification by hand.
func RequestFields(req domain.NotificationRequest) []zap.Field {
	return []zap.Field{
		zap.String("kind", req.Kind.String()),
		zap.String("recipient", req.Recipient),
		zap.String("body", req.Body),
		zap.Int("bodyLength", len([]rune(req.Body))),
	}
}
