package repository

import (
	"context"
	"iter"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

const defaultListPageSize = 50

// FailureLog durably stores notifications that no provider delivered.
type FailureLog interface {
	// Record stores the request and its attempts keyed by correlation ID. Recording the same
	// correlation ID again replaces the earlier entry.
	Record(ctx context.Context, req domain.NotificationRequest, attempts []domain.AttemptOutcome) (*domain.FailureLogEntry, error)
	// List yields entries newest first. Pages are fetched lazily and every range over the sequence
	// starts again from the newest entry.
	List(ctx context.Context) iter.Seq2[domain.FailureLogEntry, error]
	// Acknowledge flags an entry as handled. Unknown IDs fail with domain.ErrNotFound.
	Acknowledge(ctx context.Context, correlationID string) error
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
}

func newFailureLogEntry(req domain.NotificationRequest, attempts []domain.AttemptOutcome, loggedAt time.Time) domain.FailureLogEntry {
	copied := make([]domain.AttemptOutcome, len(attempts))
	copy(copied, attempts)

	return domain.FailureLogEntry{
		Request:  req,
		Attempts: copied,
		LoggedAt: loggedAt.UTC(),
	}
}
