package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewFailureReporterValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewFailureReporter(nil, 0, 0, zap.NewNop()); err == nil {
		t.Fatal("expected error when failure log is nil")
	}

	r, err := NewFailureReporter(&fakeFailureLog{}, 0, 0, nil)
	if err != nil {
		t.Fatalf("NewFailureReporter() error = %v", err)
	}
	if r.interval != defaultFailureReportInterval || r.limit != defaultFailureReportLimit {
		t.Fatalf("defaults = %s/%d", r.interval, r.limit)
	}
}

func TestFailureReporterReportCountsUnacknowledged(t *testing.T) {
	t.Parallel()

	failures := &fakeFailureLog{}
	for i := 0; i < 4; i++ {
		failures.entries = append(failures.entries, domain.FailureLogEntry{
			Request:      domain.NotificationRequest{CorrelationID: fmt.Sprintf("evt-%d", i)},
			Acknowledged: i == 1,
		})
	}

	core, logs := observer.New(zapcore.DebugLevel)
	r, err := NewFailureReporter(failures, time.Minute, 3, zap.New(core))
	if err != nil {
		t.Fatalf("NewFailureReporter() error = %v", err)
	}

	if err := r.report(context.Background()); err != nil {
		t.Fatalf("report() error = %v", err)
	}

	warned := logs.FilterMessage("undelivered notifications awaiting follow-up").All()
	if len(warned) != 1 {
		t.Fatalf("warn logs = %d, want 1", len(warned))
	}
	// Only the newest three entries are scanned.
	if got := warned[0].ContextMap()["pending"]; got != int64(2) {
		t.Fatalf("pending = %v, want 2", got)
	}
}

func TestFailureReporterReportQuietWhenNothingPending(t *testing.T) {
	t.Parallel()

	failures := &fakeFailureLog{entries: []domain.FailureLogEntry{{Acknowledged: true}}}
	core, logs := observer.New(zapcore.DebugLevel)
	r, err := NewFailureReporter(failures, time.Minute, 0, zap.New(core))
	if err != nil {
		t.Fatalf("NewFailureReporter() error = %v", err)
	}

	if err := r.report(context.Background()); err != nil {
		t.Fatalf("report() error = %v", err)
	}
	if logs.Len() != 0 {
		t.Fatalf("logs = %d, want none", logs.Len())
	}
}

func TestFailureReporterReportListError(t *testing.T) {
	t.Parallel()

	r, err := NewFailureReporter(&fakeFailureLog{listErr: errors.New("redis down")}, time.Minute, 0, nil)
	if err != nil {
		t.Fatalf("NewFailureReporter() error = %v", err)
	}
	if err := r.report(context.Background()); err == nil {
		t.Fatal("report() expected error")
	}
}

func TestFailureReporterStartStopsOnCancel(t *testing.T) {
	t.Parallel()

	r, err := NewFailureReporter(&fakeFailureLog{}, 10*time.Millisecond, 0, nil)
	if err != nil {
		t.Fatalf("NewFailureReporter() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Start(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
