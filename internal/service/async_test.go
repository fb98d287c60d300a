package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAsyncDispatcherSubmit(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	dispatcher := &fakeDispatcher{dispatchFn: func(_ context.Context, req domain.NotificationRequest) domain.DispatchResult {
		<-release
		return undelivered(req)
	}}
	failures := &fakeFailureLog{}
	engine := newTestEngine(t, dispatcher, failures, nil)

	metrics := observability.NewMetrics()
	async := NewAsyncDispatcher(engine, 2, nil)
	async.SetMetrics(metrics)

	var (
		mu      sync.Mutex
		results []domain.DispatchResult
	)
	async.OnResult(func(result domain.DispatchResult) {
		mu.Lock()
		results = append(results, result)
		mu.Unlock()
	})

	id, err := async.Submit(context.Background(), domain.KindBookingCreated, bookingData(), SendOptions{CorrelationID: "evt-async"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if id != "evt-async" {
		t.Fatalf("Submit() id = %q, want evt-async", id)
	}
	assertInFlight(t, metrics, 1)

	close(release)
	if err := async.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if len(results) != 1 || !results[0].FailureLogged {
		t.Fatalf("results = %+v, want one logged failure", results)
	}
	if len(failures.recorded()) != 1 {
		t.Fatal("undelivered async notification should be recorded")
	}
	assertInFlight(t, metrics, 0)
}

func TestAsyncDispatcherRejectsInvalidEventDataSynchronously(t *testing.T) {
	t.Parallel()

	dispatcher := &fakeDispatcher{}
	async := NewAsyncDispatcher(newTestEngine(t, dispatcher, &fakeFailureLog{}, nil), 1, nil)
	t.Cleanup(func() { _ = async.Close() })

	_, err := async.Submit(context.Background(), domain.KindBookingConfirmation, domain.EventData{}, SendOptions{})
	if !errors.Is(err, domain.ErrInvalidEventData) {
		t.Fatalf("Submit() error = %v, want ErrInvalidEventData", err)
	}
	if len(dispatcher.calls()) != 0 {
		t.Fatal("dispatch should not run")
	}
}

func TestAsyncDispatcherOutlivesCallerContext(t *testing.T) {
	t.Parallel()

	var cancelledDuringDispatch atomic.Bool
	dispatcher := &fakeDispatcher{dispatchFn: func(ctx context.Context, req domain.NotificationRequest) domain.DispatchResult {
		time.Sleep(20 * time.Millisecond)
		cancelledDuringDispatch.Store(ctx.Err() != nil)
		return delivered(req)
	}}
	async := NewAsyncDispatcher(newTestEngine(t, dispatcher, &fakeFailureLog{}, nil), 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := async.Submit(ctx, domain.KindGenericTest, domain.EventData{}, SendOptions{}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	cancel()

	if err := async.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if cancelledDuringDispatch.Load() {
		t.Fatal("dispatch context should not be cancelled with the caller")
	}
}

func TestAsyncDispatcherClosed(t *testing.T) {
	t.Parallel()

	async := NewAsyncDispatcher(newTestEngine(t, &fakeDispatcher{}, &fakeFailureLog{}, nil), 0, nil)
	if err := async.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	_, err := async.Submit(context.Background(), domain.KindGenericTest, domain.EventData{}, SendOptions{})
	if !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("Submit() error = %v, want ErrDispatcherClosed", err)
	}
}

func assertInFlight(t *testing.T, metrics *observability.Metrics, want int) {
	t.Helper()

	expected := fmt.Sprintf(`
# HELP notify_dispatch_async_dispatch_inflight Current number of in-flight asynchronous dispatches.
# TYPE notify_dispatch_async_dispatch_inflight gauge
notify_dispatch_async_dispatch_inflight %d
`, want)
	if err := testutil.GatherAndCompare(metrics.Gatherer(), strings.NewReader(expected), "notify_dispatch_async_dispatch_inflight"); err != nil {
		t.Fatalf("in-flight gauge: %v", err)
	}
}
