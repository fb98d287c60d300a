package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want domain.AttemptResult
	}{
		{name: "nil", err: nil, want: domain.ResultSuccess},
		{name: "auth", err: authError("bad key"), want: domain.ResultAuthError},
		{name: "rejected", err: rejectedError("bad number"), want: domain.ResultRejectedByProvider},
		{name: "wrapped auth", err: fmt.Errorf("send: %w", authError("bad key")), want: domain.ResultAuthError},
		{name: "transport", err: transportError("boom", nil), want: domain.ResultTransportError},
		{name: "plain error", err: errors.New("boom"), want: domain.ResultTransportError},
		{name: "deadline", err: context.DeadlineExceeded, want: domain.ResultTransportError},
		{name: "unclassified provider error", err: &ProviderError{Message: "x"}, want: domain.ResultTransportError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   domain.AttemptResult
	}{
		{status: http.StatusOK, want: domain.ResultSuccess},
		{status: http.StatusAccepted, want: domain.ResultSuccess},
		{status: http.StatusUnauthorized, want: domain.ResultAuthError},
		{status: http.StatusForbidden, want: domain.ResultAuthError},
		{status: http.StatusBadRequest, want: domain.ResultRejectedByProvider},
		{status: http.StatusUnprocessableEntity, want: domain.ResultRejectedByProvider},
		{status: http.StatusRequestTimeout, want: domain.ResultTransportError},
		{status: http.StatusTooManyRequests, want: domain.ResultTransportError},
		{status: http.StatusBadGateway, want: domain.ResultTransportError},
	}

	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestProviderErrorMessage(t *testing.T) {
	t.Parallel()

	err := &ProviderError{StatusCode: 400, Code: "21211", Message: "Invalid To number", Cause: errors.New("cause")}
	want := "provider error: status=400: code=21211: Invalid To number: cause"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, err.Cause) {
		t.Fatal("ProviderError should unwrap to its cause")
	}
}
