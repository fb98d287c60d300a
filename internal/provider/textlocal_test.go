package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

func newTextLocalTestProvider(t *testing.T, handler http.HandlerFunc) *TextLocalProvider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewTextLocalProvider(TextLocalConfig{
		APIKey:   "key-123",
		Sender:   "AKSHTA",
		URL:      server.URL,
		Priority: 1,
	})
	if err != nil {
		t.Fatalf("NewTextLocalProvider() error = %v", err)
	}
	return p
}

func TestTextLocalProviderSendSuccess(t *testing.T) {
	t.Parallel()

	p := newTextLocalTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if got := r.PostForm.Get("numbers"); got != "919876543210" {
			t.Errorf("numbers = %q, want 919876543210", got)
		}
		if got := r.PostForm.Get("apikey"); got != "key-123" {
			t.Errorf("apikey = %q, want key-123", got)
		}
		if got := r.PostForm.Get("sender"); got != "AKSHTA" {
			t.Errorf("sender = %q, want AKSHTA", got)
		}
		if got := r.PostForm.Get("message"); got != "hello" {
			t.Errorf("message = %q, want hello", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","batch_id":123456789}`))
	})

	outcome := p.Send(context.Background(), testRecipient, "hello")
	if outcome.Result != domain.ResultSuccess {
		t.Fatalf("Result = %s, want SUCCESS (message=%q)", outcome.Result, outcome.ProviderMessage)
	}
	if outcome.ProviderMessage != "message id 123456789" {
		t.Fatalf("ProviderMessage = %q", outcome.ProviderMessage)
	}
}

func TestTextLocalProviderClassifiesFailures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		body string
		want domain.AttemptResult
	}{
		{
			name: "invalid login is auth",
			body: `{"status":"failure","errors":[{"code":3,"message":"Invalid login details"}]}`,
			want: domain.ResultAuthError,
		},
		{
			name: "insufficient credits is auth",
			body: `{"status":"failure","errors":[{"code":7,"message":"Insufficient credits"}]}`,
			want: domain.ResultAuthError,
		},
		{
			name: "invalid number is rejected",
			body: `{"status":"failure","errors":[{"code":51,"message":"No valid numbers specified"}]}`,
			want: domain.ResultRejectedByProvider,
		},
		{
			name: "failure without errors is rejected",
			body: `{"status":"failure"}`,
			want: domain.ResultRejectedByProvider,
		},
		{
			name: "malformed response is transport",
			body: `<html>gateway</html>`,
			want: domain.ResultTransportError,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := newTextLocalTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})

			outcome := p.Send(context.Background(), testRecipient, "hello")
			if outcome.Result != tc.want {
				t.Fatalf("Result = %s, want %s (message=%q)", outcome.Result, tc.want, outcome.ProviderMessage)
			}
		})
	}
}

func TestTextLocalProviderSkipsCallOutsideRegion(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := newTextLocalTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})

	outcome := p.Send(context.Background(), "+14155550100", "hello")
	if outcome.Result != domain.ResultTransportError {
		t.Fatalf("Result = %s, want TRANSPORT_ERROR", outcome.Result)
	}
	if calls.Load() != 0 {
		t.Fatalf("gateway called %d times, want 0", calls.Load())
	}
}

func TestTextLocalProviderWithoutCredentials(t *testing.T) {
	t.Parallel()

	p, err := NewTextLocalProvider(TextLocalConfig{Sender: "AKSHTA"})
	if err != nil {
		t.Fatalf("NewTextLocalProvider() error = %v", err)
	}
	if p.Descriptor().CredentialsPresent {
		t.Fatal("CredentialsPresent = true, want false")
	}
	if !p.Descriptor().Capabilities.Has(domain.CapabilityRequiresCredentials) {
		t.Fatal("descriptor should require credentials")
	}
	if p.Descriptor().Capabilities.Has(domain.CapabilitySupportsInternational) {
		t.Fatal("regional gateway should not claim international support")
	}

	outcome := p.Send(context.Background(), testRecipient, "hello")
	if outcome.Result != domain.ResultTransportError {
		t.Fatalf("Result = %s, want TRANSPORT_ERROR", outcome.Result)
	}
}
