package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

func TestTwilioProviderSendSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "token" {
			t.Errorf("basic auth = %q/%q (ok=%v)", user, pass, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if got := r.PostForm.Get("To"); got != testRecipient {
			t.Errorf("To = %q, want %q", got, testRecipient)
		}
		if got := r.PostForm.Get("From"); got != "+15005550006" {
			t.Errorf("From = %q", got)
		}

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42","status":"queued"}`))
	}))
	defer server.Close()

	p, err := NewTwilioProvider(TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "token",
		From:       "+15005550006",
		BaseURL:    server.URL + "/",
	})
	if err != nil {
		t.Fatalf("NewTwilioProvider() error = %v", err)
	}

	outcome := p.Send(context.Background(), testRecipient, "hello")
	if outcome.Result != domain.ResultSuccess {
		t.Fatalf("Result = %s, want SUCCESS (message=%q)", outcome.Result, outcome.ProviderMessage)
	}
	if outcome.ProviderMessage != "message id SM42" {
		t.Fatalf("ProviderMessage = %q", outcome.ProviderMessage)
	}
}

func TestTwilioProviderClassifiesFailures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		statusCode int
		body       string
		want       domain.AttemptResult
	}{
		{name: "unauthorized", statusCode: http.StatusUnauthorized, body: `{"code":20003,"message":"Authenticate"}`, want: domain.ResultAuthError},
		{name: "unowned sender", statusCode: http.StatusBadRequest, body: `{"code":21606,"message":"From number not owned"}`, want: domain.ResultAuthError},
		{name: "invalid recipient", statusCode: http.StatusBadRequest, body: `{"code":21211,"message":"Invalid To number"}`, want: domain.ResultRejectedByProvider},
		{name: "server error", statusCode: http.StatusServiceUnavailable, body: `unavailable`, want: domain.ResultTransportError},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			p, err := NewTwilioProvider(TwilioConfig{
				AccountSID: "AC123",
				AuthToken:  "token",
				From:       "+15005550006",
				BaseURL:    server.URL,
			})
			if err != nil {
				t.Fatalf("NewTwilioProvider() error = %v", err)
			}

			outcome := p.Send(context.Background(), testRecipient, "hello")
			if outcome.Result != tc.want {
				t.Fatalf("Result = %s, want %s (message=%q)", outcome.Result, tc.want, outcome.ProviderMessage)
			}
		})
	}
}

func TestTwilioProviderWithoutCredentials(t *testing.T) {
	t.Parallel()

	p, err := NewTwilioProvider(TwilioConfig{AccountSID: "AC123"})
	if err != nil {
		t.Fatalf("NewTwilioProvider() error = %v", err)
	}
	if p.Descriptor().CredentialsPresent {
		t.Fatal("CredentialsPresent = true, want false")
	}

	outcome := p.Send(context.Background(), testRecipient, "hello")
	if outcome.Result != domain.ResultTransportError {
		t.Fatalf("Result = %s, want TRANSPORT_ERROR", outcome.Result)
	}
}
