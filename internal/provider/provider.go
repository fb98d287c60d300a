package provider

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 8 * time.Second

// Adapter is the outbound delivery port wrapping one external transport. Send never returns an
// error: every failure is reified in the returned outcome.
type Adapter interface {
	Descriptor() domain.ProviderDescriptor
	Send(ctx context.Context, recipient string, body string) domain.AttemptOutcome
}

// Response stores provider call metadata for audit.
type Response struct {
	StatusCode int
	MessageID  string
}

func (r *Response) summary() string {
	if r == nil {
		return ""
	}
	if id := strings.TrimSpace(r.MessageID); id != "" {
		return "message id " + id
	}
	return ""
}

// newOutcome converts a deliver result into an attempt outcome for provider name.
func newOutcome(name string, startedAt time.Time, resp *Response, err error) domain.AttemptOutcome {
	outcome := domain.AttemptOutcome{
		Provider:   name,
		StartedAt:  startedAt.UTC(),
		DurationMs: time.Since(startedAt).Milliseconds(),
		Result:     Classify(err),
	}

	if err != nil {
		outcome.ProviderMessage = err.Error()
	} else {
		outcome.ProviderMessage = resp.summary()
	}

	return outcome
}

func newRestyClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	return client
}

func prepareRestyClient(client *resty.Client, timeout time.Duration) *resty.Client {
	if client == nil {
		return newRestyClient(timeout)
	}
	if client.GetClient().Timeout == 0 {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client.SetTimeout(timeout)
	}
	client.SetRetryCount(0)
	return client
}

func responseMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Request-ID", "X-Request-Id", "X-Correlation-ID", "X-Correlation-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
