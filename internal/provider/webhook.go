package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

const (
	WebhookName          = "webhook"
	defaultWebhookSource = "notify-dispatch"
)

type WebhookConfig struct {
	URL      string
	Token    string
	Source   string
	Priority int
	Timeout  time.Duration
}

type webhookRequest struct {
	To        string `json:"to"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// WebhookProvider relays messages to an HTTP endpoint that performs delivery on its own, e.g. an
// internal SMS bridge or a webhook.site inbox during development.
type WebhookProvider struct {
	client     *resty.Client
	cfg        WebhookConfig
	descriptor domain.ProviderDescriptor
}

func NewWebhookProvider(cfg WebhookConfig) (*WebhookProvider, error) {
	return NewWebhookProviderWithClient(cfg, nil)
}

func NewWebhookProviderWithClient(cfg WebhookConfig, client *resty.Client) (*WebhookProvider, error) {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid webhook url: %w", err)
	}
	cfg.Token = strings.TrimSpace(cfg.Token)
	if strings.TrimSpace(cfg.Source) == "" {
		cfg.Source = defaultWebhookSource
	}

	return &WebhookProvider{
		client: prepareRestyClient(client, cfg.Timeout),
		cfg:    cfg,
		descriptor: domain.ProviderDescriptor{
			Name:               WebhookName,
			Priority:           cfg.Priority,
			Capabilities:       domain.CapabilitySupportsInternational,
			CredentialsPresent: true,
		},
	}, nil
}

func (p *WebhookProvider) Descriptor() domain.ProviderDescriptor {
	return p.descriptor
}

func (p *WebhookProvider) Send(ctx context.Context, recipient string, body string) domain.AttemptOutcome {
	startedAt := time.Now()
	resp, err := p.deliver(ctx, recipient, body, startedAt)
	return newOutcome(WebhookName, startedAt, resp, err)
}

func (p *WebhookProvider) deliver(ctx context.Context, recipient string, body string, now time.Time) (*Response, error) {
	if !domain.IsE164(recipient) {
		return nil, transportError(fmt.Sprintf("recipient %q is not a valid E.164 number", recipient), nil)
	}

	req := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookRequest{
			To:        recipient,
			Message:   body,
			Timestamp: now.UTC().Format(time.RFC3339),
			Source:    p.cfg.Source,
		})
	if p.cfg.Token != "" {
		req.SetAuthToken(p.cfg.Token)
	}

	response, err := req.Post(p.cfg.URL)
	if err != nil {
		return nil, transportError("provider request failed", err)
	}
	if response == nil {
		return nil, transportError("provider returned empty response", nil)
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Response{
			StatusCode: statusCode,
			MessageID:  responseMessageID(response),
		}, nil
	}

	return nil, httpStatusError(statusCode, "", strings.TrimSpace(response.String()))
}
