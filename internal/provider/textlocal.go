package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

const (
	TextLocalName       = "textlocal"
	DefaultTextLocalURL = "https://api.textlocal.in/send/"

	textLocalRegionPrefix = "+91"
)

// TextLocal error codes that point at the account rather than the message.
var textLocalAuthCodes = map[int]struct{}{
	3:  {}, // invalid login details
	7:  {}, // insufficient credits
	43: {}, // invalid sender name
	44: {}, // no sender name specified
}

type TextLocalConfig struct {
	APIKey   string
	Sender   string
	URL      string
	Priority int
	Timeout  time.Duration
}

type textLocalResponse struct {
	Status  string           `json:"status"`
	BatchID json.Number      `json:"batch_id"`
	Errors  []textLocalError `json:"errors"`
}

type textLocalError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TextLocalProvider sends SMS through the TextLocal regional gateway. It only delivers to Indian
// numbers.
type TextLocalProvider struct {
	client     *resty.Client
	cfg        TextLocalConfig
	descriptor domain.ProviderDescriptor
}

func NewTextLocalProvider(cfg TextLocalConfig) (*TextLocalProvider, error) {
	return NewTextLocalProviderWithClient(cfg, nil)
}

func NewTextLocalProviderWithClient(cfg TextLocalConfig, client *resty.Client) (*TextLocalProvider, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Sender = strings.TrimSpace(cfg.Sender)
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		cfg.URL = DefaultTextLocalURL
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid textlocal url: %w", err)
	}

	return &TextLocalProvider{
		client: prepareRestyClient(client, cfg.Timeout),
		cfg:    cfg,
		descriptor: domain.ProviderDescriptor{
			Name:               TextLocalName,
			Priority:           cfg.Priority,
			Capabilities:       domain.CapabilityRequiresCredentials,
			CredentialsPresent: cfg.APIKey != "" && cfg.Sender != "",
		},
	}, nil
}

func (p *TextLocalProvider) Descriptor() domain.ProviderDescriptor {
	return p.descriptor
}

func (p *TextLocalProvider) Send(ctx context.Context, recipient string, body string) domain.AttemptOutcome {
	startedAt := time.Now()
	resp, err := p.deliver(ctx, recipient, body)
	return newOutcome(TextLocalName, startedAt, resp, err)
}

func (p *TextLocalProvider) deliver(ctx context.Context, recipient string, body string) (*Response, error) {
	if !p.descriptor.CredentialsPresent {
		return nil, transportError("textlocal credentials not configured", nil)
	}
	if !domain.IsE164(recipient) || !strings.HasPrefix(recipient, textLocalRegionPrefix) {
		return nil, transportError(fmt.Sprintf("recipient %q is outside the regional gateway's coverage", recipient), nil)
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFormData(map[string]string{
			"apikey":  p.cfg.APIKey,
			"numbers": strings.TrimPrefix(recipient, "+"),
			"message": body,
			"sender":  p.cfg.Sender,
		}).
		Post(p.cfg.URL)
	if err != nil {
		return nil, transportError("provider request failed", err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, httpStatusError(statusCode, "", strings.TrimSpace(response.String()))
	}

	var result textLocalResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, &ProviderError{
			StatusCode: statusCode,
			Message:    "malformed provider response",
			Class:      domain.ResultTransportError,
			Cause:      err,
		}
	}

	if strings.EqualFold(result.Status, "success") {
		return &Response{StatusCode: statusCode, MessageID: result.BatchID.String()}, nil
	}

	return nil, classifyTextLocalFailure(statusCode, result.Errors)
}

func classifyTextLocalFailure(statusCode int, errs []textLocalError) *ProviderError {
	if len(errs) == 0 {
		return &ProviderError{
			StatusCode: statusCode,
			Message:    "textlocal sms sending failed",
			Class:      domain.ResultRejectedByProvider,
		}
	}

	first := errs[0]
	class := domain.ResultRejectedByProvider
	if _, ok := textLocalAuthCodes[first.Code]; ok {
		class = domain.ResultAuthError
	}

	return &ProviderError{
		StatusCode: statusCode,
		Code:       strconv.Itoa(first.Code),
		Message:    first.Message,
		Class:      class,
	}
}
