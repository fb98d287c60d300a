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
	TwilioName           = "twilio"
	DefaultTwilioBaseURL = "https://api.twilio.com"
)

// Twilio error codes that mean the account cannot send at all.
var twilioAuthCodes = map[int]struct{}{
	20003: {}, // authentication failed
	21606: {}, // from number not owned by the account
	21659: {}, // from number not an SMS-capable sender
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	Priority   int
	Timeout    time.Duration
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TwilioProvider sends SMS through the Twilio Messages API.
type TwilioProvider struct {
	client     *resty.Client
	cfg        TwilioConfig
	descriptor domain.ProviderDescriptor
}

func NewTwilioProvider(cfg TwilioConfig) (*TwilioProvider, error) {
	return NewTwilioProviderWithClient(cfg, nil)
}

func NewTwilioProviderWithClient(cfg TwilioConfig, client *resty.Client) (*TwilioProvider, error) {
	cfg.AccountSID = strings.TrimSpace(cfg.AccountSID)
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	cfg.From = strings.TrimSpace(cfg.From)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid twilio base url: %w", err)
	}

	return &TwilioProvider{
		client: prepareRestyClient(client, cfg.Timeout),
		cfg:    cfg,
		descriptor: domain.ProviderDescriptor{
			Name:               TwilioName,
			Priority:           cfg.Priority,
			Capabilities:       domain.CapabilitySupportsInternational | domain.CapabilityRequiresCredentials,
			CredentialsPresent: cfg.AccountSID != "" && cfg.AuthToken != "" && cfg.From != "",
		},
	}, nil
}

func (p *TwilioProvider) Descriptor() domain.ProviderDescriptor {
	return p.descriptor
}

func (p *TwilioProvider) Send(ctx context.Context, recipient string, body string) domain.AttemptOutcome {
	startedAt := time.Now()
	resp, err := p.deliver(ctx, recipient, body)
	return newOutcome(TwilioName, startedAt, resp, err)
}

func (p *TwilioProvider) deliver(ctx context.Context, recipient string, body string) (*Response, error) {
	if !p.descriptor.CredentialsPresent {
		return nil, transportError("twilio credentials not configured", nil)
	}
	if !domain.IsE164(recipient) {
		return nil, transportError(fmt.Sprintf("recipient %q is not a valid E.164 number", recipient), nil)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.cfg.BaseURL, url.PathEscape(p.cfg.AccountSID))

	response, err := p.client.R().
		SetContext(ctx).
		SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken).
		SetHeader("Accept", "application/json").
		SetFormData(map[string]string{
			"To":   recipient,
			"From": p.cfg.From,
			"Body": body,
		}).
		Post(endpoint)
	if err != nil {
		return nil, transportError("provider request failed", err)
	}

	statusCode := response.StatusCode()

	var result twilioResponse
	_ = json.Unmarshal(response.Body(), &result)

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Response{StatusCode: statusCode, MessageID: result.SID}, nil
	}

	return nil, classifyTwilioFailure(statusCode, result, strings.TrimSpace(response.String()))
}

func classifyTwilioFailure(statusCode int, result twilioResponse, rawBody string) *ProviderError {
	providerErr := httpStatusError(statusCode, "", rawBody)
	if result.Code == 0 {
		return providerErr
	}

	providerErr.Code = strconv.Itoa(result.Code)
	if msg := strings.TrimSpace(result.Message); msg != "" {
		providerErr.Message = msg
	}
	if _, ok := twilioAuthCodes[result.Code]; ok {
		providerErr.Class = domain.ResultAuthError
	}

	return providerErr
}
