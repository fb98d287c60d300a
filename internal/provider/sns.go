package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

const (
	SNSName = "sns"

	defaultSNSSMSType = "Transactional"
)

var (
	snsAuthCodes = map[string]struct{}{
		"AuthorizationError":          {},
		"InvalidClientTokenId":        {},
		"SignatureDoesNotMatch":       {},
		"AccessDenied":                {},
		"AccessDeniedException":       {},
		"ExpiredToken":                {},
		"UnrecognizedClientException": {},
	}
	snsRejectedCodes = map[string]struct{}{
		"InvalidParameter":      {},
		"InvalidParameterValue": {},
		"OptedOut":              {},
	}
)

// SNSPublisher is the subset of the SNS client used for SMS delivery.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SenderID        string
	Endpoint        string
	Priority        int
	Timeout         time.Duration
}

type snsOptions struct {
	client SNSPublisher
}

// SNSOption configures the SNS provider.
type SNSOption func(*snsOptions)

// WithSNSClient injects a pre-configured publisher.
func WithSNSClient(client SNSPublisher) SNSOption {
	return func(o *snsOptions) {
		o.client = client
	}
}

// SNSProvider sends SMS through AWS SNS direct publish.
type SNSProvider struct {
	client     SNSPublisher
	cfg        SNSConfig
	descriptor domain.ProviderDescriptor
}

func NewSNSProvider(ctx context.Context, cfg SNSConfig, opts ...SNSOption) (*SNSProvider, error) {
	cfg.Region = strings.TrimSpace(cfg.Region)
	cfg.AccessKeyID = strings.TrimSpace(cfg.AccessKeyID)
	cfg.SecretAccessKey = strings.TrimSpace(cfg.SecretAccessKey)
	cfg.SenderID = strings.TrimSpace(cfg.SenderID)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	options := &snsOptions{}
	for _, opt := range opts {
		opt(options)
	}

	credentialsPresent := cfg.Region != "" && cfg.AccessKeyID != "" && cfg.SecretAccessKey != ""

	client := options.client
	if client == nil && credentialsPresent {
		awsConfig, err := config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			)),
			config.WithRetryMaxAttempts(1),
		)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}

		client = sns.NewFromConfig(awsConfig, func(o *sns.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
	}

	return &SNSProvider{
		client: client,
		cfg:    cfg,
		descriptor: domain.ProviderDescriptor{
			Name:               SNSName,
			Priority:           cfg.Priority,
			Capabilities:       domain.CapabilitySupportsInternational | domain.CapabilityRequiresCredentials,
			CredentialsPresent: credentialsPresent,
		},
	}, nil
}

func (p *SNSProvider) Descriptor() domain.ProviderDescriptor {
	return p.descriptor
}

func (p *SNSProvider) Send(ctx context.Context, recipient string, body string) domain.AttemptOutcome {
	startedAt := time.Now()
	resp, err := p.deliver(ctx, recipient, body)
	return newOutcome(SNSName, startedAt, resp, err)
}

func (p *SNSProvider) deliver(ctx context.Context, recipient string, body string) (*Response, error) {
	if !p.descriptor.CredentialsPresent || p.client == nil {
		return nil, transportError("sns credentials not configured", nil)
	}
	if !domain.IsE164(recipient) {
		return nil, transportError(fmt.Sprintf("recipient %q is not a valid E.164 number", recipient), nil)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	attributes := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String(defaultSNSSMSType),
		},
	}
	if p.cfg.SenderID != "" {
		attributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(p.cfg.SenderID),
		}
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(recipient),
		Message:           aws.String(body),
		MessageAttributes: attributes,
	})
	if err != nil {
		return nil, classifySNSError(err)
	}

	return &Response{MessageID: aws.ToString(out.MessageId)}, nil
}

func classifySNSError(err error) *ProviderError {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return transportError("provider request failed", err)
	}

	providerErr := &ProviderError{
		Code:    apiErr.ErrorCode(),
		Message: apiErr.ErrorMessage(),
		Class:   domain.ResultTransportError,
	}
	if _, ok := snsAuthCodes[apiErr.ErrorCode()]; ok {
		providerErr.Class = domain.ResultAuthError
	} else if _, ok := snsRejectedCodes[apiErr.ErrorCode()]; ok {
		providerErr.Class = domain.ResultRejectedByProvider
	}

	return providerErr
}
