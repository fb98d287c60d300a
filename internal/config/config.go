package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/kursadbilgin/notify-dispatch/internal/provider"
	"github.com/kursadbilgin/notify-dispatch/internal/render"
)

const (
	FailureLogPostgres = "postgres"
	FailureLogRedis    = "redis"
)

type Config struct {
	OperatorPhone      string        `env:"OPERATOR_PHONE,required=true"`
	BusinessName       string        `env:"BUSINESS_NAME,default=AKSHATA PARLOR"`
	DefaultCountryCode string        `env:"DEFAULT_COUNTRY_CODE,default=+91"`
	MaxBodyLength      int           `env:"MAX_BODY_LENGTH,default=1000"`
	AttemptTimeout     time.Duration `env:"ATTEMPT_TIMEOUT,default=8s"`
	FailureLogBackend  string        `env:"FAILURE_LOG_BACKEND,default=postgres"`
	FailureLogPrefix   string        `env:"FAILURE_LOG_REDIS_PREFIX,default=failurelog"`
	DatabaseDSN        string        `env:"DATABASE_DSN"`
	RedisURL           string        `env:"REDIS_URL"`
	RateLimitPerSec    int           `env:"PROVIDER_RATE_LIMIT_PER_SEC,default=0"`
	AsyncConcurrency   int           `env:"ASYNC_CONCURRENCY,default=16"`
	FailureReportEvery time.Duration `env:"FAILURE_REPORT_INTERVAL,default=5m"`
	APIPort            int           `env:"API_PORT,default=8080"`
	LogLevel           string        `env:"LOG_LEVEL,default=info"`

	TextLocalAPIKey   string `env:"TEXTLOCAL_API_KEY"`
	TextLocalSender   string `env:"TEXTLOCAL_SENDER"`
	TextLocalURL      string `env:"TEXTLOCAL_URL"`
	TextLocalPriority int    `env:"TEXTLOCAL_PRIORITY,default=1"`
	TextLocalRate     int    `env:"TEXTLOCAL_RATE_LIMIT_PER_SEC,default=0"`

	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `env:"TWILIO_FROM_NUMBER"`
	TwilioBaseURL    string `env:"TWILIO_BASE_URL"`
	TwilioPriority   int    `env:"TWILIO_PRIORITY,default=2"`
	TwilioRate       int    `env:"TWILIO_RATE_LIMIT_PER_SEC,default=0"`

	SNSRegion          string `env:"SNS_REGION"`
	SNSAccessKeyID     string `env:"SNS_ACCESS_KEY_ID"`
	SNSSecretAccessKey string `env:"SNS_SECRET_ACCESS_KEY"`
	SNSSenderID        string `env:"SNS_SENDER_ID"`
	SNSEndpoint        string `env:"SNS_ENDPOINT"`
	SNSPriority        int    `env:"SNS_PRIORITY,default=3"`
	SNSRate            int    `env:"SNS_RATE_LIMIT_PER_SEC,default=0"`

	WebhookURL      string `env:"WEBHOOK_URL"`
	WebhookToken    string `env:"WEBHOOK_TOKEN"`
	WebhookSource   string `env:"WEBHOOK_SOURCE,default=notify-dispatch"`
	WebhookPriority int    `env:"WEBHOOK_PRIORITY,default=4"`
	WebhookRate     int    `env:"WEBHOOK_RATE_LIMIT_PER_SEC,default=0"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.FailureLogBackend = strings.ToLower(strings.TrimSpace(c.FailureLogBackend))
	switch c.FailureLogBackend {
	case FailureLogPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("DATABASE_DSN is required for the postgres failure log")
		}
	case FailureLogRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("REDIS_URL is required for the redis failure log")
		}
	default:
		return fmt.Errorf("FAILURE_LOG_BACKEND must be %q or %q, got %q", FailureLogPostgres, FailureLogRedis, c.FailureLogBackend)
	}

	if c.RateLimitPerSec < 0 {
		return fmt.Errorf("PROVIDER_RATE_LIMIT_PER_SEC must be >= 0")
	}
	for name, rate := range c.providerRates() {
		if rate < 0 {
			return fmt.Errorf("%s_RATE_LIMIT_PER_SEC must be >= 0", strings.ToUpper(name))
		}
	}
	if c.RateLimitPerSec > 0 && strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("REDIS_URL is required when PROVIDER_RATE_LIMIT_PER_SEC is set")
	}
	if c.AttemptTimeout <= 0 {
		return fmt.Errorf("ATTEMPT_TIMEOUT must be positive")
	}
	if c.MaxBodyLength < render.MinBodyLength {
		return fmt.Errorf("MAX_BODY_LENGTH must be at least %d to fit the truncation marker", render.MinBodyLength)
	}
	return nil
}

// ProviderRateLimits returns the per-provider budgets that override PROVIDER_RATE_LIMIT_PER_SEC.
// They only apply when the global limit is enabled.
func (c *Config) ProviderRateLimits() map[string]int {
	out := make(map[string]int)
	for name, rate := range c.providerRates() {
		if rate > 0 {
			out[name] = rate
		}
	}
	return out
}

func (c *Config) providerRates() map[string]int {
	return map[string]int{
		provider.TextLocalName: c.TextLocalRate,
		provider.TwilioName:    c.TwilioRate,
		provider.SNSName:       c.SNSRate,
		provider.WebhookName:   c.WebhookRate,
	}
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.FailureLogBackend == FailureLogRedis || c.RateLimitPerSec > 0
}

func (c *Config) TextLocal() provider.TextLocalConfig {
	return provider.TextLocalConfig{
		APIKey:   c.TextLocalAPIKey,
		Sender:   c.TextLocalSender,
		URL:      c.TextLocalURL,
		Priority: c.TextLocalPriority,
		Timeout:  c.AttemptTimeout,
	}
}

func (c *Config) Twilio() provider.TwilioConfig {
	return provider.TwilioConfig{
		AccountSID: c.TwilioAccountSID,
		AuthToken:  c.TwilioAuthToken,
		From:       c.TwilioFromNumber,
		BaseURL:    c.TwilioBaseURL,
		Priority:   c.TwilioPriority,
		Timeout:    c.AttemptTimeout,
	}
}

func (c *Config) SNS() provider.SNSConfig {
	return provider.SNSConfig{
		Region:          c.SNSRegion,
		AccessKeyID:     c.SNSAccessKeyID,
		SecretAccessKey: c.SNSSecretAccessKey,
		SenderID:        c.SNSSenderID,
		Endpoint:        c.SNSEndpoint,
		Priority:        c.SNSPriority,
		Timeout:         c.AttemptTimeout,
	}
}

// Webhook returns the relay configuration, or false when no relay URL is configured.
func (c *Config) Webhook() (provider.WebhookConfig, bool) {
	if strings.TrimSpace(c.WebhookURL) == "" {
		return provider.WebhookConfig{}, false
	}
	return provider.WebhookConfig{
		URL:      c.WebhookURL,
		Token:    c.WebhookToken,
		Source:   c.WebhookSource,
		Priority: c.WebhookPriority,
		Timeout:  c.AttemptTimeout,
	}, true
}
