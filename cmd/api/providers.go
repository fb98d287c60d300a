package main

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/notify-dispatch/internal/config"
	"github.com/kursadbilgin/notify-dispatch/internal/provider"
)

// buildAdapters constructs every configured adapter. Adapters without credentials are still
// registered so they show up, skipped, in dispatch results and on the providers endpoint.
func buildAdapters(ctx context.Context, cfg *config.Config) ([]provider.Adapter, error) {
	textLocal, err := provider.NewTextLocalProvider(cfg.TextLocal())
	if err != nil {
		return nil, fmt.Errorf("textlocal: %w", err)
	}
	twilio, err := provider.NewTwilioProvider(cfg.Twilio())
	if err != nil {
		return nil, fmt.Errorf("twilio: %w", err)
	}
	sns, err := provider.NewSNSProvider(ctx, cfg.SNS())
	if err != nil {
		return nil, fmt.Errorf("sns: %w", err)
	}

	adapters := []provider.Adapter{textLocal, twilio, sns}

	if webhookCfg, ok := cfg.Webhook(); ok {
		webhook, err := provider.NewWebhookProvider(webhookCfg)
		if err != nil {
			return nil, fmt.Errorf("webhook: %w", err)
		}
		adapters = append(adapters, webhook)
	}

	return adapters, nil
}
