package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/health"
	"github.com/kursadbilgin/notify-dispatch/internal/provider"
	"go.uber.org/zap"
)

// ProviderChain is the part of the dispatcher that manages its adapters.
type ProviderChain interface {
	Replace(adapters []provider.Adapter) error
	Descriptors() []domain.ProviderDescriptor
	Health() *health.Registry
}

// AdapterBuilder constructs the adapter set from current configuration.
type AdapterBuilder func(ctx context.Context) ([]provider.Adapter, error)

// ProviderStatus is one adapter's configuration and health.
type ProviderStatus struct {
	domain.ProviderDescriptor
	Features string       `json:"features"`
	State    health.State `json:"state"`
}

type ProviderService struct {
	chain  ProviderChain
	build  AdapterBuilder
	logger *zap.Logger

	reloadMu sync.Mutex
}

func NewProviderService(chain ProviderChain, build AdapterBuilder, logger *zap.Logger) (*ProviderService, error) {
	if chain == nil {
		return nil, fmt.Errorf("provider chain is required")
	}
	if build == nil {
		return nil, fmt.Errorf("adapter builder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProviderService{
		chain:  chain,
		build:  build,
		logger: logger,
	}, nil
}

// Providers lists adapters in attempt order.
func (s *ProviderService) Providers() []ProviderStatus {
	registry := s.chain.Health()

	descriptors := s.chain.Descriptors()
	out := make([]ProviderStatus, 0, len(descriptors))
	for _, desc := range descriptors {
		out = append(out, ProviderStatus{
			ProviderDescriptor: desc,
			Features:           desc.Capabilities.String(),
			State:              registry.State(desc.Name),
		})
	}
	return out
}

// Reload rebuilds every adapter and clears health state. The existing chain is kept when the
// build fails.
func (s *ProviderService) Reload(ctx context.Context) ([]ProviderStatus, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	adapters, err := s.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build providers: %w", err)
	}
	if err := s.chain.Replace(adapters); err != nil {
		return nil, err
	}

	statuses := s.Providers()
	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		names = append(names, status.Name)
	}
	s.logger.Info("providers reloaded", zap.Strings("providers", names))

	return statuses, nil
}
