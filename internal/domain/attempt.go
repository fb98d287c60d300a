package domain

import (
	"fmt"
	"strings"
	"time"
)

// AttemptResult classifies the outcome of a single adapter call.
type AttemptResult string

const (
	ResultSuccess            AttemptResult = "SUCCESS"
	ResultTransportError     AttemptResult = "TRANSPORT_ERROR"
	ResultAuthError          AttemptResult = "AUTH_ERROR"
	ResultRejectedByProvider AttemptResult = "REJECTED_BY_PROVIDER"
	ResultSkipped            AttemptResult = "SKIPPED"
)

func (r AttemptResult) String() string { return string(r) }

func (r AttemptResult) IsValid() bool {
	switch r {
	case ResultSuccess, ResultTransportError, ResultAuthError, ResultRejectedByProvider, ResultSkipped:
		return true
	}
	return false
}

func ParseAttemptResultFromString(s string) (AttemptResult, error) {
	r := AttemptResult(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: invalid attempt result %q", ErrValidation, s)
	}
	return r, nil
}

// UnmarshalText rejects unknown results when attempts are read back from the failure log.
func (r *AttemptResult) UnmarshalText(text []byte) error {
	parsed, err := ParseAttemptResultFromString(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// AttemptOutcome records one adapter call, or a skipped adapter, during a dispatch.
type AttemptOutcome struct {
	Provider        string        `json:"provider"`
	StartedAt       time.Time     `json:"startedAt"`
	DurationMs      int64         `json:"durationMs"`
	Result          AttemptResult `json:"result"`
	ProviderMessage string        `json:"providerMessage,omitempty"`
}

// Attempted reports whether the adapter was actually invoked.
func (o AttemptOutcome) Attempted() bool {
	return o.Result != ResultSkipped
}

// DispatchResult is returned to callers once the fallback chain resolves.
type DispatchResult struct {
	CorrelationID string           `json:"correlationId"`
	Succeeded     bool             `json:"succeeded"`
	Attempts      []AttemptOutcome `json:"attempts"`
	FinalProvider string           `json:"finalProvider,omitempty"`
	FailureLogged bool             `json:"failureLogged,omitempty"`
}
