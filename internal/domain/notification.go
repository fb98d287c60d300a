package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind identifies the business event a notification is rendered for.
type Kind string

const (
	KindBookingCreated      Kind = "booking-created"
	KindBookingConfirmation Kind = "booking-confirmation"
	KindPaymentReceived     Kind = "payment-received"
	KindGenericTest         Kind = "generic-test"
)

func (k Kind) String() string { return string(k) }

func (k Kind) IsValid() bool {
	switch k {
	case KindBookingCreated, KindBookingConfirmation, KindPaymentReceived, KindGenericTest:
		return true
	}
	return false
}

func ParseKindFromString(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid kind %q", ErrValidation, s)
	}
	return k, nil
}

// EventData is the flat field mapping a caller passes for a kind's template.
type EventData map[string]any

var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// IsE164 reports whether recipient looks like an E.164 phone number.
func IsE164(recipient string) bool {
	return e164Pattern.MatchString(recipient)
}

// NotificationRequest is an immutable, rendered notification ready for dispatch.
type NotificationRequest struct {
	Recipient     string `json:"recipient"`
	Body          string `json:"body"`
	Kind          Kind   `json:"kind"`
	CorrelationID string `json:"correlationId"`
}

func (r NotificationRequest) Validate() error {
	if strings.TrimSpace(r.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.TrimSpace(r.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	if !r.Kind.IsValid() {
		return fmt.Errorf("%w: invalid kind %q", ErrValidation, r.Kind)
	}
	if strings.TrimSpace(r.CorrelationID) == "" {
		return fmt.Errorf("%w: correlation id is required", ErrValidation)
	}
	return nil
}
