package domain

import (
	"strings"
	"time"
)

// Capability is a bit flag describing what an adapter's transport can do.
type Capability uint8

const (
	CapabilitySupportsInternational Capability = 1 << iota
	CapabilityRequiresCredentials
)

func (c Capability) Has(flag Capability) bool { return c&flag == flag }

func (c Capability) String() string {
	names := make([]string, 0, 2)
	if c.Has(CapabilitySupportsInternational) {
		names = append(names, "supports-international")
	}
	if c.Has(CapabilityRequiresCredentials) {
		names = append(names, "requires-credentials")
	}
	return strings.Join(names, ",")
}

// ProviderDescriptor is the static configuration of one adapter.
type ProviderDescriptor struct {
	Name               string     `json:"name"`
	Priority           int        `json:"priority"`
	Capabilities       Capability `json:"capabilities"`
	CredentialsPresent bool       `json:"credentialsPresent"`
}

// FailureLogEntry is a durable record of a notification no adapter delivered.
type FailureLogEntry struct {
	Request      NotificationRequest `json:"request"`
	Attempts     []AttemptOutcome    `json:"attempts"`
	LoggedAt     time.Time           `json:"loggedAt"`
	Acknowledged bool                `json:"acknowledged"`
}
