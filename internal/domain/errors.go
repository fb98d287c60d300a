package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrNoProviders = errors.New("no providers configured")

	// ErrInvalidEventData is returned when event data lacks fields the kind's template needs.
	ErrInvalidEventData = fmt.Errorf("%w: invalid event data", ErrValidation)
)
