package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

// ProviderError is a classified provider failure. Class is one of the non-success attempt results.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
	Class      domain.AttemptResult
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 5)
	parts = append(parts, "provider error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if code := strings.TrimSpace(e.Code); code != "" {
		parts = append(parts, "code="+code)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func transportError(message string, cause error) *ProviderError {
	return &ProviderError{Message: message, Class: domain.ResultTransportError, Cause: cause}
}

func authError(message string) *ProviderError {
	return &ProviderError{Message: message, Class: domain.ResultAuthError}
}

func rejectedError(message string) *ProviderError {
	return &ProviderError{Message: message, Class: domain.ResultRejectedByProvider}
}

// Classify maps a send error onto an attempt result. A nil error is a success; anything that is
// not a classified provider rejection is treated as a transport failure.
func Classify(err error) domain.AttemptResult {
	if err == nil {
		return domain.ResultSuccess
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.Class.IsValid() && providerErr.Class != domain.ResultSuccess {
		return providerErr.Class
	}

	// Timeouts, cancellations and network errors all land here.
	return domain.ResultTransportError
}

// ClassifyHTTPStatus maps a non-2xx HTTP status onto an attempt result.
func ClassifyHTTPStatus(statusCode int) domain.AttemptResult {
	switch {
	case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
		return domain.ResultSuccess
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return domain.ResultAuthError
	case statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout:
		return domain.ResultTransportError
	case statusCode >= http.StatusInternalServerError:
		return domain.ResultTransportError
	case statusCode >= http.StatusBadRequest:
		return domain.ResultRejectedByProvider
	default:
		return domain.ResultTransportError
	}
}

func httpStatusError(statusCode int, code string, body string) *ProviderError {
	return &ProviderError{
		StatusCode: statusCode,
		Code:       code,
		Message:    providerErrorMessage(statusCode, body),
		Class:      ClassifyHTTPStatus(statusCode),
	}
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
