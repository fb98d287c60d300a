package render

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

// maxAmount bounds amounts to what formats exactly as whole rupees.
const maxAmount = 1e15

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02/01/2006",
}

// fieldReader collects missing or malformed fields so a template either renders fully or not at all.
type fieldReader struct {
	data    domain.EventData
	missing []string
	invalid []string
}

func newFieldReader(data domain.EventData) *fieldReader {
	return &fieldReader{data: data}
}

func (f *fieldReader) err(kind domain.Kind) error {
	if len(f.missing) == 0 && len(f.invalid) == 0 {
		return nil
	}

	parts := make([]string, 0, 2)
	if len(f.missing) > 0 {
		parts = append(parts, "missing "+strings.Join(f.missing, ", "))
	}
	if len(f.invalid) > 0 {
		parts = append(parts, "malformed "+strings.Join(f.invalid, ", "))
	}
	return fmt.Errorf("%w: %s: %s", domain.ErrInvalidEventData, kind, strings.Join(parts, "; "))
}

func (f *fieldReader) lookup(key string) (any, bool) {
	if f.data == nil {
		return nil, false
	}
	v, ok := f.data[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (f *fieldReader) requireString(key string) string {
	invalidBefore := len(f.invalid)
	v, ok := f.optionalString(key)
	if !ok && len(f.invalid) == invalidBefore {
		f.missing = append(f.missing, key)
	}
	return v
}

func (f *fieldReader) optionalString(key string) (string, bool) {
	raw, ok := f.lookup(key)
	if !ok {
		return "", false
	}

	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case fmt.Stringer:
		s = v.String()
	case int, int32, int64, uint, uint32, uint64:
		s = fmt.Sprintf("%d", v)
	default:
		f.invalid = append(f.invalid, key)
		return "", false
	}

	s = strings.TrimSpace(s)
	return s, s != ""
}

func (f *fieldReader) requireStrings(key string) []string {
	raw, ok := f.lookup(key)
	if !ok {
		f.missing = append(f.missing, key)
		return nil
	}

	var values []string
	switch v := raw.(type) {
	case []string:
		values = v
	case []any:
		values = make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				f.invalid = append(f.invalid, key)
				return nil
			}
			values = append(values, s)
		}
	case string:
		values = strings.Split(v, ",")
	default:
		f.invalid = append(f.invalid, key)
		return nil
	}

	cleaned := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		f.missing = append(f.missing, key)
		return nil
	}
	return cleaned
}

func (f *fieldReader) requireAmount(key string) float64 {
	raw, ok := f.lookup(key)
	if !ok {
		f.missing = append(f.missing, key)
		return 0
	}

	var amount float64
	switch v := raw.(type) {
	case float64:
		amount = v
	case float32:
		amount = float64(v)
	case int:
		amount = float64(v)
	case int64:
		amount = float64(v)
	case int32:
		amount = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			f.invalid = append(f.invalid, key)
			return 0
		}
		amount = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			f.invalid = append(f.invalid, key)
			return 0
		}
		amount = parsed
	default:
		f.invalid = append(f.invalid, key)
		return 0
	}

	if amount < 0 || amount > maxAmount || math.IsNaN(amount) || math.IsInf(amount, 0) {
		f.invalid = append(f.invalid, key)
		return 0
	}
	return amount
}

func (f *fieldReader) requireDate(key string) time.Time {
	t, ok := f.optionalTime(key)
	if !ok {
		if _, present := f.lookup(key); !present {
			f.missing = append(f.missing, key)
		}
	}
	return t
}

func (f *fieldReader) optionalTime(key string) (time.Time, bool) {
	raw, ok := f.lookup(key)
	if !ok {
		return time.Time{}, false
	}

	switch v := raw.(type) {
	case time.Time:
		if v.IsZero() {
			break
		}
		return v, true
	case string:
		trimmed := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, trimmed); err == nil {
				return parsed, true
			}
		}
	}

	f.invalid = append(f.invalid, key)
	return time.Time{}, false
}
