package render

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

// CorrelationID derives a stable key from kind and event data so a retried dispatch of the same
// event collapses onto one failure-log entry.
func CorrelationID(kind domain.Kind, data domain.EventData) string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	d := xxhash.New()
	_, _ = d.WriteString(kind.String())
	for _, key := range keys {
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(key)
		_, _ = d.WriteString("=")
		_, _ = fmt.Fprintf(d, "%v", data[key])
	}

	return fmt.Sprintf("evt-%016x", d.Sum64())
}
