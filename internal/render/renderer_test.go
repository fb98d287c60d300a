package render

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

const testOperator = "+919740303404"

func newTestRenderer(t *testing.T, opts ...Option) *Renderer {
	t.Helper()

	r, err := New(testOperator, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func bookingData() domain.EventData {
	return domain.EventData{
		"customerName":  "Priya",
		"customerEmail": "priya@example.com",
		"customerPhone": "98765 43210",
		"services":      []any{"Haircut", "Facial", "Manicure"},
		"date":          "2026-03-02",
		"time":          "10:30 AM",
		"amount":        1500,
		"bookingId":     "BK-1001",
	}
}

func TestNewRejectsInvalidOperator(t *testing.T) {
	t.Parallel()

	_, err := New("not-a-phone")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("New() error = %v, want ErrValidation", err)
	}

	r, err := New("9740303404")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if r.OperatorRecipient() != testOperator {
		t.Fatalf("OperatorRecipient() = %q, want %q", r.OperatorRecipient(), testOperator)
	}
}

func TestRenderBookingCreated(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t)

	body, recipient, err := r.Render(domain.KindBookingCreated, bookingData())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if recipient != testOperator {
		t.Fatalf("recipient = %q, want %q", recipient, testOperator)
	}

	for _, want := range []string{
		"NEW APPOINTMENT BOOKED",
		"Customer: Priya",
		"Email: priya@example.com",
		"Phone: +919876543210",
		"Date: Monday, 2 March 2026",
		"Time: 10:30 AM",
		"Haircut, Facial, Manicure",
		"Total Amount: ₹1,500",
		"Booking ID: BK-1001",
		"- AKSHATA PARLOR System",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t)

	kinds := []domain.Kind{
		domain.KindBookingCreated,
		domain.KindBookingConfirmation,
		domain.KindPaymentReceived,
	}
	data := bookingData()
	data["paymentMethod"] = "upi"

	for _, kind := range kinds {
		first, firstRecipient, err := r.Render(kind, data)
		if err != nil {
			t.Fatalf("Render(%s) error = %v", kind, err)
		}
		second, secondRecipient, err := r.Render(kind, data)
		if err != nil {
			t.Fatalf("Render(%s) error = %v", kind, err)
		}
		if first != second || firstRecipient != secondRecipient {
			t.Fatalf("Render(%s) is not deterministic", kind)
		}
	}
}

func TestRenderMissingFieldsFailsWithInvalidEventData(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t)

	body, recipient, err := r.Render(domain.KindBookingCreated, domain.EventData{})
	if !errors.Is(err, domain.ErrInvalidEventData) {
		t.Fatalf("Render() error = %v, want ErrInvalidEventData", err)
	}
	if body != "" || recipient != "" {
		t.Fatalf("Render() returned partial output body=%q recipient=%q", body, recipient)
	}
	for _, field := range []string{"customerName", "services", "date", "time", "amount", "bookingId"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not name %s", err.Error(), field)
		}
	}
}

func TestRenderMalformedFields(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t)

	tests := []struct {
		name   string
		mutate func(domain.EventData)
	}{
		{name: "bad date", mutate: func(d domain.EventData) { d["date"] = "next tuesday" }},
		{name: "negative amount", mutate: func(d domain.EventData) { d["amount"] = -10 }},
		{name: "amount not numeric", mutate: func(d domain.EventData) { d["amount"] = "lots" }},
		{name: "amount beyond int64", mutate: func(d domain.EventData) { d["amount"] = 1e19 }},
		{name: "amount above bound as string", mutate: func(d domain.EventData) { d["amount"] = "2e15" }},
		{name: "services wrong type", mutate: func(d domain.EventData) { d["services"] = 42 }},
		{name: "empty services", mutate: func(d domain.EventData) { d["services"] = []string{" "} }},
		{name: "blank booking id", mutate: func(d domain.EventData) { d["bookingId"] = "  " }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := bookingData()
			tt.mutate(data)

			_, _, err := r.Render(domain.KindBookingCreated, data)
			if !errors.Is(err, domain.ErrInvalidEventData) {
				t.Fatalf("Render() error = %v, want ErrInvalidEventData", err)
			}
		})
	}
}

func TestRenderBookingConfirmation(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t)

	body, recipient, err := r.Render(domain.KindBookingConfirmation, bookingData())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if recipient != "+919876543210" {
		t.Fatalf("recipient = %q, want +919876543210", recipient)
	}
	if !strings.Contains(body, "Services: Haircut, Facial +1 more") {
		t.Fatalf("body does not shorten services:\n%s", body)
	}
	if !strings.Contains(body, "Hi Priya!") {
		t.Fatalf("body missing greeting:\n%s", body)
	}

	data := bookingData()
	delete(data, "customerPhone")
	if _, _, err := r.Render(domain.KindBookingConfirmation, data); !errors.Is(err, domain.ErrInvalidEventData) {
		t.Fatalf("Render() error = %v, want ErrInvalidEventData", err)
	}
}

func TestRenderPaymentReceived(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t)

	data := bookingData()
	data["paymentMethod"] = "card"
	data["paymentId"] = "pay_123"

	body, recipient, err := r.Render(domain.KindPaymentReceived, data)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if recipient != testOperator {
		t.Fatalf("recipient = %q, want %q", recipient, testOperator)
	}
	for _, want := range []string{
		"PAYMENT RECEIVED - AKSHATA PARLOR",
		"Payment Method: Card Payment",
		"Payment ID: pay_123",
		"Appointment: 02/03/2026 at 10:30 AM",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}

	delete(data, "paymentMethod")
	if _, _, err := r.Render(domain.KindPaymentReceived, data); !errors.Is(err, domain.ErrInvalidEventData) {
		t.Fatalf("Render() error = %v, want ErrInvalidEventData", err)
	}
}

func TestRenderGenericTest(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, WithBusinessName("Glow Studio"))

	sentAt := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	body, recipient, err := r.Render(domain.KindGenericTest, domain.EventData{"sentAt": sentAt})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if recipient != testOperator {
		t.Fatalf("recipient = %q, want %q", recipient, testOperator)
	}
	if !strings.HasPrefix(body, "TEST MESSAGE - 2 Mar 2026 09:15:00 UTC") {
		t.Fatalf("body = %q", body)
	}
	if !strings.Contains(body, "Glow Studio booking system") {
		t.Fatalf("body missing business name: %q", body)
	}

	if _, _, err := r.Render(domain.KindGenericTest, nil); err != nil {
		t.Fatalf("Render() with nil data error = %v", err)
	}

	_, _, err = r.Render(domain.KindGenericTest, domain.EventData{"sentAt": "garbage"})
	if !errors.Is(err, domain.ErrInvalidEventData) {
		t.Fatalf("Render() with malformed sentAt error = %v, want ErrInvalidEventData", err)
	}
}

func TestRenderUnsupportedKind(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t)

	_, _, err := r.Render(domain.Kind("review-posted"), bookingData())
	if !errors.Is(err, domain.ErrInvalidEventData) {
		t.Fatalf("Render() error = %v, want ErrInvalidEventData", err)
	}
}

func TestRenderTruncatesLongBodies(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, WithMaxBodyLength(80))

	data := bookingData()
	data["services"] = []string{strings.Repeat("Keratin treatment ", 20)}

	body, _, err := r.Render(domain.KindBookingCreated, data)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got := utf8.RuneCountInString(body); got != 80 {
		t.Fatalf("body length = %d, want 80", got)
	}
	if !strings.HasSuffix(body, TruncationMarker) {
		t.Fatalf("body does not end with truncation marker: %q", body)
	}
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t)

	tests := []struct {
		input string
		want  string
	}{
		{input: "98765 43210", want: "+919876543210"},
		{input: "098765-43210", want: "+919876543210"},
		{input: "+14155550100", want: "+14155550100"},
		{input: "0014155550100", want: "+14155550100"},
		{input: "", want: ""},
	}

	for _, tt := range tests {
		if got := r.NormalizePhone(tt.input); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCorrelationIDIsStable(t *testing.T) {
	t.Parallel()

	first := CorrelationID(domain.KindBookingCreated, bookingData())
	second := CorrelationID(domain.KindBookingCreated, bookingData())
	if first != second {
		t.Fatalf("CorrelationID() not stable: %s != %s", first, second)
	}
	if !strings.HasPrefix(first, "evt-") || len(first) != len("evt-")+16 {
		t.Fatalf("CorrelationID() = %q, want evt- followed by 16 hex digits", first)
	}

	if other := CorrelationID(domain.KindPaymentReceived, bookingData()); other == first {
		t.Fatal("CorrelationID() should differ across kinds")
	}

	changed := bookingData()
	changed["bookingId"] = "BK-1002"
	if other := CorrelationID(domain.KindBookingCreated, changed); other == first {
		t.Fatal("CorrelationID() should differ across event data")
	}
}

func TestRenderTruncationKeepsMarkerAtMinimumLength(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, WithMaxBodyLength(MinBodyLength))

	body, _, err := r.Render(domain.KindGenericTest, nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got := utf8.RuneCountInString(body); got != MinBodyLength {
		t.Fatalf("body length = %d, want %d", got, MinBodyLength)
	}
	if body != "T"+TruncationMarker {
		t.Fatalf("body = %q", body)
	}

	tooShort := newTestRenderer(t, WithMaxBodyLength(8))
	body, _, err = tooShort.Render(domain.KindGenericTest, nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.HasSuffix(body, TruncationMarker) {
		t.Fatalf("length below the marker should be ignored, body = %q", body)
	}
}
