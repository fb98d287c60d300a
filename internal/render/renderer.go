package render

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	DefaultMaxBodyLength = 1000
	DefaultCountryCode   = "+91"
	DefaultBusinessName  = "AKSHATA PARLOR"

	// TruncationMarker terminates a body cut down to the configured maximum length.
	TruncationMarker = "…[truncated]"

	maxConfirmationServices = 2
)

// MinBodyLength is the smallest maximum body length that still leaves room for text before the
// truncation marker.
var MinBodyLength = utf8.RuneCountInString(TruncationMarker) + 1

var paymentMethodNames = map[string]string{
	"upi":  "UPI Payment",
	"card": "Card Payment",
	"cash": "Cash Payment",
}

// Renderer turns event data into channel-ready text. It holds configuration only and is safe for
// concurrent use.
type Renderer struct {
	operatorRecipient string
	countryCode       string
	businessName      string
	maxBodyLength     int
	printer           *message.Printer
}

type Option func(*Renderer)

func WithMaxBodyLength(n int) Option {
	return func(r *Renderer) {
		if n >= MinBodyLength {
			r.maxBodyLength = n
		}
	}
}

func WithCountryCode(code string) Option {
	return func(r *Renderer) {
		if trimmed := strings.TrimSpace(code); trimmed != "" {
			r.countryCode = "+" + strings.TrimPrefix(trimmed, "+")
		}
	}
}

func WithBusinessName(name string) Option {
	return func(r *Renderer) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			r.businessName = trimmed
		}
	}
}

func New(operatorRecipient string, opts ...Option) (*Renderer, error) {
	r := &Renderer{
		countryCode:   DefaultCountryCode,
		businessName:  DefaultBusinessName,
		maxBodyLength: DefaultMaxBodyLength,
		printer:       message.NewPrinter(language.MustParse("en-IN")),
	}
	for _, opt := range opts {
		opt(r)
	}

	recipient := r.NormalizePhone(operatorRecipient)
	if !domain.IsE164(recipient) {
		return nil, fmt.Errorf("%w: operator recipient %q is not a valid phone number", domain.ErrValidation, operatorRecipient)
	}
	r.operatorRecipient = recipient

	return r, nil
}

// OperatorRecipient is the address operator-facing kinds are delivered to.
func (r *Renderer) OperatorRecipient() string {
	return r.operatorRecipient
}

// Render builds the body and recipient for kind. It fails with domain.ErrInvalidEventData when
// data lacks fields the template needs and never returns a partially rendered body.
func (r *Renderer) Render(kind domain.Kind, data domain.EventData) (body string, recipient string, err error) {
	switch kind {
	case domain.KindBookingCreated:
		body, err = r.bookingCreated(data)
		recipient = r.operatorRecipient
	case domain.KindBookingConfirmation:
		body, recipient, err = r.bookingConfirmation(data)
	case domain.KindPaymentReceived:
		body, err = r.paymentReceived(data)
		recipient = r.operatorRecipient
	case domain.KindGenericTest:
		body, err = r.genericTest(data)
		recipient = r.operatorRecipient
	default:
		return "", "", fmt.Errorf("%w: unsupported kind %q", domain.ErrInvalidEventData, kind)
	}
	if err != nil {
		return "", "", err
	}

	return r.truncate(body), recipient, nil
}

func (r *Renderer) bookingCreated(data domain.EventData) (string, error) {
	f := newFieldReader(data)
	name := f.requireString("customerName")
	services := f.requireStrings("services")
	date := f.requireDate("date")
	at := f.requireString("time")
	amount := f.requireAmount("amount")
	bookingID := f.requireString("bookingId")
	email, _ := f.optionalString("customerEmail")
	phone, _ := f.optionalString("customerPhone")
	if err := f.err(domain.KindBookingCreated); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("NEW APPOINTMENT BOOKED\n\n")
	fmt.Fprintf(&b, "Customer: %s\n", name)
	fmt.Fprintf(&b, "Email: %s\n", orNotProvided(email))
	fmt.Fprintf(&b, "Phone: %s\n\n", orNotProvided(r.NormalizePhone(phone)))
	fmt.Fprintf(&b, "Date: %s\n", date.Format("Monday, 2 January 2006"))
	fmt.Fprintf(&b, "Time: %s\n\n", at)
	fmt.Fprintf(&b, "Services:\n%s\n\n", strings.Join(services, ", "))
	fmt.Fprintf(&b, "Total Amount: %s\n\n", r.formatAmount(amount))
	fmt.Fprintf(&b, "Booking ID: %s\n\n", bookingID)
	b.WriteString("Please confirm the appointment with the customer.\n\n")
	fmt.Fprintf(&b, "- %s System", r.businessName)

	return b.String(), nil
}

func (r *Renderer) bookingConfirmation(data domain.EventData) (string, string, error) {
	f := newFieldReader(data)
	name := f.requireString("customerName")
	phone := f.requireString("customerPhone")
	services := f.requireStrings("services")
	date := f.requireDate("date")
	at := f.requireString("time")
	amount := f.requireAmount("amount")
	bookingID := f.requireString("bookingId")
	if err := f.err(domain.KindBookingConfirmation); err != nil {
		return "", "", err
	}

	recipient := r.NormalizePhone(phone)
	if !domain.IsE164(recipient) {
		return "", "", fmt.Errorf("%w: %s: malformed customerPhone", domain.ErrInvalidEventData, domain.KindBookingConfirmation)
	}

	listed := services
	suffix := ""
	if len(services) > maxConfirmationServices {
		listed = services[:maxConfirmationServices]
		suffix = fmt.Sprintf(" +%d more", len(services)-maxConfirmationServices)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s - Booking Confirmed!\n\n", r.businessName)
	fmt.Fprintf(&b, "Hi %s!\n\n", name)
	b.WriteString("Your appointment is confirmed:\n")
	fmt.Fprintf(&b, "%s at %s\n", date.Format("Mon, 2 Jan"), at)
	fmt.Fprintf(&b, "Services: %s%s\n", strings.Join(listed, ", "), suffix)
	fmt.Fprintf(&b, "Amount: %s\n\n", r.formatAmount(amount))
	fmt.Fprintf(&b, "Booking ID: %s\n\n", bookingID)
	fmt.Fprintf(&b, "Thank you for choosing %s!", r.businessName)

	return b.String(), recipient, nil
}

func (r *Renderer) paymentReceived(data domain.EventData) (string, error) {
	f := newFieldReader(data)
	name := f.requireString("customerName")
	method := f.requireString("paymentMethod")
	amount := f.requireAmount("amount")
	bookingID := f.requireString("bookingId")
	date := f.requireDate("date")
	at := f.requireString("time")
	email, _ := f.optionalString("customerEmail")
	phone, _ := f.optionalString("customerPhone")
	paymentID, _ := f.optionalString("paymentId")
	var services []string
	if _, ok := data["services"]; ok {
		services = f.requireStrings("services")
	}
	if err := f.err(domain.KindPaymentReceived); err != nil {
		return "", err
	}

	methodName, ok := paymentMethodNames[strings.ToLower(method)]
	if !ok {
		methodName = "Cash Payment"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PAYMENT RECEIVED - %s\n\n", r.businessName)
	fmt.Fprintf(&b, "Customer: %s\n", name)
	fmt.Fprintf(&b, "Email: %s\n", orNotProvided(email))
	fmt.Fprintf(&b, "Phone: %s\n\n", orNotProvided(r.NormalizePhone(phone)))
	fmt.Fprintf(&b, "Payment Method: %s\n", methodName)
	fmt.Fprintf(&b, "Amount: %s\n", r.formatAmount(amount))
	fmt.Fprintf(&b, "Booking ID: %s\n", bookingID)
	if paymentID != "" {
		fmt.Fprintf(&b, "Payment ID: %s\n", paymentID)
	}
	fmt.Fprintf(&b, "\nAppointment: %s at %s\n", date.Format("02/01/2006"), at)
	if len(services) > 0 {
		fmt.Fprintf(&b, "Services: %s\n", strings.Join(services, ", "))
	}
	b.WriteString("\nPayment confirmed and appointment secured!\n\n")
	fmt.Fprintf(&b, "- %s System", r.businessName)

	return b.String(), nil
}

func (r *Renderer) genericTest(data domain.EventData) (string, error) {
	f := newFieldReader(data)
	sentAt, hasSentAt := f.optionalTime("sentAt")
	if err := f.err(domain.KindGenericTest); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("TEST MESSAGE")
	if hasSentAt {
		fmt.Fprintf(&b, " - %s", sentAt.UTC().Format("2 Jan 2006 15:04:05 MST"))
	}
	fmt.Fprintf(&b, "\n\nThis is a test message from the %s booking system.\n\n", r.businessName)
	b.WriteString("Notification delivery is working correctly.\n\n")
	fmt.Fprintf(&b, "- %s System", r.businessName)

	return b.String(), nil
}

// NormalizePhone strips separators and prefixes the default country code to local numbers.
func (r *Renderer) NormalizePhone(phone string) string {
	cleaned := strings.Map(func(c rune) rune {
		switch c {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return c
	}, strings.TrimSpace(phone))
	if cleaned == "" {
		return ""
	}
	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	if strings.HasPrefix(cleaned, "00") {
		return "+" + strings.TrimPrefix(cleaned, "00")
	}
	return r.countryCode + strings.TrimPrefix(cleaned, "0")
}

func (r *Renderer) formatAmount(amount float64) string {
	if amount == math.Trunc(amount) {
		return r.printer.Sprintf("₹%d", int64(amount))
	}
	return r.printer.Sprintf("₹%.2f", amount)
}

func (r *Renderer) truncate(body string) string {
	if utf8.RuneCountInString(body) <= r.maxBodyLength {
		return body
	}

	runes := []rune(body)
	return string(runes[:r.maxBodyLength-utf8.RuneCountInString(TruncationMarker)]) + TruncationMarker
}

func orNotProvided(v string) string {
	if strings.TrimSpace(v) == "" {
		return "Not provided"
	}
	return v
}
