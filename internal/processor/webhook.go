package processor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
)

// Webhook event types emitted by the processor.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
)

// DefaultTolerance bounds how stale a signed webhook timestamp may be.
const DefaultTolerance = 5 * time.Minute

// Event is a verified webhook payload.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	CreatedAt   int64           `json:"created_at"`
	IntentRef   string          `json:"intent_ref"`
	AmountCents int64           `json:"amount_cents"`
	MethodRef   string          `json:"method_ref"`
	DeclineCode string          `json:"decline_code,omitempty"`
	Metadata    EventMetadata   `json:"metadata"`
	Raw         json.RawMessage `json:"-"`
}

// EventMetadata echoes the metadata attached at intent creation. Fields are
// strings on the wire; zero values mean the processor dropped them.
type EventMetadata struct {
	InvoiceID   string `json:"invoice_id"`
	CustomerID  string `json:"customer_id"`
	PaymentType string `json:"payment_type"`
}

// VerifyEvent checks the signature header against the shared secret and
// parses the payload. The header format is "t=<unix>,v1=<hex hmac>", signed
// over "<unix>.<body>". Verification failures and parse failures both map
// to ErrInvalidSignature so callers reject without leaking which check
// tripped.
func VerifyEvent(payload []byte, sigHeader, secret string, tolerance time.Duration, now time.Time) (*Event, error) {
	ts, sigs, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, err
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > tolerance || age < -tolerance {
		return nil, errors.NewDomainError("stale_signature", "webhook timestamp outside tolerance", errors.ErrInvalidSignature)
	}

	expected := computeSignature(ts, payload, secret)
	valid := false
	for _, sig := range sigs {
		got, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			valid = true
		}
	}
	if !valid {
		return nil, errors.NewDomainError("bad_signature", "webhook signature mismatch", errors.ErrInvalidSignature)
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, errors.NewDomainError("bad_payload", "webhook payload is not valid JSON", errors.ErrInvalidSignature)
	}
	ev.Raw = json.RawMessage(payload)
	return &ev, nil
}

// SignPayload produces a signature header for a payload. Used by the
// simulator and by tests.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	sig := computeSignature(ts, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(sig))
}

func computeSignature(ts int64, payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return mac.Sum(nil)
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var ts int64 = -1
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, errors.NewDomainError("bad_signature_header", "unparseable timestamp in signature header", errors.ErrInvalidSignature)
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts < 0 || len(sigs) == 0 {
		return 0, nil, errors.NewDomainError("bad_signature_header", "signature header missing timestamp or signature", errors.ErrInvalidSignature)
	}
	return ts, sigs, nil
}
