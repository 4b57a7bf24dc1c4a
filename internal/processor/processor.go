package processor

import (
	"context"

	"github.com/google/uuid"
)

// IntentStatus is the processor-side lifecycle of a charge intent.
type IntentStatus string

const (
	IntentSucceeded             IntentStatus = "succeeded"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentCanceled              IntentStatus = "canceled"
)

// Metadata is attached to every intent so outcome events can be tied back
// to the invoice even when the payment row lookup fails.
type Metadata struct {
	InvoiceID   uuid.UUID
	CustomerID  uuid.UUID
	PaymentType string
}

// Intent mirrors the processor's view of a charge.
type Intent struct {
	Ref          string
	ClientSecret string
	Status       IntentStatus
	AmountCents  int64
	MethodRef    string
	DeclineCode  string
	Metadata     Metadata
}

// PaymentMethod mirrors the processor's view of a stored card.
type PaymentMethod struct {
	Ref         string
	Brand       string
	Last4       string
	ExpMonth    int
	ExpYear     int
	Fingerprint string
}

// CreateIntentParams describes a new charge intent.
type CreateIntentParams struct {
	AmountCents    int64
	CustomerRef    string
	MethodRef      string
	OffSession     bool
	SetupFutureUse bool
	Metadata       Metadata
}

// Client is the outbound payment processor port. Implementations must be
// safe for concurrent use.
type Client interface {
	// CreateCustomer registers the customer with the processor and returns
	// the processor-side customer reference.
	CreateCustomer(ctx context.Context, name, email string) (string, error)

	// CreateIntent creates a charge intent. For on-session advance charges
	// the returned intent carries a client secret for browser confirmation.
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)

	// ConfirmOffSession confirms an intent against a stored method without
	// the customer present. A decline surfaces as *errors.DeclineError.
	ConfirmOffSession(ctx context.Context, intentRef string) (*Intent, error)

	// RetrieveIntent fetches the current state of an intent.
	RetrieveIntent(ctx context.Context, intentRef string) (*Intent, error)

	// RetrievePaymentMethod fetches stored method details, including the
	// fingerprint used for card dedup.
	RetrievePaymentMethod(ctx context.Context, methodRef string) (*PaymentMethod, error)
}
