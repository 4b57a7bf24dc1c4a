package notification

import (
	"context"
	"time"
)

// ReceiptItem is one invoice line rendered in the receipt.
type ReceiptItem struct {
	Description string
	Quantity    int
	AmountCents int64
}

// Receipt is everything needed to render a payment confirmation email.
type Receipt struct {
	To             string
	CustomerName   string
	InvoiceNumber  string
	PaymentType    string
	AmountCents    int64
	TotalCents     int64
	RemainingCents int64
	DueDate        time.Time
	MaskedCard     string
	InvoiceStatus  string
	Items          []ReceiptItem
}

// Sender delivers a single receipt. Implementations must not retry
// internally; retry policy lives in the Notifier.
type Sender interface {
	SendReceipt(ctx context.Context, r Receipt) error
}
