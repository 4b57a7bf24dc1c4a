package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
)

// SendGridSender delivers receipts through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

// NewSendGridSender creates a sender using the given API key
func NewSendGridSender(apiKey, fromName, fromEmail string) *SendGridSender {
	return &SendGridSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SendGridSender) SendReceipt(ctx context.Context, r Receipt) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(r.CustomerName, r.To)

	subject := fmt.Sprintf("Payment received for invoice %s", r.InvoiceNumber)
	message := mail.NewSingleEmail(from, subject, to, renderPlainText(r), renderHTML(r))

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return errors.NewDomainError(
			"sendgrid_rejected",
			fmt.Sprintf("sendgrid returned status %d", resp.StatusCode),
			errors.ErrNotificationFailed,
		)
	}
	return nil
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func renderPlainText(r Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", r.CustomerName)
	fmt.Fprintf(&b, "We received your %s payment of %s for invoice %s.\n\n",
		strings.ToLower(r.PaymentType), formatCents(r.AmountCents), r.InvoiceNumber)
	if r.MaskedCard != "" {
		fmt.Fprintf(&b, "Paid with %s.\n\n", r.MaskedCard)
	}
	for _, item := range r.Items {
		fmt.Fprintf(&b, "  %s x%d  %s\n", item.Description, item.Quantity, formatCents(item.AmountCents))
	}
	fmt.Fprintf(&b, "\nInvoice total: %s\n", formatCents(r.TotalCents))
	if r.RemainingCents > 0 {
		fmt.Fprintf(&b, "Remaining balance: %s, due %s\n", formatCents(r.RemainingCents), r.DueDate.Format("January 2, 2006"))
	} else {
		b.WriteString("This invoice is now paid in full.\n")
	}
	b.WriteString("\nThank you!\n")
	return b.String()
}

func renderHTML(r Receipt) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<p>Hi %s,</p>", r.CustomerName)
	fmt.Fprintf(&b, "<p>We received your %s payment of <strong>%s</strong> for invoice <strong>%s</strong>.</p>",
		strings.ToLower(r.PaymentType), formatCents(r.AmountCents), r.InvoiceNumber)
	if r.MaskedCard != "" {
		fmt.Fprintf(&b, "<p>Paid with %s.</p>", r.MaskedCard)
	}
	b.WriteString("<table>")
	for _, item := range r.Items {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>x%d</td><td>%s</td></tr>",
			item.Description, item.Quantity, formatCents(item.AmountCents))
	}
	b.WriteString("</table>")
	fmt.Fprintf(&b, "<p>Invoice total: %s</p>", formatCents(r.TotalCents))
	if r.RemainingCents > 0 {
		fmt.Fprintf(&b, "<p>Remaining balance: %s, due %s</p>", formatCents(r.RemainingCents), r.DueDate.Format("January 2, 2006"))
	} else {
		b.WriteString("<p>This invoice is now paid in full.</p>")
	}
	b.WriteString("<p>Thank you!</p></body></html>")
	return b.String()
}
