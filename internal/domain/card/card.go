package card

import (
	"fmt"
	"time"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
	"github.com/google/uuid"
)

// Card is a stored payment method reference. No PAN data is ever held, only
// the processor-side method reference and display metadata.
type Card struct {
	ID                 uuid.UUID
	CustomerID         uuid.UUID
	ProcessorMethodRef string
	Brand              string
	Last4              string
	ExpMonth           int
	ExpYear            int
	Fingerprint        *string
	IsDefault          bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// New creates a new stored card for a customer
func New(customerID uuid.UUID, methodRef, brand, last4 string, expMonth, expYear int, fingerprint *string) (*Card, error) {
	if methodRef == "" {
		return nil, errors.NewValidationError("processor_method_ref", "cannot be empty")
	}
	if len(last4) != 4 {
		return nil, errors.NewValidationError("last4", "must be exactly 4 digits")
	}
	if expMonth < 1 || expMonth > 12 {
		return nil, errors.NewValidationError("exp_month", "must be between 1 and 12")
	}

	now := time.Now()
	return &Card{
		ID:                 uuid.New(),
		CustomerID:         customerID,
		ProcessorMethodRef: methodRef,
		Brand:              brand,
		Last4:              last4,
		ExpMonth:           expMonth,
		ExpYear:            expYear,
		Fingerprint:        fingerprint,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Refresh updates display metadata and the method reference in place. Used
// when a fingerprint match reveals the same physical card was re-attached
// under a new processor reference.
func (c *Card) Refresh(methodRef, brand, last4 string, expMonth, expYear int) {
	c.ProcessorMethodRef = methodRef
	c.Brand = brand
	c.Last4 = last4
	c.ExpMonth = expMonth
	c.ExpYear = expYear
	c.UpdatedAt = time.Now()
}

// Masked returns the display form, e.g. "visa ending 4242".
func (c *Card) Masked() string {
	return fmt.Sprintf("%s ending %s", c.Brand, c.Last4)
}

// IsExpired reports whether the card is expired as of the given time.
func (c *Card) IsExpired(now time.Time) bool {
	if c.ExpYear < now.Year() {
		return true
	}
	return c.ExpYear == now.Year() && c.ExpMonth < int(now.Month())
}

// Dedupe finds the stored card a freshly seen processor method resolves to.
// An exact reference match wins over a fingerprint match, so a card whose
// reference already matches is never overwritten by fingerprint logic.
// Returns nil when no existing card matches and a new one must be created.
func Dedupe(existing []*Card, methodRef string, fingerprint *string) *Card {
	for _, c := range existing {
		if c.ProcessorMethodRef == methodRef {
			return c
		}
	}
	if fingerprint == nil || *fingerprint == "" {
		return nil
	}
	for _, c := range existing {
		if c.Fingerprint != nil && *c.Fingerprint == *fingerprint {
			return c
		}
	}
	return nil
}
