package event

import (
	"time"

	"github.com/google/uuid"
)

// MaxReplayAttempts bounds how many failed replays a parked event survives
// before it is marked FAILED and needs manual attention.
const MaxReplayAttempts = 5

// ResolutionStatus tracks what happened to a parked event.
type ResolutionStatus string

const (
	ResolutionPending  ResolutionStatus = "PENDING"
	ResolutionResolved ResolutionStatus = "RESOLVED"
	ResolutionFailed   ResolutionStatus = "FAILED"
)

// Unreconciled is an outcome event that could not be matched or synthesized
// into a payment. It is parked verbatim for operator-driven replay instead
// of being retried automatically.
type Unreconciled struct {
	ID           uuid.UUID
	ProcessorRef string
	EventType    string
	Payload      []byte
	Reason       string
	Status       ResolutionStatus
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ResolvedAt   *time.Time
}

// NewUnreconciled parks a raw event with the reason it could not be applied.
func NewUnreconciled(processorRef, eventType string, payload []byte, reason string) *Unreconciled {
	now := time.Now()
	return &Unreconciled{
		ID:           uuid.New(),
		ProcessorRef: processorRef,
		EventType:    eventType,
		Payload:      payload,
		Reason:       reason,
		Status:       ResolutionPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MarkResolved records a successful replay.
func (u *Unreconciled) MarkResolved() {
	now := time.Now()
	u.Status = ResolutionResolved
	u.ResolvedAt = &now
	u.UpdatedAt = now
}

// RecordFailure counts another unsuccessful replay. The event stays PENDING
// and replayable until the attempt budget is spent, then turns FAILED.
func (u *Unreconciled) RecordFailure(reason string, maxAttempts int) {
	u.Attempts++
	u.Reason = reason
	if u.Attempts >= maxAttempts {
		u.Status = ResolutionFailed
	}
	u.UpdatedAt = time.Now()
}
