// Package storage defines persistence contracts for the digest service.
package storage

import (
	"context"
	"time"
)

// Delivery outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// AttemptRecord is one durable delivery outcome for a subscriber in a pass.
type AttemptRecord struct {
	ID        int64
	PassID    string
	Email     string
	Outcome   string
	ItemCount int
	LastError string
	CreatedAt time.Time
}

// AttemptStore persists delivery attempt records.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, attempt AttemptRecord) error
	ListAttempts(ctx context.Context, limit int) ([]AttemptRecord, error)
}
