package domain

import (
	"slices"
	"time"
)

type AttemptOutcome string

const (
	OutcomeSuccess             AttemptOutcome = "success"
	OutcomeEngineError         AttemptOutcome = "engine_error"
	OutcomeTimeout             AttemptOutcome = "timeout"
	OutcomeRejectedByValidator AttemptOutcome = "rejected_by_validator"
)

// EngineAttempt is one engine invocation. It is never modified after being appended.
type EngineAttempt struct {
	EngineID     string
	EngineKind   EngineKind
	ChainIndex   int
	StartedAt    time.Time
	Duration     time.Duration
	Outcome      AttemptOutcome
	Confidence   float64
	ReducedScope bool
	Result       *ExtractionResult
	ErrorKind    EngineErrorKind
	ErrorDetail  string
}

// AttemptLog is the append-only audit trail for one document.
type AttemptLog struct {
	max     int
	entries []EngineAttempt
}

// NewAttemptLog creates a log bounded at max entries (0 = unbounded).
func NewAttemptLog(max int) *AttemptLog {
	return &AttemptLog{max: max}
}

// Append records an attempt and reports false once the bound is reached.
func (l *AttemptLog) Append(a EngineAttempt) bool {
	if l.Full() {
		return false
	}
	l.entries = append(l.entries, a)
	return true
}

func (l *AttemptLog) Full() bool {
	return l.max > 0 && len(l.entries) >= l.max
}

func (l *AttemptLog) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the recorded attempts in append order.
func (l *AttemptLog) Entries() []EngineAttempt {
	return slices.Clone(l.entries)
}
