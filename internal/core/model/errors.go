package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrIndexUnavailable means no document could be embedded at all.
	ErrIndexUnavailable = errors.New("embedding index unavailable")
	// ErrDimensionMismatch is returned when two vectors of different length are compared.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// OutOfRangeError is fatal to a run: an event falls outside the requested window,
// or the window itself is inverted.
type OutOfRangeError struct {
	Day    time.Time
	Window Window
}

func (e *OutOfRangeError) Error() string {
	if e.Day.IsZero() {
		return fmt.Sprintf("invalid window %s", e.Window)
	}
	return fmt.Sprintf("day %s outside window %s", e.Day.Format(DayLayout), e.Window)
}

type EmptyPartitionError struct {
	Key Key
}

func (e *EmptyPartitionError) Error() string {
	return fmt.Sprintf("partition %s has no events", e.Key)
}

// EmbeddingServiceError records a per-document embedding failure.
type EmbeddingServiceError struct {
	DocumentID string
	Cause      error
}

func (e *EmbeddingServiceError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("embedding failed for %s", e.DocumentID)
	}
	return fmt.Sprintf("embedding failed for %s: %v", e.DocumentID, e.Cause)
}

func (e *EmbeddingServiceError) Unwrap() error {
	return e.Cause
}

type NotFoundError struct {
	DocumentID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document %s not found in index", e.DocumentID)
}

// DegenerateVectorError is returned when cosine similarity is undefined.
type DegenerateVectorError struct {
	DocumentID string
}

func (e *DegenerateVectorError) Error() string {
	if e.DocumentID == "" {
		return "degenerate vector: zero norm"
	}
	return fmt.Sprintf("degenerate vector for %s: zero norm", e.DocumentID)
}

// MalformedResponseError means the generation collaborator broke the four-section contract.
type MalformedResponseError struct {
	Key      Key
	Missing  []string
	Attempts int
	Cause    error
}

func (e *MalformedResponseError) Error() string {
	msg := fmt.Sprintf("malformed briefing for %s after %d attempt(s)", e.Key, e.Attempts)
	if len(e.Missing) > 0 {
		msg += ": missing " + strings.Join(e.Missing, ", ")
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}
