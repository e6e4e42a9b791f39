package llm

import (
	"fmt"
)

// Reason classifies why structuring gave up.
type Reason string

const (
	ReasonUnparseable Reason = "unparseable"
	ReasonTimeout     Reason = "timeout"
	ReasonAPI         Reason = "api"
)

// StructuringFailedError is returned when every attempt failed. Callers are
// expected to fall back to the deterministic parser.
type StructuringFailedError struct {
	Reason   Reason
	Attempts int
	Err      error
}

func (e *StructuringFailedError) Error() string {
	return fmt.Sprintf("structuring failed after %d attempts (%s): %v", e.Attempts, e.Reason, e.Err)
}

func (e *StructuringFailedError) Unwrap() error { return e.Err }
