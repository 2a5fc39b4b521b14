package counsel

import (
	"errors"
	"fmt"
)

// ErrUnknownStage reports a stage identifier outside the five defined stages.
// It aborts the current turn (prompt construction cannot proceed without rules).
var ErrUnknownStage = errors.New("unknown counseling stage")

// GenerationError wraps a failure of the external text-generation collaborator.
// It always propagates to the caller of Process; there is no partial response.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PersistenceError wraps a summary-store failure. The agent treats it as a soft
// failure: logged and surfaced through MemorySummary/LastMemoryError, never
// allowed to block returning the generated response.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("summary store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
