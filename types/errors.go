package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery rejects empty or malformed input before any
	// external call is made.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrAgentUnavailable signals that an agent's backing index or
	// provider is unreachable. Recovered by the orchestrator, never
	// shown to users as-is.
	ErrAgentUnavailable = errors.New("agent unavailable")

	// ErrRerankUnavailable is non-fatal: search falls back
	// to the raw hybrid order.
	ErrRerankUnavailable = errors.New("rerank unavailable")

	// ErrCursorReset signals that the upstream invalidated our sync
	// cursor. Recovery is an explicit full rebuild.
	ErrCursorReset = errors.New("sync cursor reset by upstream")
)

// SyncPartialError reports a sync batch that could not be fully applied.
// Cursor is the last safely persisted position; replaying from it
// reprocesses the unapplied remainder and nothing before it.
type SyncPartialError struct {
	Source    string
	Cursor    string
	Applied   int
	Unapplied []string
	Err       error
}

func (e *SyncPartialError) Error() string {
	return fmt.Sprintf("sync of %s partially failed after %d changes (%d unapplied, cursor held): %v",
		e.Source, e.Applied, len(e.Unapplied), e.Err)
}

func (e *SyncPartialError) Unwrap() error {
	return e.Err
}
