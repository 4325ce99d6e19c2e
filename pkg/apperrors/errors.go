package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrInsufficientHistory is returned when a diff is requested for a
	// connection with fewer than two recorded sync runs.
	ErrInsufficientHistory = errors.New("insufficient sync history: need at least two sync runs")

	// ErrIdentityCollision indicates two entities of the same kind share a
	// composite key within one sync run. This is a data-integrity bug, not a
	// recoverable condition.
	ErrIdentityCollision = errors.New("entity identity collision within sync run")

	// ErrRunFinalized is returned when attempting to transition a sync or
	// diff run that already reached a terminal status.
	ErrRunFinalized = errors.New("run already finalized")
)
