package domain

import "errors"

// Error taxonomy for the matching pipeline. Local scoring errors
// (ErrInvalidInput, ErrDimensionMismatch) are deterministic and surface to the
// caller; external-service errors degrade into the orchestrator fallback paths
// instead of failing the request.
var (
	// ErrInvalidInput marks malformed job or resume data. Not retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch marks a vector length mismatch. This is a
	// programming error, not a runtime condition to recover from.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrServiceUnavailable marks a failure of an external collaborator
	// (embedding provider, vector index, reasoning service).
	ErrServiceUnavailable = errors.New("external service unavailable")

	// ErrPersistenceFailure marks a failed match-record write. Logged only;
	// already-computed results are still returned.
	ErrPersistenceFailure = errors.New("persistence failure")
)
