// Package apperr holds the typed errors the session engine returns to callers.
// State-machine precondition failures are never retried by the engine; only
// ErrEvaluationDeferred is recoverable.
package apperr

import "errors"

var (
	// ErrNotFound covers unknown simulation, session, or invitation ids.
	ErrNotFound = errors.New("not found")

	// ErrStepNotFound means the step does not belong to the session's simulation.
	ErrStepNotFound = errors.New("step not found")

	// ErrAccessDenied means no valid invitation exists and the simulation is not
	// published.
	ErrAccessDenied = errors.New("access denied")

	// ErrAlreadyStarted means a non-expired session already exists for the
	// (candidate, simulation) pair.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrInvalidState means the operation is not allowed in the session's
	// current status.
	ErrInvalidState = errors.New("invalid session state")

	// ErrEvaluationDeferred means the generation capability is unavailable or
	// rate limited; the pipeline retries with backoff.
	ErrEvaluationDeferred = errors.New("evaluation deferred")

	// ErrResultNotAvailable means the session has not completed yet.
	ErrResultNotAvailable = errors.New("result not available")
)
