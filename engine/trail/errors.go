package trail

import "errors"

var (
	// ErrNotInitialized is returned when a store or orchestrator is used before Initialize.
	ErrNotInitialized = errors.New("trail: not initialized")

	// ErrReleased is returned when a store or orchestrator is used after Release.
	ErrReleased = errors.New("trail: released")

	// ErrInvalidState is returned when an orchestrator operation is illegal in the current state.
	ErrInvalidState = errors.New("trail: invalid state transition")

	// ErrInputOverflow is returned when a batch would exceed the per-trail input capacity.
	ErrInputOverflow = errors.New("trail: input count exceeds capacity")

	// ErrInvalidConfig is returned when a trail configuration fails validation.
	ErrInvalidConfig = errors.New("trail: invalid config")
)
