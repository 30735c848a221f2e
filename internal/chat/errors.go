package chat

import "errors"

// Sentinel errors for agent execution.
// HTTP handlers use errors.Is() to map these to status codes.
var (
	// ErrInvalidSession indicates the session ID is invalid or malformed.
	ErrInvalidSession = errors.New("invalid session")

	// ErrExecutionFailed indicates the model provider call failed.
	ErrExecutionFailed = errors.New("execution failed")
)
