package api

import "github.com/google/uuid"

type (
	// RunID uniquely identifies a run that owns a property store
	RunID string

	// WaitID uniquely identifies an active or completed wait
	WaitID string
)

// NewRunID returns a fresh random run identifier
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// NewWaitID returns a fresh random wait identifier
func NewWaitID() WaitID {
	return WaitID(uuid.NewString())
}
