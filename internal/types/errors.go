package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidURL         = errors.New("invalid URL")
	ErrBrowserUnavailable = errors.New("browser automation unavailable")
	ErrEngineRunning      = errors.New("engine is already running")
	ErrStorageClosed      = errors.New("storage is closed")
	ErrChallenge          = errors.New("anti-bot verification page")
)

// FailureClass names the last observed cause of a failed fetch.
type FailureClass string

const (
	FailureTimeout     FailureClass = "timeout"
	FailureConnection  FailureClass = "connection"
	FailureRateLimited FailureClass = "rate_limited"
	FailureServer      FailureClass = "server_error"
	FailureBlocked     FailureClass = "blocked"
	FailureStatus      FailureClass = "status"
	FailureRender      FailureClass = "render"
)

// FetchFailure is returned once a fetch has given up.
type FetchFailure struct {
	URL        string
	StatusCode int
	Class      FailureClass
	Attempts   int
	Err        error
}

func (e *FetchFailure) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s failed after %d attempt(s) (%s, status %d): %v",
			e.URL, e.Attempts, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s failed after %d attempt(s) (%s): %v", e.URL, e.Attempts, e.Class, e.Err)
}

func (e *FetchFailure) Unwrap() error { return e.Err }

// IsRetryable reports whether the failure class is a transient network fault.
func (e *FetchFailure) IsRetryable() bool {
	switch e.Class {
	case FailureTimeout, FailureConnection, FailureRateLimited, FailureServer:
		return true
	}
	return false
}

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the record pipeline.
type PipelineError struct {
	Stage  string
	Record *NewsRecord
	Err    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
