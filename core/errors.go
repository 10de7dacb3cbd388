package core

import (
	"fmt"
	"time"
)

// AuthError means bearer token acquisition failed. A cached token, if one is
// still valid, survives the failed attempt.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("token acquisition: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError means the completion backend failed or returned a response
// without usable content.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion backend: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// GenerationError means the image job reached a failed terminal state,
// finished without a result, or no pipeline was available to run it.
// Status holds the backend's own wording for diagnostics.
type GenerationError struct {
	Status string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("image generation: status %s", e.Status)
	}
	return fmt.Sprintf("image generation: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// TimeoutError means a job did not reach a terminal status within the
// polling budget.
type TimeoutError struct {
	JobID  string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("image generation: job %s still running after %s", e.JobID, e.Budget)
}
