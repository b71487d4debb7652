package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected failure modes
var (
	ErrNoFile            = errors.New("no audio file provided")
	ErrNoHits            = errors.New("no drum hits detected")
	ErrModelConfig       = errors.New("analysis model configuration error")
	ErrOracleUnavailable = errors.New("analysis service unreachable")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotReady          = errors.New("analysis not complete")
)

// AnalysisError represents a failure in the external analysis call
type AnalysisError struct {
	Stage  string // "request", "status", "decode"
	Status int    // HTTP status, 0 if the request never completed
	Body   string
	Cause  error
}

func (e *AnalysisError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("analysis failed at %s (status %d): %s", e.Stage, e.Status, e.Body)
	}
	return fmt.Sprintf("analysis failed at %s: %v", e.Stage, e.Cause)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// NewAnalysisError creates an AnalysisError
func NewAnalysisError(stage string, status int, body string, cause error) *AnalysisError {
	return &AnalysisError{
		Stage:  stage,
		Status: status,
		Body:   body,
		Cause:  cause,
	}
}

// Fixed user-facing messages. Configuration problems get a distinct
// message because re-uploading will not fix them.
const (
	msgConfig   = "The analysis model is not configured correctly. Please contact support."
	msgGeneric  = "Analysis failed. Please try uploading the file again."
	msgNoFile   = "Please choose an audio file to upload."
	msgNotReady = "Analysis is still running."
)

// UserMessage maps an analysis-path error to the message shown to the user
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModelConfig):
		return msgConfig
	case errors.Is(err, ErrNoFile):
		return msgNoFile
	case errors.Is(err, ErrNotReady):
		return msgNotReady
	default:
		return msgGeneric
	}
}
