package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// RepositoryInvalid indicates the target path is missing, not a directory,
	// or not inside a git work tree
	RepositoryInvalid ErrorCode = "REPOSITORY_INVALID"
	// ConfigInvalid indicates a configuration value is out of range
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// StoreInvariant indicates a frequency record violates 0 <= k <= n
	StoreInvariant ErrorCode = "STORE_INVARIANT"
	// StoreUnavailable indicates the persisted store could not be opened
	StoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// DetectorFailed indicates a detector could not evaluate a site
	DetectorFailed ErrorCode = "DETECTOR_FAILED"
	// ParseFailed indicates a source file could not be parsed
	ParseFailed ErrorCode = "PARSE_FAILED"
	// GitFailed indicates a git command exited with an error
	GitFailed ErrorCode = "GIT_FAILED"
	// Timeout indicates an external command timed out
	Timeout ErrorCode = "TIMEOUT"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditConfig suggests changing a configuration value
	EditConfig FixActionType = "edit-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// PpdeError represents an error with a stable code, message, and suggestions
type PpdeError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewPpdeError creates a new PpdeError
func NewPpdeError(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *PpdeError {
	if suggestedFixes == nil {
		suggestedFixes = GetSuggestedFixes(code)
	}
	return &PpdeError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
	}
}

// Error implements the error interface
func (e *PpdeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *PpdeError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *PpdeError) WithDetails(details interface{}) *PpdeError {
	e.Details = details
	return e
}

// RepositoryError reports an unusable analysis target.
func RepositoryError(path string, cause error) *PpdeError {
	return NewPpdeError(RepositoryInvalid, "Not a git repository: "+path, cause, nil).
		WithDetails(map[string]interface{}{"path": path})
}

// CodeOf returns the code of the first PpdeError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var pe *PpdeError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	RepositoryInvalid: {
		{
			Type:        RunCommand,
			Command:     "git status",
			Safe:        true,
			Description: "Verify you're in a git repository",
		},
	},
	StoreInvariant: {
		{
			Type:        RunCommand,
			Command:     "ppde baseline build",
			Safe:        true,
			Description: "Rebuild the frequency baseline from history",
		},
	},
	StoreUnavailable: {
		{
			Type:        RunCommand,
			Command:     "ppde baseline build",
			Safe:        true,
			Description: "Create the frequency baseline",
		},
	},
	ConfigInvalid: {
		{
			Type:        EditConfig,
			Safe:        true,
			Description: "Fix the value in .ppde/config.json or run 'ppde config show'",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
