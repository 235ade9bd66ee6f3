package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewPpdeError(t *testing.T) {
	cause := errors.New("underlying error")
	fixes := []FixAction{{Type: RunCommand, Command: "git status"}}

	err := NewPpdeError(StoreInvariant, "record violates k <= n", cause, fixes)

	if err.Code != StoreInvariant {
		t.Errorf("Code = %v, want %v", err.Code, StoreInvariant)
	}
	if err.Message != "record violates k <= n" {
		t.Errorf("Message = %q, want %q", err.Message, "record violates k <= n")
	}
	if len(err.SuggestedFixes) != 1 || err.SuggestedFixes[0].Command != "git status" {
		t.Errorf("SuggestedFixes = %v, want the explicit fix", err.SuggestedFixes)
	}
}

func TestNewPpdeError_DefaultFixes(t *testing.T) {
	err := NewPpdeError(RepositoryInvalid, "bad path", nil, nil)
	if len(err.SuggestedFixes) == 0 {
		t.Error("expected default fixes for RepositoryInvalid")
	}

	err = NewPpdeError(DetectorFailed, "boom", nil, nil)
	if err.SuggestedFixes != nil {
		t.Errorf("expected no fixes for DetectorFailed, got %v", err.SuggestedFixes)
	}
}

func TestPpdeError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      GitFailed,
			message:   "git log failed",
			cause:     errors.New("exit status 128"),
			wantParts: []string{"GIT_FAILED", "git log failed", "exit status 128"},
		},
		{
			name:      "without cause",
			code:      ConfigInvalid,
			message:   "stableThreshold out of range",
			cause:     nil,
			wantParts: []string{"CONFIG_INVALID", "stableThreshold out of range"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewPpdeError(tt.code, tt.message, tt.cause, nil)
			got := err.Error()

			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestPpdeError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewPpdeError(InternalError, "something went wrong", cause, nil)

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}

	errNoCause := NewPpdeError(Timeout, "git timed out", nil, nil)
	if errNoCause.Unwrap() != nil {
		t.Errorf("Unwrap() on error without cause should return nil")
	}
}

func TestPpdeError_WithDetails(t *testing.T) {
	err := NewPpdeError(StoreInvariant, "bad record", nil, nil)
	result := err.WithDetails(map[string]int{"n": 3, "k": 5})

	if result != err {
		t.Error("WithDetails should return the same error for chaining")
	}
	if err.Details == nil {
		t.Error("Details should be set")
	}
}

func TestRepositoryError(t *testing.T) {
	err := RepositoryError("/tmp/nowhere", errors.New("stat failed"))
	if err.Code != RepositoryInvalid {
		t.Errorf("Code = %v, want %v", err.Code, RepositoryInvalid)
	}
	if !strings.Contains(err.Error(), "/tmp/nowhere") {
		t.Errorf("Error() = %q, want path", err.Error())
	}
}

func TestCodeOfAndIs(t *testing.T) {
	base := NewPpdeError(StoreInvariant, "bad record", nil, nil)
	wrapped := fmt.Errorf("loading snapshot: %w", base)

	if got := CodeOf(wrapped); got != StoreInvariant {
		t.Errorf("CodeOf(wrapped) = %q, want %q", got, StoreInvariant)
	}
	if !Is(wrapped, StoreInvariant) {
		t.Error("Is(wrapped, StoreInvariant) = false")
	}
	if Is(wrapped, ConfigInvalid) {
		t.Error("Is(wrapped, ConfigInvalid) = true")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("CodeOf(plain) should be empty")
	}
	if Is(nil, StoreInvariant) {
		t.Error("Is(nil, ...) should be false")
	}
}

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		RepositoryInvalid,
		ConfigInvalid,
		StoreInvariant,
		StoreUnavailable,
		DetectorFailed,
		ParseFailed,
		GitFailed,
		Timeout,
		InternalError,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %v", code)
		}
		seen[code] = true

		if string(code) == "" {
			t.Error("Error code should not be empty")
		}
	}
}
