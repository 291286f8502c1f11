package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Static errors for stage failures. Their text is the user-facing prefix of
// the failure message.
var (
	// ErrSuggestionFailed is returned when the suggestion tool exits non-zero.
	ErrSuggestionFailed = errors.New("failed to get crop suggestions")
	// ErrSuggestionUnparsable is returned when the suggestion output is malformed.
	ErrSuggestionUnparsable = errors.New("could not read crop suggestions")
	// ErrCropFailed is returned when cropping the driving video fails.
	ErrCropFailed = errors.New("failed to crop driving video")
	// ErrInferenceFailed is returned when the motion-transfer tool exits non-zero.
	ErrInferenceFailed = errors.New("motion transfer failed")
)

// StageError is a failure of one external stage, with the diagnostic text
// the tool printed when available.
type StageError struct {
	// Stage is where the failure happened.
	Stage Stage
	// Kind is one of the stage sentinels above.
	Kind error
	// ExitCode is the tool's exit status, -1 if it could not be run.
	ExitCode int
	// Diagnostic is the captured stderr, verbatim.
	Diagnostic string
	// Err is the underlying cause, if any.
	Err error
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit status %d)", e.ExitCode)
	}
	if d := strings.TrimRight(e.Diagnostic, "\r\n"); strings.TrimSpace(d) != "" {
		b.WriteString("\n")
		b.WriteString(d)
	}
	return b.String()
}

// Unwrap exposes both the stage sentinel and the underlying cause to errors.Is / errors.As.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
