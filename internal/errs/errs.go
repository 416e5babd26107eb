// Package errs defines the closed set of error kinds raised by the
// transcription pipeline. Each stage reports its own kind; callers branch on
// the kind instead of matching message text.
package errs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindInvalidSource Kind = "invalid_source"
	KindDownload      Kind = "download"
	KindConversion    Kind = "conversion"
	KindCorruptAudio  Kind = "corrupt_audio"
	KindModel         Kind = "model"
	KindConfig        Kind = "config"
	KindUnknown       Kind = "unknown"
)

// Error is a tagged pipeline failure. Detail carries diagnostic output (for
// example ffmpeg stderr) that is logged but not shown to end users.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Detail  string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether a caller may reasonably retry the whole request.
// The pipeline itself never retries.
func (e *Error) Retryable() bool {
	return e.Kind == KindDownload || e.Kind == KindModel
}

// Wrap tags err with kind. An error that already carries a kind is returned
// unchanged so that the first classification wins.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return err
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// WithDetail is New plus a diagnostic payload and an optional cause.
func WithDetail(kind Kind, op, message, detail string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Detail:  detail,
		Cause:   cause,
	}
}

// IsKind checks whether the first tagged error in the chain matches kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of the first tagged error in the chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// UserMessage returns the short, human-readable text for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	// Cancellation reaches every stage; report it as such whatever the kind.
	switch {
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out."
	}
	var target *Error
	if !errors.As(err, &target) {
		return err.Error()
	}
	switch target.Kind {
	case KindInvalidSource:
		if strings.HasPrefix(target.Op, "parse") {
			return "Please provide a valid YouTube URL."
		}
		return "Invalid input: " + target.Message
	case KindDownload:
		return "Could not download the video audio: " + target.Message
	case KindConversion:
		return "Could not convert the downloaded audio: " + target.Message
	case KindCorruptAudio:
		return "The converted audio is invalid or corrupted: " + target.Message
	case KindModel:
		return "Speech recognition failed: " + target.Message
	case KindConfig:
		return "Invalid configuration: " + target.Message
	}
	return target.Message
}
