package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrBusy             = errors.New("operation already in progress")
	ErrRepairNotOffered = errors.New("repair is not available")
)

// FailureKind classifies why a generation or edit produced no image.
type FailureKind string

const (
	FailureUnknown          FailureKind = "unknown"
	FailureSafetyBlocked    FailureKind = "safety_blocked"
	FailureNoImageProduced  FailureKind = "no_image_produced"
	FailureUnexpectedFinish FailureKind = "unexpected_finish"
)

// Failure is the error returned for every unsuccessful model call. Message is
// safe to show to the user; Reason holds the raw block or finish reason.
type Failure struct {
	Kind    FailureKind
	Reason  string
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf returns the FailureKind carried by err, or FailureUnknown.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureUnknown
}

// IsSafetyBlocked reports whether err is a safety-filter rejection.
func IsSafetyBlocked(err error) bool {
	return err != nil && KindOf(err) == FailureSafetyBlocked
}

// UserMessage extracts the display message of a Failure, falling back to err.Error().
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) && f.Message != "" {
		return f.Message
	}
	return err.Error()
}
