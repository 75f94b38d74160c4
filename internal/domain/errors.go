package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorPermissionDenied  ErrorCode = "PERMISSION_DENIED"
	ErrorInvalidFileType   ErrorCode = "INVALID_FILE_TYPE"
	ErrorNoArtifact        ErrorCode = "NO_ARTIFACT"
	ErrorUploadFailed      ErrorCode = "UPLOAD_FAILED"
	ErrorNetwork           ErrorCode = "NETWORK_ERROR"
	ErrorStatusCheckFailed ErrorCode = "STATUS_CHECK_FAILED"
	ErrorJobFailed         ErrorCode = "JOB_FAILED"
)

// ErrMalformedResponse marks a successful response whose body could not be
// understood.
var ErrMalformedResponse = errors.New("malformed backend response")

// Error is the user-facing failure of a capture or submission action.
// Reason is the text shown to the user.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Code, true
}

// Message returns the text to render for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Reason != "" {
			return e.Reason
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
