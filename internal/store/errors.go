package store

import (
	"errors"
	"fmt"
)

const (
	CodeEndpointUnreachable = "E_ENDPOINT_UNREACHABLE"
	CodeAuthInvalid         = "E_AUTH_INVALID"
	CodeBucketNotFound      = "E_BUCKET_NOT_FOUND"
	CodeObjectNotFound      = "E_OBJECT_NOT_FOUND"
	CodePermissionDenied    = "E_PERMISSION_DENIED"
	CodeTimeout             = "E_TIMEOUT"
	CodePreconditionFailed  = "E_PRECONDITION_FAILED"
	CodeIO                  = "E_IO"
)

// Error wraps store failures with retryability hints.
type Error struct {
	Op        string
	Key       string
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Code
	if e.Op != "" {
		msg = e.Op + " " + msg
	}
	if e.Key != "" {
		msg += " key=" + e.Key
	}
	if e.Err != nil {
		return fmt.Sprintf("store %s: %v", msg, e.Err)
	}
	return "store " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func wrapError(op, key, code string, retryable bool, err error) *Error {
	return &Error{Op: op, Key: key, Code: code, Retryable: retryable, Err: err}
}

// IsStoreError reports whether err came from an ItemStore.
func IsStoreError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
