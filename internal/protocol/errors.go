package protocol

import (
	"errors"
	"fmt"
)

// ErrMalformed marks a payload that could not be decoded into a usable message.
var ErrMalformed = errors.New("malformed message")

// FaultError is returned when the peer answered with a Fault or with an
// answer that does not belong to the request it was given.
type FaultError struct {
	ID      string
	Message string
}

func (e *FaultError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("analysis fault: %s", e.Message)
	}
	return fmt.Sprintf("analysis fault id=%s: %s", e.ID, e.Message)
}

// IsProtocolFault reports whether err is a Fault or a malformed payload.
func IsProtocolFault(err error) bool {
	if err == nil {
		return false
	}
	var fe *FaultError
	return errors.As(err, &fe) || errors.Is(err, ErrMalformed)
}
