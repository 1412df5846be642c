package hsm

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per failure kind of a random-bytes request.
var (
	ErrBufferTooLarge   = errors.New("hsm: requested length exceeds random buffer capacity")
	ErrTransactFailed   = errors.New("hsm: transaction failed")
	ErrTransactStatus   = errors.New("hsm: transaction returned non-OK status")
	ErrUnexpectedLength = errors.New("hsm: unexpected random data length")
	ErrSessionClosed    = errors.New("hsm: session closed")
)

// TransportError reports that a transaction could not be completed.
type TransportError struct {
	Cmd CommandKind
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("hsm: transact %s: %v", e.Cmd, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransactFailed.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransactFailed
}

// StatusError reports a non-OK status returned by the module.
type StatusError struct {
	Cmd     CommandKind
	Status  Status
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hsm: %s returned status %d: %s", e.Cmd, uint32(e.Status), e.Message)
}

// Is matches ErrTransactStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrTransactStatus
}

// LengthError reports a reply that carried a different number of bytes
// than were requested.
type LengthError struct {
	Want int
	Got  int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("hsm: invalid data len: want %d bytes, got %d", e.Want, e.Got)
}

// Is matches ErrUnexpectedLength.
func (e *LengthError) Is(target error) bool {
	return target == ErrUnexpectedLength
}
