/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package attachcore

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies the way an attach operation failed, following the
// taxonomy the attach core is built around: every kind maps to exactly
// one step of the HotSpot or OpenJ9 handshake, or to a generic I/O
// failure at the syscall surface.
type Kind int

const (
	// KindUnsupportedPlatform means the host isn't POSIX.
	KindUnsupportedPlatform Kind = iota
	// KindSentinelCreate means neither sentinel location was writable.
	KindSentinelCreate
	// KindSignalFailed means SIGQUIT delivery failed or the signaller
	// exited non-zero.
	KindSignalFailed
	// KindTargetUnresponsive means the retry budget was exhausted
	// waiting for a socket or file to appear.
	KindTargetUnresponsive
	// KindConnectFailed means the endpoint could not be opened.
	KindConnectFailed
	// KindProtocolMismatch is HotSpot reply code 101.
	KindProtocolMismatch
	// KindAgentRejected means the target accepted the connection but
	// refused the agent.
	KindAgentRejected
	// KindUnexpectedResponse means the reply matched no known prefix.
	KindUnexpectedResponse
	// KindTargetNotAdvertised means no OpenJ9 attachInfo matched pid.
	KindTargetNotAdvertised
	// KindNonceMismatch means an OpenJ9 peer connected without the
	// expected nonce.
	KindNonceMismatch
	// KindIOShort means a write did not complete in full.
	KindIOShort
	// KindIOError is a generic syscall-surface failure.
	KindIOError
	// KindAlreadyDetached means an operation was attempted on a
	// session that has already been detached.
	KindAlreadyDetached
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedPlatform:
		return "unsupported platform"
	case KindSentinelCreate:
		return "sentinel create failed"
	case KindSignalFailed:
		return "signal failed"
	case KindTargetUnresponsive:
		return "target unresponsive"
	case KindConnectFailed:
		return "connect failed"
	case KindProtocolMismatch:
		return "protocol mismatch"
	case KindAgentRejected:
		return "agent rejected"
	case KindUnexpectedResponse:
		return "unexpected response"
	case KindTargetNotAdvertised:
		return "target not advertised"
	case KindNonceMismatch:
		return "nonce mismatch"
	case KindIOShort:
		return "short i/o"
	case KindIOError:
		return "i/o error"
	case KindAlreadyDetached:
		return "already detached"
	default:
		return "unknown error"
	}
}

// AttachError wraps an underlying cause with the operation, target
// pid, and Kind classification, so callers can both print a useful
// message and branch on errors.Is against the sentinels below.
type AttachError struct {
	Op      string
	PID     int
	Kind    Kind
	Message string
	Err     error
}

func (e *AttachError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("attachcore: %s (pid=%d): %s: %s", e.Op, e.PID, e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("attachcore: %s (pid=%d): %s: %v", e.Op, e.PID, e.Kind, e.Err)
	}
	return fmt.Sprintf("attachcore: %s (pid=%d): %s", e.Op, e.PID, e.Kind)
}

func (e *AttachError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTargetUnresponsive) match any AttachError
// of the same Kind, regardless of Op/PID/message.
func (e *AttachError) Is(target error) bool {
	other, ok := target.(*AttachError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// newError builds an AttachError, wrapping cause with pkg/errors so
// the original stack frame survives through fmt.Errorf-style %w
// unwrapping and errors.Cause.
func newError(op string, pid int, kind Kind, cause error) *AttachError {
	var wrapped error
	if cause != nil {
		wrapped = errors.Wrap(cause, kind.String())
	}
	return &AttachError{Op: op, PID: pid, Kind: kind, Err: wrapped}
}

func newErrorf(op string, pid int, kind Kind, format string, args ...interface{}) *AttachError {
	return &AttachError{Op: op, PID: pid, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Sentinel values for errors.Is, one per Kind, matching spec's error
// taxonomy exactly.
var (
	ErrUnsupportedPlatform = &AttachError{Kind: KindUnsupportedPlatform}
	ErrSentinelCreate      = &AttachError{Kind: KindSentinelCreate}
	ErrSignalFailed        = &AttachError{Kind: KindSignalFailed}
	ErrTargetUnresponsive  = &AttachError{Kind: KindTargetUnresponsive}
	ErrConnectFailed       = &AttachError{Kind: KindConnectFailed}
	ErrProtocolMismatch    = &AttachError{Kind: KindProtocolMismatch}
	ErrAgentRejected       = &AttachError{Kind: KindAgentRejected}
	ErrUnexpectedResponse  = &AttachError{Kind: KindUnexpectedResponse}
	ErrTargetNotAdvertised = &AttachError{Kind: KindTargetNotAdvertised}
	ErrNonceMismatch       = &AttachError{Kind: KindNonceMismatch}
	ErrIOShort             = &AttachError{Kind: KindIOShort}
	ErrIOError             = &AttachError{Kind: KindIOError}
	ErrAlreadyDetached     = &AttachError{Kind: KindAlreadyDetached}
)

// Cause unwraps to the deepest non-AttachError cause, delegating to
// pkg/errors.Cause once past the AttachError wrapper.
func Cause(err error) error {
	var ae *AttachError
	if stderrors.As(err, &ae) && ae.Err != nil {
		return errors.Cause(ae.Err)
	}
	return err
}
