/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package attachcore

import (
	stderrors "errors"
	"testing"
)

func TestAttachErrorIsMatchesByKindOnly(t *testing.T) {
	a := newError("attach", 123, KindTargetUnresponsive, stderrors.New("boom"))
	b := newError("command", 456, KindTargetUnresponsive, nil)

	if !stderrors.Is(a, ErrTargetUnresponsive) {
		t.Errorf("errors.Is(a, ErrTargetUnresponsive) = false, want true")
	}
	if !stderrors.Is(a, b) {
		t.Errorf("two AttachErrors of the same Kind should match via Is, even with different Op/PID/Err")
	}
	if stderrors.Is(a, ErrNonceMismatch) {
		t.Errorf("errors.Is(a, ErrNonceMismatch) = true, want false (different Kind)")
	}
}

func TestAttachErrorUnwrapExposesCause(t *testing.T) {
	cause := stderrors.New("underlying io failure")
	err := newError("attach", 1, KindIOError, cause)

	if got := Cause(err); got.Error() != cause.Error() {
		t.Errorf("Cause(err) = %q, want %q", got, cause)
	}
}

func TestAttachErrorMessageVariant(t *testing.T) {
	err := newErrorf("command", 42, KindAgentRejected, "%s", "native agent not found")
	want := "attachcore: command (pid=42): agent rejected: native agent not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAttachErrorBareKindString(t *testing.T) {
	err := newError("attach", 7, KindProtocolMismatch, nil)
	want := "attachcore: attach (pid=7): protocol mismatch"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKindStringCoversEveryVariant(t *testing.T) {
	kinds := []Kind{
		KindUnsupportedPlatform, KindSentinelCreate, KindSignalFailed,
		KindTargetUnresponsive, KindConnectFailed, KindProtocolMismatch,
		KindAgentRejected, KindUnexpectedResponse, KindTargetNotAdvertised,
		KindNonceMismatch, KindIOShort, KindIOError, KindAlreadyDetached,
	}
	for _, k := range kinds {
		if k.String() == "unknown error" {
			t.Errorf("Kind %d has no String() case", k)
		}
	}
}
