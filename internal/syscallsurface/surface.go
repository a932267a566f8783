/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

// Package syscallsurface abstracts the small set of POSIX primitives
// the attach handshakes need: process identity, signal delivery,
// permission bits, raw UNIX-domain stream sockets, and the OpenJ9
// notifier semaphore. Keeping this behind an interface is what makes
// the handshake logic in internal/hotspot and internal/openj9
// mockable without a real target process.
package syscallsurface

import "time"

// Surface is the capability set both attachers depend on. The POSIX
// implementation binds directly to golang.org/x/sys/unix; tests use a
// fake.
type Surface interface {
	Getpid() int
	Getuid() int

	// Kill sends sig to pid. ErrNoSuchProcess is returned when the
	// kernel reports ESRCH, matching spec's "no such process" check
	// used both to probe liveness (sig=0) and to deliver SIGQUIT.
	Kill(pid int, sig int) error

	Chmod(path string, mode uint32) error

	// UNIX-domain stream socket primitives, used by the HotSpot
	// attacher instead of net.Dial so the wire-level framing matches
	// the spec's sockaddr_un note exactly.
	Socket() (fd int, err error)
	Connect(fd int, path string) error
	Read(fd int, buf []byte) (int, error)
	Write(fd int, buf []byte) (int, error)
	Close(fd int) error

	// NotifyVM posts count times on the OpenJ9 notifier semaphore
	// keyed off dir's _notifier file; CancelNotify is its inverse.
	NotifyVM(dir string, count int) error
	CancelNotify(dir string, count int) error
}

// ErrNoSuchProcess is returned by Kill when the target pid is gone.
var ErrNoSuchProcess = errNoSuchProcess{}

type errNoSuchProcess struct{}

func (errNoSuchProcess) Error() string { return "no such process" }

// AcceptTimeout is the default bound used by OpenJ9's rendezvous
// accept; surfaced here so callers configuring a Surface-level
// listener (TCP, not part of this interface) share one constant.
const AcceptTimeout = 5 * time.Second
