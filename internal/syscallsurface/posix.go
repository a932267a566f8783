/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

//go:build linux || freebsd || darwin

package syscallsurface

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Posix is the real Surface, backed by golang.org/x/sys/unix.
type Posix struct{}

// New returns the host's Surface implementation.
func New() Surface { return Posix{} }

func (Posix) Getpid() int { return unix.Getpid() }
func (Posix) Getuid() int { return unix.Getuid() }

func (Posix) Kill(pid int, sig int) error {
	err := unix.Kill(pid, unix.Signal(sig))
	if err == unix.ESRCH {
		return ErrNoSuchProcess
	}
	return err
}

func (Posix) Chmod(path string, mode uint32) error {
	return unix.Chmod(path, mode)
}

// Socket creates an AF_UNIX SOCK_STREAM socket.
func (Posix) Socket() (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

// Connect dials the UNIX-domain path over fd using the host's native
// sockaddr_un layout (golang.org/x/sys/unix.SockaddrUnix takes care of
// the platform-specific path length and trailing NUL rather than the
// hand-rolled 100-byte struct an implementer might otherwise copy from
// an old Linux header).
func (Posix) Connect(fd int, path string) error {
	addr := &unix.SockaddrUnix{Name: path}
	return unix.Connect(fd, addr)
}

func (Posix) Read(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

func (Posix) Write(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

func (Posix) Close(fd int) error {
	return unix.Close(fd)
}

// NotifyVM posts count times on the SysV semaphore keyed off dir's
// "_notifier" file, the same key OpenJ9 itself derives via ftok. This
// is a real semaphore a live OpenJ9 VM is waiting on; switching to a
// POSIX named semaphore (sem_open) would post to a name nothing on the
// target side ever opens.
func (Posix) NotifyVM(dir string, count int) error {
	return semop(dir, 1, count)
}

// CancelNotify reverses a prior NotifyVM, non-blocking so it never
// wedges the unwind path on a semaphore nobody is waiting to signal.
func (Posix) CancelNotify(dir string, count int) error {
	return semop(dir, -1, count)
}

func semop(dir string, direction, count int) error {
	if count == 0 {
		return nil
	}
	notifierPath := dir + "/_notifier"
	key, err := ftok(notifierPath, 0xa1)
	if err != nil {
		return err
	}

	semID, err := unix.Semget(key, 1, unix.IPC_CREAT|0666)
	if err != nil {
		return fmt.Errorf("semget: %w", err)
	}

	op := unix.Sembuf{
		SemNum: 0,
		SemOp:  int16(direction),
	}
	if direction < 0 {
		op.SemFlg = unix.IPC_NOWAIT
	}

	for i := 0; i < count; i++ {
		if err := unix.Semop(semID, []unix.Sembuf{op}); err != nil {
			return err
		}
	}
	return nil
}

// ftok mirrors the classic System V IPC key derivation: a directory
// combined with a small project id, hashed off the file's device and
// inode. OpenJ9 derives its own notifier key the same way, so this
// must match bit-for-bit.
func ftok(path string, projID int) (int, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		f, cerr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0666)
		if cerr != nil {
			return 0, cerr
		}
		f.Close()
		if err := unix.Stat(path, &st); err != nil {
			return 0, err
		}
	}
	key := (projID << 24) | (int(st.Dev&0xff) << 16) | int(st.Ino&0xffff)
	return key, nil
}
