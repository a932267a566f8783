/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package openj9

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// fileLock is one held advisory write lock, closed and unlocked
// together.
type fileLock struct {
	f *os.File
}

// acquireLock opens (creating if needed) and flock(LOCK_EX)s path.
func acquireLock(path string) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	return &fileLock{f: f}, nil
}

// tryAcquireLock is the non-blocking variant used for per-VM peer
// locks, which Phase E silently skips on contention rather than
// waiting.
func tryAcquireLock(path string) (*fileLock, bool) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, false
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, false
	}
	return &fileLock{f: f}, true
}

// release unlocks and closes the handle; errors are swallowed since
// the unwind path must not abort partway through.
func (l *fileLock) release() {
	if l == nil || l.f == nil {
		return
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	l.f.Close()
}

func attachLockPath(advDir string) string { return filepath.Join(advDir, nameAttachLock) }
func masterLockPath(advDir string) string { return filepath.Join(advDir, nameMaster) }

// notifySyncPath returns the attachNotificationSync path for a
// specific VM's advertisement directory, falling back to the shared
// top-level file when dir is empty (the "unspecified" case spec.md
// §4.3 Phase E names).
func notifySyncPath(advDir, vmDir string) string {
	if vmDir == "" {
		return filepath.Join(advDir, nameNotifySync)
	}
	return filepath.Join(vmDir, nameNotifySync)
}
