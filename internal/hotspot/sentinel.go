/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package hotspot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xxs-2/attach-core/internal/deleteonexit"
)

// sentinelPaths returns the two candidate sentinel locations in the
// order spec requires: the target's own working directory first,
// falling back to tmpPath.
func sentinelPaths(pid int, tmpPath string) (primary, fallback string) {
	primary = filepath.Join("/proc", fmt.Sprint(pid), "cwd", fmt.Sprintf(".attach_pid%d", pid))
	fallback = filepath.Join(tmpPath, fmt.Sprintf(".attach_pid%d", pid))
	return
}

// createSentinel creates the zero-length trigger file the target VM
// watches for, preferring its own cwd and falling back to tmpPath when
// the cwd location isn't writable or some mounted filesystem changes
// its ownership away from us (a file the JVM wouldn't trust anyway).
func createSentinel(pid int, tmpPath string) (path string, err error) {
	primary, fallback := sentinelPaths(pid, tmpPath)

	if f, cerr := os.OpenFile(primary, os.O_CREATE|os.O_WRONLY, 0660); cerr == nil {
		f.Close()
		if ownedByUs(primary) {
			return primary, nil
		}
		os.Remove(primary)
	}

	f, cerr := os.OpenFile(fallback, os.O_CREATE|os.O_WRONLY, 0660)
	if cerr != nil {
		return "", cerr
	}
	f.Close()
	return fallback, nil
}

func ownedByUs(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	uid, ok := fileUID(info)
	return ok && uid == os.Geteuid()
}

// removeSentinel deletes path immediately, falling back to the
// process-wide delete-on-exit registry if the target VM still has it
// open or some other transient error prevents deletion.
func removeSentinel(path string) {
	deleteonexit.TryRemove(path)
}
