/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

// Package deleteonexit implements the process-wide delete-on-exit
// registry described in the attach core's design notes: files the
// attacher owns but could not remove immediately (typically because
// the target VM still has them open) are remembered here and retried
// by Flush, rather than leaked silently.
package deleteonexit

import (
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	pending = map[string]struct{}{}
)

// Register schedules path for deletion. Safe to call from multiple
// goroutines and multiple attach attempts; duplicates collapse.
func Register(path string) {
	mu.Lock()
	defer mu.Unlock()
	pending[path] = struct{}{}
}

// Forget removes path from the registry without deleting it, used
// after a successful direct os.Remove so the registry doesn't retry
// something that's already gone.
func Forget(path string) {
	mu.Lock()
	defer mu.Unlock()
	delete(pending, path)
}

// TryRemove attempts to delete path immediately; on failure it falls
// back to registering it for a later Flush. This is the single entry
// point attach code should call on every cleanup path.
func TryRemove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		Register(path)
		return
	}
	Forget(path)
}

// Flush retries deletion of every still-pending path. Intended to be
// called from a host process's own shutdown sequence; this library
// does not install a signal handler or own main(), so it cannot drain
// the registry on its own.
func Flush() {
	mu.Lock()
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	mu.Unlock()

	for _, p := range paths {
		if err := os.Remove(p); err == nil || os.IsNotExist(err) {
			Forget(p)
		}
	}
}

// Pending reports the paths still awaiting deletion, for diagnostics.
func Pending() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, 0, len(pending))
	for p := range pending {
		out = append(out, p)
	}
	return out
}
