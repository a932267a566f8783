/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

//go:build linux

package process

import (
	"fmt"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// EnterNamespace switches to the namespace of the target process
// Returns: 1 if switched, 0 if already in same namespace, error if failed
func EnterNamespace(pid int, nsType string) (int, error) {
	selfPath := filepath.Join("/proc/self/ns", nsType)
	targetPath := filepath.Join("/proc", strconv.Itoa(pid), "ns", nsType)

	var selfStat, targetStat unix.Stat_t
	if err := unix.Stat(selfPath, &selfStat); err != nil {
		return -1, fmt.Errorf("failed to stat self namespace: %w", err)
	}
	if err := unix.Stat(targetPath, &targetStat); err != nil {
		return -1, fmt.Errorf("failed to stat target namespace: %w", err)
	}

	// Already in the same namespace
	if selfStat.Ino == targetStat.Ino {
		return 0, nil
	}

	fd, err := unix.Open(targetPath, unix.O_RDONLY, 0)
	if err != nil {
		return -1, fmt.Errorf("failed to open namespace: %w", err)
	}
	defer unix.Close(fd)

	if err := unix.Setns(fd, 0); err != nil {
		return -1, fmt.Errorf("setns failed: %w", err)
	}

	return 1, nil
}
