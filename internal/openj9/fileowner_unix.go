/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

//go:build linux || freebsd || darwin

package openj9

import (
	"os"
	"syscall"
)

// fileUID extracts the owning uid from a POSIX FileInfo.
func fileUID(info os.FileInfo) (int, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return int(st.Uid), true
}
