/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

// Package openj9 implements the OpenJ9 attach handshake: a shared
// advertisement directory scanned under nested advisory locks, a
// published reply nonce and TCP port, a semaphore notification to wake
// peers, and a TCP rendezvous verified by the nonce.
package openj9

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xxs-2/attach-core/internal/deleteonexit"
	"github.com/xxs-2/attach-core/internal/syscallsurface"
)

// Reserved names under the advertisement directory that are never a
// per-VM subdirectory.
const (
	nameAttachLock  = "_attachlock"
	nameMaster      = "_master"
	nameNotifier    = "_notifier"
	nameNotifySync  = "attachNotificationSync"
	trashPrefix     = ".trash_"
	attachInfoFile  = "attachInfo"
	replyInfoFile   = "replyInfo"
)

// VmAdvertisement is one parsed <vmId>/attachInfo entry.
type VmAdvertisement struct {
	VmID      string
	ProcessID int
	UserUID   int
	Dir       string
}

// ScanAdvertisements walks advDir and returns every live VM
// advertisement, deleting (or delete-on-exit scheduling) the
// directories of peers whose process no longer exists, per the
// dead-peer GC rule: only an owner-uid match or a root caller may
// collect someone else's stale directory.
func ScanAdvertisements(surface syscallsurface.Surface, advDir string, currentUID int) ([]VmAdvertisement, error) {
	entries, err := os.ReadDir(advDir)
	if err != nil {
		return nil, err
	}

	var out []VmAdvertisement
	for _, entry := range entries {
		if !entry.IsDir() || isReservedName(entry.Name()) {
			continue
		}
		dir := filepath.Join(advDir, entry.Name())

		info, err := os.Stat(dir)
		if err != nil {
			continue
		}
		ownerUID, ok := fileUID(info)
		if !ok || (ownerUID != currentUID && currentUID != 0) {
			continue
		}

		adv, ok := parseAttachInfo(dir, entry.Name())
		if !ok {
			continue
		}

		if adv.ProcessID == 0 {
			out = append(out, adv)
			continue
		}

		alive := surface.Kill(adv.ProcessID, 0) != syscallsurface.ErrNoSuchProcess
		if alive {
			out = append(out, adv)
			continue
		}

		if currentUID == 0 || adv.UserUID == currentUID {
			gcDirectory(dir)
		}
	}
	return out, nil
}

func isReservedName(name string) bool {
	switch name {
	case nameAttachLock, nameMaster, nameNotifier, nameNotifySync:
		return true
	}
	return strings.HasPrefix(name, trashPrefix)
}

// parseAttachInfo reads <dir>/attachInfo as key=value text, line by
// line. userUid falls back to the directory's owning uid when absent
// or unparseable, whatever the caller's uid.
func parseAttachInfo(dir, vmID string) (VmAdvertisement, bool) {
	f, err := os.Open(filepath.Join(dir, attachInfoFile))
	if err != nil {
		return VmAdvertisement{}, false
	}
	defer f.Close()

	adv := VmAdvertisement{VmID: vmID, Dir: dir}
	haveUID := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "processId":
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				adv.ProcessID = n
			}
		case "userUid":
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				adv.UserUID = n
				haveUID = true
			}
		}
	}

	if !haveUID {
		if info, err := os.Stat(dir); err == nil {
			if uid, ok := fileUID(info); ok {
				adv.UserUID = uid
			}
		}
	}
	return adv, true
}

// gcDirectory removes a dead peer's advertisement directory and its
// contents; failed removals are handed to the process-wide
// delete-on-exit registry rather than left to leak.
func gcDirectory(dir string) {
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if rerr := os.Remove(path); rerr != nil {
				deleteonexit.TryRemove(path)
			}
		}
	}
	if err := os.Remove(dir); err != nil {
		deleteonexit.TryRemove(dir)
	}
}

// IsAdvertised reports whether advDir contains an attachInfo file for
// pid, the cheap pre-handshake probe the facade uses to pick HotSpot
// vs OpenJ9 before committing to either attacher.
func IsAdvertised(advDir string, pid int) bool {
	path := filepath.Join(advDir, strconv.Itoa(pid), attachInfoFile)
	_, err := os.Stat(path)
	return err == nil
}

// CountNotifiableItems counts direct children of advDir that aren't
// one of the reserved coordination names, per Phase E step 2.
func CountNotifiableItems(advDir string) (int, error) {
	entries, err := os.ReadDir(advDir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !isReservedName(e.Name()) {
			n++
		}
	}
	return n, nil
}
