/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

// Package hotspot implements the HotSpot/OpenJDK attach handshake: a
// trigger file, SIGQUIT, a poll for the resulting UNIX-domain socket,
// and a six-field command frame over that socket.
package hotspot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xxs-2/attach-core/internal/connio"
	"github.com/xxs-2/attach-core/internal/retry"
	"github.com/xxs-2/attach-core/internal/syscallsurface"
)

// ErrProcessGone, ErrTimeout, ErrSentinelCreate, and ErrSignalFailed
// are the sentinel failures trigger can return; the root package maps
// these onto its own Kind taxonomy via errors.Is.
var (
	ErrProcessGone    = errors.New("hotspot: target process exited during attach")
	ErrTimeout        = errors.New("hotspot: timed out waiting for attach listener socket")
	ErrSentinelCreate = errors.New("hotspot: could not create sentinel file in either location")
	ErrSignalFailed   = errors.New("hotspot: failed to deliver SIGQUIT to target")
)

// SocketPath returns the .java_pid<pid> path the attach listener binds,
// rooted at tmpPath.
func SocketPath(pid int, tmpPath string) string {
	return filepath.Join(tmpPath, fmt.Sprintf(".java_pid%d", pid))
}

func socketExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSocket != 0
}

// Session holds an open connection to a HotSpot attach listener,
// dialed once by Attach and reused across every Command call until
// Close.
type Session struct {
	surface syscallsurface.Surface
	backend connio.Backend
}

// Attach performs the full handshake described by the package comment
// and returns a Session ready for Command calls. If a listener socket
// already exists it is dialed directly, skipping the trigger-file and
// SIGQUIT steps (the target is already attach-capable).
func Attach(ctx context.Context, surface syscallsurface.Surface, pid int, tmpPath string, policy retry.Policy) (*Session, error) {
	socketPath := SocketPath(pid, tmpPath)

	if !socketExists(socketPath) {
		if err := trigger(ctx, surface, pid, tmpPath, socketPath, policy.OrDefault()); err != nil {
			return nil, err
		}
	}

	backend, err := connio.DialUnix(surface, socketPath)
	if err != nil {
		return nil, err
	}
	return &Session{surface: surface, backend: backend}, nil
}

// trigger creates the sentinel file, signals the target with SIGQUIT,
// and polls for the listener socket to appear, cleaning up the
// sentinel unconditionally on return.
func trigger(ctx context.Context, surface syscallsurface.Surface, pid int, tmpPath, socketPath string, policy retry.Policy) error {
	sentinelPath, err := createSentinel(pid, tmpPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSentinelCreate, err)
	}
	defer removeSentinel(sentinelPath)

	const sigquit = 3
	if err := surface.Kill(pid, sigquit); err != nil {
		return fmt.Errorf("%w: %w", ErrSignalFailed, err)
	}

	for attempt := 0; attempt < policy.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if socketExists(socketPath) {
			return nil
		}
		if err := surface.Kill(pid, 0); err == syscallsurface.ErrNoSuchProcess {
			return ErrProcessGone
		}
		policy.Sleep()
	}
	return ErrTimeout
}

// Command sends cmd with args over the session's connection and
// returns the parsed response. A HotSpot target answers one command per
// connection and closes its end afterward; Command reads the reply up
// to that end of stream but leaves the session's backend open, and
// Close is what releases it.
func (s *Session) Command(cmd string, args []string) (code int, output string, err error) {
	if err := writeCommand(s.backend, cmd, args); err != nil {
		return 0, "", err
	}
	return readResponse(s.backend, cmd)
}

// LoadAgent sends the 'load' command, building the fixed
// "instrument"-module frame spec.md §4.2 describes: a native/bytecode
// flag and a path(=arg) payload.
func (s *Session) LoadAgent(path, arg string, native bool) (code int, output string, err error) {
	nativeFlag := "false"
	if native {
		nativeFlag = "true"
	}
	return s.Command(CmdLoadInternal, []string{nativeFlag, loadPayload(path, arg)})
}

// Close releases the session's connection. Safe to call more than
// once.
func (s *Session) Close() error {
	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	return err
}
