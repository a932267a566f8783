/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package openj9

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/xxs-2/attach-core/internal/connio"
	"github.com/xxs-2/attach-core/internal/deleteonexit"
	"github.com/xxs-2/attach-core/internal/syscallsurface"
)

// AdvertisementDir resolves the OpenJ9 advertisement directory: the
// override env var if set, else the library default.
func AdvertisementDir(override string) string {
	if override != "" {
		return override
	}
	return "/tmp/.com_ibm_tools_attach"
}

// Session is a rendezvoused OpenJ9 TCP connection. By the time Attach
// returns one, every Phase A-E coordination resource has already been
// released (Phase G runs inline in Attach), so Session only ever owns
// the accepted socket.
type Session struct {
	backend connio.Backend
}

// Attach runs the full Phase A-G handshake described in the package
// comment and returns a Session wrapping the rendezvoused connection.
func Attach(ctx context.Context, surface syscallsurface.Surface, advDir string, pid int, timeout time.Duration) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = syscallsurface.AcceptTimeout
	}

	attachLock, err := acquireLock(attachLockPath(advDir))
	if err != nil {
		return nil, fmt.Errorf("openj9: acquiring attach lock: %w", err)
	}
	defer attachLock.release()

	vmList, target, err := scanAndLocate(surface, advDir, pid)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("openj9: creating rendezvous socket: %w", err)
	}
	defer listener.Close()
	tcpPort := listener.Addr().(*net.TCPAddr).Port

	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}
	replyInfoPath, err := writeReplyInfo(target.Dir, nonce, tcpPort)
	if err != nil {
		return nil, fmt.Errorf("openj9: writing replyInfo: %w", err)
	}
	defer deleteonexit.TryRemove(replyInfoPath)

	peerLocks := lockPeers(advDir, vmList, surface.Getpid())
	defer releasePeerLocks(peerLocks)

	notifiable, _ := CountNotifiableItems(advDir)
	if notifiable > 0 {
		surface.NotifyVM(advDir, notifiable)
	}
	defer func() {
		if notifiable > 0 {
			surface.CancelNotify(advDir, notifiable)
		}
	}()

	conn, err := rendezvous(ctx, listener, nonce, timeout)
	if err != nil {
		return nil, err
	}

	return &Session{backend: connio.NewTCP(conn)}, nil
}

func scanAndLocate(surface syscallsurface.Surface, advDir string, pid int) ([]VmAdvertisement, VmAdvertisement, error) {
	masterLock, err := acquireLock(masterLockPath(advDir))
	if err != nil {
		return nil, VmAdvertisement{}, fmt.Errorf("openj9: acquiring master lock: %w", err)
	}
	vmList, err := ScanAdvertisements(surface, advDir, surface.Getuid())
	masterLock.release()
	if err != nil {
		return nil, VmAdvertisement{}, fmt.Errorf("openj9: scanning advertisement directory: %w", err)
	}

	target := strconv.Itoa(pid)
	for _, v := range vmList {
		if strings.EqualFold(strconv.Itoa(v.ProcessID), target) {
			return vmList, v, nil
		}
	}
	return vmList, VmAdvertisement{}, ErrTargetNotAdvertised
}

// lockPeers acquires every other VM's attachNotificationSync lock,
// creating the file if absent and silently skipping any that cannot be
// opened or is already locked.
func lockPeers(advDir string, vmList []VmAdvertisement, ownPid int) []*fileLock {
	var locks []*fileLock
	for _, v := range vmList {
		if v.ProcessID == ownPid {
			continue
		}
		if lock, ok := tryAcquireLock(notifySyncPath(advDir, v.Dir)); ok {
			locks = append(locks, lock)
		}
	}
	return locks
}

func releasePeerLocks(locks []*fileLock) {
	for _, l := range locks {
		l.release()
	}
}

// rendezvous accepts the one inbound connection, reads its opening
// NUL-terminated message, and verifies it carries the nonce as a
// space-delimited substring.
func rendezvous(ctx context.Context, listener net.Listener, nonce string, timeout time.Duration) (net.Conn, error) {
	if tl, ok := listener.(*net.TCPListener); ok {
		tl.SetDeadline(time.Now().Add(timeout))
	}

	done := make(chan struct{})
	defer close(done)
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				listener.Close()
			case <-done:
			}
		}()
	}

	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("openj9: waiting for peer connection: %w", err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetDeadline(time.Time{})
	}

	msg, err := readNulMessage(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if !strings.Contains(msg, " "+nonce+" ") {
		conn.Close()
		return nil, ErrNonceMismatch
	}
	return conn, nil
}

func readNulMessage(conn net.Conn) (string, error) {
	buf := make([]byte, 0, 256)
	chunk := make([]byte, 256)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if buf[len(buf)-1] == 0 {
				return string(buf[:len(buf)-1]), nil
			}
		}
		if err != nil {
			return "", fmt.Errorf("openj9: reading rendezvous message: %w", err)
		}
		if n == 0 {
			return "", fmt.Errorf("openj9: unexpected EOF during rendezvous")
		}
	}
}

// Command sends an already-framed ATTACH_* wire command (built by
// BuildLoadAgentCommand, BuildLoadAgentPathCommand, or TranslateCommand)
// and returns the raw reply body, or ErrAgentRejected/ErrUnexpectedResponse.
func (s *Session) Command(cmd string) (string, error) {
	if err := writeCommand(s.backend, cmd); err != nil {
		return "", err
	}
	ok, unexpected, body, err := readResponse(s.backend)
	if err != nil {
		return "", err
	}
	if unexpected {
		return body, ErrUnexpectedResponse
	}
	if !ok {
		return body, ErrAgentRejected
	}
	return body, nil
}

// Detach sends ATTACH_DETACH, discards the reply, and closes the
// connection unconditionally, per spec.md §4.3's command table.
func (s *Session) Detach() error {
	writeCommand(s.backend, cmdDetach)
	readResponse(s.backend)
	return s.Close()
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
