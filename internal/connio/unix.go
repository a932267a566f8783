/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package connio

import "github.com/xxs-2/attach-core/internal/syscallsurface"

// UnixBackend is the HotSpot transport: a connected AF_UNIX
// SOCK_STREAM file descriptor driven through the syscall surface
// rather than net.Conn, matching the raw-syscall socket/connect/
// read/write/close shape the attach core's syscall surface exposes.
type UnixBackend struct {
	surface syscallsurface.Surface
	fd      int
}

// DialUnix connects a new UNIX-domain stream socket to path.
func DialUnix(surface syscallsurface.Surface, path string) (*UnixBackend, error) {
	fd, err := surface.Socket()
	if err != nil {
		return nil, err
	}
	if err := surface.Connect(fd, path); err != nil {
		surface.Close(fd)
		return nil, err
	}
	return &UnixBackend{surface: surface, fd: fd}, nil
}

func (u *UnixBackend) Read(p []byte) (int, error) {
	return u.surface.Read(u.fd, p)
}

func (u *UnixBackend) Write(p []byte) error {
	n, err := u.surface.Write(u.fd, p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return ErrShortWrite
	}
	return nil
}

func (u *UnixBackend) Close() error {
	return u.surface.Close(u.fd)
}

var _ Backend = (*UnixBackend)(nil)
