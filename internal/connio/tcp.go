/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package connio

import "net"

// TCPBackend is the OpenJ9 transport: the loopback TCP connection the
// target VM makes back to the attacher's ephemeral listener.
type TCPBackend struct {
	conn net.Conn
}

// NewTCP wraps an already-accepted net.Conn.
func NewTCP(conn net.Conn) *TCPBackend {
	return &TCPBackend{conn: conn}
}

func (t *TCPBackend) Read(p []byte) (int, error) {
	return t.conn.Read(p)
}

func (t *TCPBackend) Write(p []byte) error {
	n, err := t.conn.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return ErrShortWrite
	}
	return nil
}

func (t *TCPBackend) Close() error {
	return t.conn.Close()
}

var _ Backend = (*TCPBackend)(nil)
