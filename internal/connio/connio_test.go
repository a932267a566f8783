/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package connio

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/xxs-2/attach-core/internal/syscallsurface"
)

type pipeConn struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func (p *pipeConn) Read(buf []byte) (int, error)  { return p.in.Read(buf) }
func (p *pipeConn) Write(buf []byte) (int, error) { return p.out.Write(buf) }
func (p *pipeConn) Close() error                  { return nil }

func TestUnixBackendDialAndWrite(t *testing.T) {
	conn := &pipeConn{in: bytes.NewBufferString("reply"), out: &bytes.Buffer{}}
	mock := syscallsurface.NewMock(100, 1000)
	mock.Dialer = func(path string) (syscallsurface.Conn, error) {
		if path != "/tmp/.java_pid100" {
			t.Fatalf("dialed unexpected path %q", path)
		}
		return conn, nil
	}

	backend, err := DialUnix(mock, "/tmp/.java_pid100")
	if err != nil {
		t.Fatalf("DialUnix: %v", err)
	}

	if err := backend.Write([]byte("cmd")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if conn.out.String() != "cmd" {
		t.Errorf("wrote %q, want %q", conn.out.String(), "cmd")
	}

	buf := make([]byte, 16)
	n, err := backend.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "reply" {
		t.Errorf("Read() = %q, want %q", buf[:n], "reply")
	}

	if err := backend.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

type shortWriteConn struct{}

func (shortWriteConn) Read(buf []byte) (int, error)  { return 0, io.EOF }
func (shortWriteConn) Write(buf []byte) (int, error) { return len(buf) - 1, nil }
func (shortWriteConn) Close() error                  { return nil }

func TestUnixBackendWriteShortFails(t *testing.T) {
	mock := syscallsurface.NewMock(100, 1000)
	mock.Dialer = func(path string) (syscallsurface.Conn, error) {
		return shortWriteConn{}, nil
	}

	backend, err := DialUnix(mock, "/tmp/.java_pid100")
	if err != nil {
		t.Fatalf("DialUnix: %v", err)
	}

	if err := backend.Write([]byte("cmd")); err != ErrShortWrite {
		t.Errorf("Write() error = %v, want ErrShortWrite", err)
	}
}

func TestReadAllDrainsUntilEOF(t *testing.T) {
	backend := &memBackend{data: []byte("hello world"), chunk: 4}
	got, err := ReadAll(backend)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("ReadAll() = %q, want %q", got, "hello world")
	}
}

func TestTCPBackendRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	backend := NewTCP(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 16)
		n, err := server.Read(buf)
		if err != nil {
			t.Errorf("server read: %v", err)
			return
		}
		if string(buf[:n]) != "ping" {
			t.Errorf("server read = %q, want %q", buf[:n], "ping")
		}
		server.Write([]byte("pong"))
	}()

	if err := backend.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// net.Pipe is unbuffered: the server's "pong" write only completes
	// once this side reads it, so wait for the server after the read.
	buf := make([]byte, 16)
	n, err := backend.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "pong" {
		t.Errorf("Read() = %q, want %q", buf[:n], "pong")
	}
	<-done

	if err := backend.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// memBackend is a minimal Backend over an in-memory byte slice, used
// to exercise ReadAll's chunked-read loop without a real socket.
type memBackend struct {
	data  []byte
	chunk int
	pos   int
}

func (m *memBackend) Read(p []byte) (int, error) {
	if m.pos >= len(m.data) {
		return 0, io.EOF
	}
	n := m.chunk
	if n > len(p) {
		n = len(p)
	}
	if m.pos+n > len(m.data) {
		n = len(m.data) - m.pos
	}
	copy(p, m.data[m.pos:m.pos+n])
	m.pos += n
	return n, nil
}

func (m *memBackend) Write(p []byte) error { return nil }
func (m *memBackend) Close() error         { return nil }

var _ Backend = (*memBackend)(nil)
