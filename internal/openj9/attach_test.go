/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package openj9

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xxs-2/attach-core/internal/syscallsurface"
)

// dialReplyInfo reads <vmDir>/replyInfo and dials the advertised
// loopback port, the way a real OpenJ9 target would after waking on
// the notifier semaphore.
func dialReplyInfo(t *testing.T, vmDir string) (net.Conn, string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(vmDir, replyInfoFile))
	if err != nil {
		t.Fatalf("reading replyInfo: %v", err)
	}
	lines := splitLines(string(data))
	if len(lines) < 2 {
		t.Fatalf("replyInfo malformed: %q", data)
	}
	nonce, port := lines[0], lines[1]
	conn, err := net.Dial("tcp4", "127.0.0.1:"+port)
	if err != nil {
		t.Fatalf("dialing rendezvous port: %v", err)
	}
	return conn, nonce
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

func TestAttachHappyPath(t *testing.T) {
	advDir := t.TempDir()
	vmDir := writeAttachInfo(t, advDir, "vmA", 777, 1000)

	// The scan only sees advertisement directories owned by the
	// caller's uid, and t.TempDir() belongs to this process's uid.
	mock := syscallsurface.NewMock(42, os.Getuid())
	mock.SetAlive(777, true)

	done := make(chan struct{})
	var sess *Session
	var attachErr error
	go func() {
		sess, attachErr = Attach(context.Background(), mock, advDir, 777, time.Second)
		close(done)
	}()

	// Give Attach time to reach Phase F and publish replyInfo.
	var replyInfoPath = filepath.Join(vmDir, replyInfoFile)
	waitForFile(t, replyInfoPath)

	conn, nonce := dialReplyInfo(t, vmDir)
	defer conn.Close()
	conn.Write(append([]byte(" AWOKEN "+nonce+" OK"), 0))

	<-done
	if attachErr != nil {
		t.Fatalf("Attach: %v", attachErr)
	}
	defer sess.Close()

	if _, err := os.Stat(replyInfoPath); !os.IsNotExist(err) {
		t.Errorf("replyInfo should be removed after attach, stat err = %v", err)
	}

	// The peer's reply to the load command.
	conn.Write(append([]byte("ATTACH_ACK"), 0))
	reply, err := sess.Command(BuildLoadAgentPathCommand("/lib/x.so", ""))
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	_ = reply
}

func TestAttachNonceMismatch(t *testing.T) {
	advDir := t.TempDir()
	vmDir := writeAttachInfo(t, advDir, "vmA", 777, 1000)

	// The scan only sees advertisement directories owned by the
	// caller's uid, and t.TempDir() belongs to this process's uid.
	mock := syscallsurface.NewMock(42, os.Getuid())
	mock.SetAlive(777, true)

	done := make(chan struct{})
	var attachErr error
	go func() {
		_, attachErr = Attach(context.Background(), mock, advDir, 777, time.Second)
		close(done)
	}()

	replyInfoPath := filepath.Join(vmDir, replyInfoFile)
	waitForFile(t, replyInfoPath)

	conn, _ := dialReplyInfo(t, vmDir)
	defer conn.Close()
	conn.Write(append([]byte(" badnonce OK"), 0))

	<-done
	if attachErr != ErrNonceMismatch {
		t.Fatalf("Attach error = %v, want ErrNonceMismatch", attachErr)
	}

	if _, err := os.Stat(replyInfoPath); !os.IsNotExist(err) {
		t.Errorf("replyInfo should be removed even on nonce mismatch")
	}
	if _, err := os.Stat(attachLockPath(advDir)); err != nil {
		t.Fatalf("attach lock file should still exist (unlocked, not deleted): %v", err)
	}
	lock, err := acquireLock(attachLockPath(advDir))
	if err != nil {
		t.Fatalf("attach lock should be released after failed attach: %v", err)
	}
	lock.release()
}

func TestAttachTargetNotAdvertised(t *testing.T) {
	advDir := t.TempDir()
	mock := syscallsurface.NewMock(42, 1000)

	_, err := Attach(context.Background(), mock, advDir, 777, time.Second)
	if err != ErrTargetNotAdvertised {
		t.Fatalf("Attach error = %v, want ErrTargetNotAdvertised", err)
	}
}

func TestAttachLocksPeersAndNotifies(t *testing.T) {
	advDir := t.TempDir()
	vmDir := writeAttachInfo(t, advDir, "vmA", 777, 1000)
	writeAttachInfo(t, advDir, "vmB", 778, 1000)

	// The scan only sees advertisement directories owned by the
	// caller's uid, and t.TempDir() belongs to this process's uid.
	mock := syscallsurface.NewMock(42, os.Getuid())
	mock.SetAlive(777, true)
	mock.SetAlive(778, true)

	done := make(chan struct{})
	var attachErr error
	go func() {
		_, attachErr = Attach(context.Background(), mock, advDir, 777, time.Second)
		close(done)
	}()

	replyInfoPath := filepath.Join(vmDir, replyInfoFile)
	waitForFile(t, replyInfoPath)

	conn, nonce := dialReplyInfo(t, vmDir)
	defer conn.Close()
	conn.Write(append([]byte(" X "+nonce+" Y"), 0))

	<-done
	if attachErr != nil {
		t.Fatalf("Attach: %v", attachErr)
	}

	// replyInfo is published before peers are notified, so the notify
	// record is checked once Attach has returned.
	if len(mock.NotifyCalls) == 0 {
		t.Fatalf("expected NotifyVM to have been called during Attach")
	}
	if mock.NotifyCalls[0].Count < 2 {
		t.Errorf("notify count = %d, want >= 2 (vmA + vmB)", mock.NotifyCalls[0].Count)
	}

	if mock.OutstandingNotify(advDir) != 0 {
		t.Errorf("notify count should be fully unwound, got %d outstanding", mock.OutstandingNotify(advDir))
	}
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s to appear", path)
}
