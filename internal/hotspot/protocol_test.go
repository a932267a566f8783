/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package hotspot

import (
	"bytes"
	"strings"
	"testing"
)

type byteBackend struct {
	written *bytes.Buffer
	reply   *bytes.Buffer
}

func newByteBackend(reply string) *byteBackend {
	return &byteBackend{written: &bytes.Buffer{}, reply: bytes.NewBufferString(reply)}
}

func (b *byteBackend) Read(p []byte) (int, error)  { return b.reply.Read(p) }
func (b *byteBackend) Write(p []byte) error        { b.written.Write(p); return nil }
func (b *byteBackend) Close() error                { return nil }

func TestWriteCommandLoadFramesFixedModuleField(t *testing.T) {
	b := newByteBackend("0\n")
	if err := writeCommand(b, CmdLoadInternal, []string{"true", "/opt/agent.so=arg"}); err != nil {
		t.Fatalf("writeCommand: %v", err)
	}

	fields := strings.Split(b.written.String(), "\x00")
	want := []string{"1", "load", "instrument", "true", "/opt/agent.so=arg", ""}
	if len(fields) != len(want) {
		t.Fatalf("frame has %d fields, want %d: %q", len(fields), len(want), fields)
	}
	for i, f := range want {
		if fields[i] != f {
			t.Errorf("field %d = %q, want %q", i, fields[i], f)
		}
	}
}

func TestWriteCommandNonLoadFillsArgFields(t *testing.T) {
	b := newByteBackend("0\n")
	if err := writeCommand(b, "jcmd", []string{"VM.flags", "-all"}); err != nil {
		t.Fatalf("writeCommand: %v", err)
	}

	fields := strings.Split(b.written.String(), "\x00")
	want := []string{"1", "jcmd", "VM.flags", "-all", "", ""}
	if len(fields) != len(want) {
		t.Fatalf("frame has %d fields, want %d: %q", len(fields), len(want), fields)
	}
	for i, f := range want {
		if fields[i] != f {
			t.Errorf("field %d = %q, want %q", i, fields[i], f)
		}
	}
}

func TestNormalizeArgsMergesJcmdOverflow(t *testing.T) {
	got := normalizeArgs("jcmd", []string{"VM.flags", "-all", "extra"})
	want := []string{"VM.flags", "-all extra"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("normalizeArgs() = %v, want %v", got, want)
	}
}

func TestNormalizeArgsMergesGenericOverflow(t *testing.T) {
	got := normalizeArgs("threaddump", []string{"a", "b", "c", "d", "e"})
	want := []string{"a", "b", "c", "d e"}
	if len(got) != len(want) {
		t.Fatalf("normalizeArgs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadPayload(t *testing.T) {
	if got := loadPayload("/opt/agent.jar", ""); got != "/opt/agent.jar" {
		t.Errorf("loadPayload(no arg) = %q", got)
	}
	if got := loadPayload("/opt/agent.jar", "opts"); got != "/opt/agent.jar=opts" {
		t.Errorf("loadPayload(with arg) = %q", got)
	}
}

func TestReadResponseNonLoadPassesThrough(t *testing.T) {
	b := newByteBackend("0\nsome output\n")
	code, output, err := readResponse(b, "threaddump")
	if err != nil {
		t.Fatalf("readResponse: %v", err)
	}
	if code != 0 {
		t.Errorf("code = %d, want 0", code)
	}
	if output != "0\nsome output\n" {
		t.Errorf("output = %q", output)
	}
}

func TestReadResponseLoadRecoversJDK8ReturnCode(t *testing.T) {
	b := newByteBackend("0\nreturn code: 1\nAgent_OnAttach failed\n")
	code, _, err := readResponse(b, CmdLoadInternal)
	if err != nil {
		t.Fatalf("readResponse: %v", err)
	}
	if code != 1 {
		t.Errorf("code = %d, want 1", code)
	}
}

func TestReadResponseLoadRecoversBareDigit(t *testing.T) {
	b := newByteBackend("0\n0\n")
	code, _, err := readResponse(b, CmdLoadInternal)
	if err != nil {
		t.Fatalf("readResponse: %v", err)
	}
	if code != 0 {
		t.Errorf("code = %d, want 0", code)
	}
}

func TestReadResponseLoadJDK21PlusHasNoCode(t *testing.T) {
	b := newByteBackend("0\nUnable to open agent jar file\n")
	code, _, err := readResponse(b, CmdLoadInternal)
	if err != nil {
		t.Fatalf("readResponse: %v", err)
	}
	if code != -1 {
		t.Errorf("code = %d, want -1", code)
	}
}

func TestReadResponseErrorCode(t *testing.T) {
	b := newByteBackend("101\nprotocol mismatch\n")
	code, _, err := readResponse(b, "threaddump")
	if err != nil {
		t.Fatalf("readResponse: %v", err)
	}
	if code != 101 {
		t.Errorf("code = %d, want 101", code)
	}
}
