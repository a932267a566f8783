/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package hotspot

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/xxs-2/attach-core/internal/connio"
)

var errUnexpectedEOF = errors.New("hotspot: unexpected EOF reading response")

// protocolVersion is the literal first field of every HotSpot command
// frame.
const protocolVersion = "1"

// moduleInstrument is the module field used for the 'load' command;
// other commands carry their own first argument (or nothing) in that
// position.
const moduleInstrument = "instrument"

// writeCommand sends five NUL-terminated fields: version, command,
// module, native-flag, and payload; the NUL after the payload ends the
// argv, and no further empty field is written. For 'load' the module
// field is always the literal "instrument"; every other command's args
// are merged the way the reference jcmd/threaddump/etc. commands
// already merge overflow arguments.
func writeCommand(b connio.Backend, cmd string, args []string) error {
	buf := &bytes.Buffer{}
	buf.WriteString(protocolVersion)
	buf.WriteByte(0)
	buf.WriteString(cmd)
	buf.WriteByte(0)

	fields := fieldsFor(cmd, args)
	for i := 0; i < 3; i++ {
		if i < len(fields) {
			buf.WriteString(fields[i])
		}
		buf.WriteByte(0)
	}

	return b.Write(buf.Bytes())
}

// fieldsFor builds the three post-command fields. load's module field
// is the fixed literal "instrument" per spec.md §4.2, with the
// caller's args supplying just the native-flag and payload; every
// other command's args map directly onto the three fields, via
// normalizeArgs for overflow.
func fieldsFor(cmd string, args []string) []string {
	if cmd == CmdLoadInternal {
		fields := []string{moduleInstrument}
		if len(args) > 0 {
			fields = append(fields, args[0])
		}
		if len(args) > 1 {
			fields = append(fields, args[1])
		}
		return fields
	}
	return normalizeArgs(cmd, args)
}

// normalizeArgs bounds the argument count to what the HotSpot frame
// can carry (3 fields after the command), merging overflow into the
// last field the same way the reference jcmd special-case does.
func normalizeArgs(cmd string, args []string) []string {
	if cmd == "jcmd" && len(args) > 1 {
		merged := strings.Join(args[1:], " ")
		return []string{args[0], merged}
	}
	if len(args) > 3 {
		merged := strings.Join(args[3:], " ")
		return append(append([]string{}, args[:3]...), merged)
	}
	return args
}

// loadPayload builds field 5 for the load command: path, or
// path + "=" + arg when arg is non-empty, per P5.
func loadPayload(path, arg string) string {
	if arg == "" {
		return path
	}
	return path + "=" + arg
}

// readResponse parses the reply: a leading decimal code, a newline,
// and the rest of the stream as free-form output. The 'load'
// command additionally recovers the Agent_OnAttach return code from
// the body, since HotSpot always reports 0 on that first line and
// buries the real result on the second (pre-JDK21) or not at all
// (JDK21+, where the rest is just an error message).
func readResponse(b connio.Backend, cmd string) (code int, output string, err error) {
	first := make([]byte, 8192)
	n, rerr := b.Read(first)
	if rerr != nil && rerr != io.EOF {
		return 0, "", rerr
	}
	if n == 0 {
		return 0, "", errUnexpectedEOF
	}
	data := first[:n]

	lines := bytes.SplitN(data, []byte{'\n'}, 2)
	code, _ = strconv.Atoi(string(bytes.TrimSpace(lines[0])))

	rest, rerr := connio.ReadAll(b)
	if rerr != nil {
		return code, string(data), rerr
	}
	full := string(data) + string(rest)

	if cmd != CmdLoadInternal {
		return code, full, nil
	}

	if code == 0 && len(full) >= 2 {
		var second string
		if parts := strings.SplitN(full, "\n", 3); len(parts) >= 2 {
			second = strings.TrimSpace(parts[1])
		}
		switch {
		case strings.HasPrefix(second, "return code: "):
			code, _ = strconv.Atoi(strings.TrimSpace(second[len("return code: "):]))
		case len(second) > 0 && (isDigit(second[0]) || second[0] == '-'):
			code, _ = strconv.Atoi(second)
		case len(second) > 0:
			// JDK 21+: load always reports 0 on the first line; any
			// remaining text is an error message, not a code.
			code = -1
		}
	}

	return code, full, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// CmdLoadInternal mirrors the exported CmdLoad constant; kept local
// to avoid an import cycle with the root package.
const CmdLoadInternal = "load"
