/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package openj9

import (
	"fmt"
	"strings"

	"github.com/xxs-2/attach-core/internal/connio"
)

const (
	prefixAck    = "ATTACH_ACK"
	prefixErr    = "ATTACH_ERR"
	prefixResult = "ATTACH_RESULT="
	cmdDetach    = "ATTACH_DETACH"
)

// BuildLoadAgentCommand renders the bytecode-agent load payload:
// ATTACH_LOADAGENT(instrument,<jar>[=<arg>]).
func BuildLoadAgentCommand(jar, arg string) string {
	return fmt.Sprintf("ATTACH_LOADAGENT(instrument,%s)", withArg(jar, arg))
}

// BuildLoadAgentPathCommand renders the native-agent load payload:
// ATTACH_LOADAGENTPATH(<lib>[,<arg>]).
func BuildLoadAgentPathCommand(lib, arg string) string {
	if arg == "" {
		return fmt.Sprintf("ATTACH_LOADAGENTPATH(%s)", lib)
	}
	return fmt.Sprintf("ATTACH_LOADAGENTPATH(%s,%s)", lib, arg)
}

func withArg(target, arg string) string {
	if arg == "" {
		return target
	}
	return target + "=" + arg
}

// TranslateCommand maps the shared HotSpot-shaped command vocabulary
// onto OpenJ9's ATTACH_DIAGNOSTICS: namespace, the way the reference
// translator does for every non-load command.
func TranslateCommand(cmd string, args []string) string {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch cmd {
	case "jcmd":
		if len(args) == 0 {
			return "ATTACH_DIAGNOSTICS:help"
		}
		return "ATTACH_DIAGNOSTICS:" + strings.Join(args, ",")
	case "threaddump":
		return fmt.Sprintf("ATTACH_DIAGNOSTICS:Thread.print,%s", arg(0))
	case "dumpheap":
		return fmt.Sprintf("ATTACH_DIAGNOSTICS:Dump.heap,%s", arg(0))
	case "inspectheap":
		return fmt.Sprintf("ATTACH_DIAGNOSTICS:GC.class_histogram,%s", arg(0))
	case "datadump":
		return fmt.Sprintf("ATTACH_DIAGNOSTICS:Dump.java,%s", arg(0))
	case "properties":
		return "ATTACH_GETSYSTEMPROPERTIES"
	case "agentProperties":
		return "ATTACH_GETAGENTPROPERTIES"
	case "setflag":
		return fmt.Sprintf("ATTACH_DIAGNOSTICS:VM.set_flag,%s,%s", arg(0), arg(1))
	case "printflag":
		return fmt.Sprintf("ATTACH_DIAGNOSTICS:VM.flag,%s", arg(0))
	default:
		return cmd
	}
}

// writeCommand sends cmd as a single NUL-terminated UTF-8 message.
func writeCommand(b connio.Backend, cmd string) error {
	return b.Write(append([]byte(cmd), 0))
}

// readResponse reads one NUL-terminated reply and classifies it per
// spec.md §4.3's prefix rules: ATTACH_ACK/ATTACH_RESULT= succeed,
// ATTACH_ERR fails AgentRejected, anything else is UnexpectedResponse.
func readResponse(b connio.Backend) (ok bool, unexpected bool, body string, err error) {
	buf := make([]byte, 0, 8192)
	chunk := make([]byte, 4096)
	for {
		n, rerr := b.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if buf[len(buf)-1] == 0 {
				break
			}
		}
		if rerr != nil {
			return false, false, "", rerr
		}
		if n == 0 {
			return false, false, "", fmt.Errorf("openj9: unexpected EOF reading response")
		}
	}

	msg := string(buf[:len(buf)-1])
	switch {
	case strings.HasPrefix(msg, prefixAck), strings.HasPrefix(msg, prefixResult):
		return true, false, msg, nil
	case strings.HasPrefix(msg, prefixErr):
		return false, false, msg, nil
	default:
		return false, true, msg, nil
	}
}
