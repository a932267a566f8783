/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package attachcore

import (
	"strconv"
	"time"

	"github.com/xxs-2/attach-core/internal/retry"
)

// AttachTargetDirEnv overrides the OpenJ9 advertisement directory,
// equivalent to the reference "com.ibm.tools.attach.directory"
// property.
const AttachTargetDirEnv = "com.ibm.tools.attach.directory"

// TmpPathEnv overrides the HotSpot temporary directory used for
// sentinel files and sockets.
const TmpPathEnv = "JATTACH_PATH"

// DefaultAdvertisementDir is the OpenJ9 advertisement directory used
// when AttachTargetDirEnv is unset.
const DefaultAdvertisementDir = "/tmp/.com_ibm_tools_attach"

// JVMType indicates the detected JVM implementation.
type JVMType int

const (
	// JVMTypeUnknown indicates the JVM type could not be determined.
	JVMTypeUnknown JVMType = iota
	// JVMTypeHotSpot indicates Oracle HotSpot or OpenJDK.
	JVMTypeHotSpot
	// JVMTypeOpenJ9 indicates IBM OpenJ9.
	JVMTypeOpenJ9
)

func (t JVMType) String() string {
	switch t {
	case JVMTypeHotSpot:
		return "HotSpot"
	case JVMTypeOpenJ9:
		return "OpenJ9"
	default:
		return "Unknown"
	}
}

// AttachTarget is the opaque, immutable process identifier used as a
// filesystem key throughout both handshakes.
type AttachTarget struct {
	pid int
}

// NewAttachTarget wraps a process id.
func NewAttachTarget(pid int) AttachTarget { return AttachTarget{pid: pid} }

// PID returns the numeric process id.
func (t AttachTarget) PID() int { return t.pid }

// String renders the decimal form used in filenames like
// .java_pid<pid> and .attach_pid<pid>.
func (t AttachTarget) String() string { return strconv.Itoa(t.pid) }

// Response contains the result from a JVM attach operation.
type Response struct {
	// Code is the return code from the JVM operation (0 = success).
	Code int

	// Output contains the response text from the JVM.
	Output string

	// JVMType indicates which JVM type was detected.
	JVMType JVMType
}

// RetryPolicy bounds the HotSpot signal-and-poll loops. It is a plain
// value object rather than hidden state, per the attach core's design
// notes, so callers can tune attempts/pause per call.
type RetryPolicy = retry.Policy

// DefaultRetryPolicy matches the reference implementation's effective
// budget: up to 300 polls, 20ms apart (~6s total).
var DefaultRetryPolicy = retry.Default

// Options configures attach behavior.
type Options struct {
	// PrintOutput controls whether JVM responses are printed to stdout.
	PrintOutput bool

	// TmpPath overrides the default temporary directory path.
	// Equivalent to the JATTACH_PATH environment variable.
	TmpPath string

	// Timeout bounds connection attempts (OpenJ9 accept; default 5s).
	Timeout time.Duration

	// Retry bounds the HotSpot signal-and-poll loops.
	Retry RetryPolicy

	// Logger receives the JVM output printed when PrintOutput is set;
	// when nil that output goes to stdout. Diagnostic logging always
	// goes to the package's own logrus logger.
	Logger Logger
}

// Logger is the sink for printed JVM output. Any *logrus.Logger,
// *logrus.Entry, or stdlib *log.Logger satisfies this.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Command names mirror the reference implementation's command
// vocabulary; all are routed through the same HotSpot/OpenJ9 wire
// protocols as CmdLoad.
const (
	// CmdLoad loads a native agent library or Java agent.
	CmdLoad = "load"

	// CmdThreadDump requests a thread dump.
	CmdThreadDump = "threaddump"

	// CmdDumpHeap creates a heap dump file.
	CmdDumpHeap = "dumpheap"

	// CmdInspectHeap shows heap histogram/class statistics.
	CmdInspectHeap = "inspectheap"

	// CmdDataDump shows heap and thread summary.
	CmdDataDump = "datadump"

	// CmdJCmd executes a jcmd command.
	CmdJCmd = "jcmd"

	// CmdProperties prints system properties.
	CmdProperties = "properties"

	// CmdAgentProperties prints agent-specific properties.
	CmdAgentProperties = "agentProperties"

	// CmdSetFlag modifies a manageable VM flag.
	CmdSetFlag = "setflag"

	// CmdPrintFlag prints a specific VM flag.
	CmdPrintFlag = "printflag"
)
