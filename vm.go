/*
 * Copyright The jattach authors
 * SPDX-License-Identifier: Apache-2.0
 */

package attachcore

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/xxs-2/attach-core/internal/attachlog"
	"github.com/xxs-2/attach-core/internal/connio"
	"github.com/xxs-2/attach-core/internal/deleteonexit"
	"github.com/xxs-2/attach-core/internal/hotspot"
	"github.com/xxs-2/attach-core/internal/openj9"
	"github.com/xxs-2/attach-core/internal/process"
	"github.com/xxs-2/attach-core/internal/syscallsurface"
)

var defaultLog = attachlog.NewDefault()

func init() {
	// A target that closes its attach socket mid-write would otherwise
	// kill this process with SIGPIPE.
	signal.Ignore(unix.SIGPIPE)
}

// VirtualMachine identifies one target process and the options
// governing how the attach handshake reaches it. It holds no open
// resources itself; Attach is what produces a live Session.
type VirtualMachine struct {
	target  AttachTarget
	options Options
	surface syscallsurface.Surface
}

// New returns a VirtualMachine bound to pid, ready for Attach.
func New(pid int, opts Options) *VirtualMachine {
	return &VirtualMachine{
		target:  NewAttachTarget(pid),
		options: opts,
		surface: syscallsurface.New(),
	}
}

// PID returns the target process id.
func (vm *VirtualMachine) PID() int { return vm.target.PID() }

// Attach performs the full handshake against the target's detected
// JVM family (HotSpot or OpenJ9) and returns a Session. On Linux the
// target's namespaces (net, ipc, mnt) are entered first; a failure to
// enter one is only logged. The process's gid and uid are then switched
// to the target's, matching HotSpot's same-uid security requirement; a
// failed switch fails Attach with KindIOError.
func (vm *VirtualMachine) Attach(ctx context.Context) (*Session, error) {
	log := attachlog.Entry(vm.logger(), "attach", vm.target.PID())

	info, err := process.GetProcessInfo(vm.target.PID())
	if err != nil {
		return nil, newError("attach", vm.target.PID(), KindIOError, err)
	}

	for _, ns := range []string{"net", "ipc", "mnt"} {
		if _, nerr := process.EnterNamespace(vm.target.PID(), ns); nerr != nil {
			log.WithError(nerr).Debugf("could not enter %s namespace", ns)
		}
	}

	if err := unix.Setgid(int(info.GID)); err != nil {
		return nil, newError("attach", vm.target.PID(), KindIOError, err)
	}
	if err := unix.Setuid(int(info.UID)); err != nil {
		return nil, newError("attach", vm.target.PID(), KindIOError, err)
	}

	tmpPath := vm.tmpPath(info)
	advDir := openj9.AdvertisementDir(os.Getenv(AttachTargetDirEnv))

	if openj9.IsAdvertised(advDir, info.NsPID) {
		log.Debug("target advertised in OpenJ9 directory")
		sess, err := openj9.Attach(ctx, vm.surface, advDir, info.NsPID, vm.options.Timeout)
		if err != nil {
			return nil, vm.wrapOpenJ9Error("attach", err)
		}
		return &Session{vm: vm, jvmType: JVMTypeOpenJ9, oj: sess, log: log}, nil
	}

	log.Debug("attaching via HotSpot handshake")
	sess, err := hotspot.Attach(ctx, vm.surface, info.NsPID, tmpPath, vm.options.Retry.OrDefault())
	if err != nil {
		return nil, vm.wrapHotSpotError("attach", err)
	}
	return &Session{vm: vm, jvmType: JVMTypeHotSpot, hs: sess, log: log}, nil
}

func (vm *VirtualMachine) tmpPath(info *process.Info) string {
	if vm.options.TmpPath != "" {
		return vm.options.TmpPath
	}
	if override := os.Getenv(TmpPathEnv); override != "" {
		return override
	}
	path, err := process.GetTmpPath(vm.target.PID())
	if err != nil {
		return "/tmp"
	}
	return path
}

func (vm *VirtualMachine) logger() *logrus.Logger {
	return defaultLog
}

// printOutput writes s through the caller's Logger when PrintOutput is
// set, falling back to stdout when no Logger was supplied.
func (vm *VirtualMachine) printOutput(s string) {
	if !vm.options.PrintOutput {
		return
	}
	if vm.options.Logger != nil {
		vm.options.Logger.Printf("%s", s)
		return
	}
	fmt.Println(s)
}

func (vm *VirtualMachine) wrapHotSpotError(op string, err error) error {
	pid := vm.target.PID()
	switch {
	case stderrors.Is(err, hotspot.ErrProcessGone), stderrors.Is(err, hotspot.ErrTimeout):
		return newError(op, pid, KindTargetUnresponsive, err)
	case stderrors.Is(err, hotspot.ErrSentinelCreate):
		return newError(op, pid, KindSentinelCreate, err)
	case stderrors.Is(err, hotspot.ErrSignalFailed):
		return newError(op, pid, KindSignalFailed, err)
	case stderrors.Is(err, connio.ErrShortWrite):
		return newError(op, pid, KindIOShort, err)
	default:
		return newError(op, pid, KindConnectFailed, err)
	}
}

func (vm *VirtualMachine) wrapOpenJ9Error(op string, err error) error {
	pid := vm.target.PID()
	switch {
	case stderrors.Is(err, openj9.ErrTargetNotAdvertised):
		return newError(op, pid, KindTargetNotAdvertised, err)
	case stderrors.Is(err, openj9.ErrNonceMismatch):
		return newError(op, pid, KindNonceMismatch, err)
	case stderrors.Is(err, openj9.ErrAgentRejected):
		return newError(op, pid, KindAgentRejected, err)
	case stderrors.Is(err, openj9.ErrUnexpectedResponse):
		return newError(op, pid, KindUnexpectedResponse, err)
	case stderrors.Is(err, connio.ErrShortWrite):
		return newError(op, pid, KindIOShort, err)
	default:
		return newError(op, pid, KindConnectFailed, err)
	}
}

// Session is a live attach handshake against exactly one target JVM.
// At most one command is outstanding at a time; after Detach, every
// other operation fails with ErrAlreadyDetached.
type Session struct {
	vm       *VirtualMachine
	jvmType  JVMType
	hs       *hotspot.Session
	oj       *openj9.Session
	log      *logrus.Entry
	detached bool
}

// JVMType reports which handshake this session used.
func (s *Session) JVMType() JVMType { return s.jvmType }

// LoadAgent loads an agent: a native shared library at path when
// native is true, otherwise a Java agent jar through the instrument
// module.
func (s *Session) LoadAgent(path, arg string, native bool) (Response, error) {
	if err := s.checkOpen(); err != nil {
		return Response{}, err
	}
	if s.jvmType == JVMTypeOpenJ9 {
		var raw string
		if native {
			raw = openj9.BuildLoadAgentPathCommand(path, arg)
		} else {
			raw = openj9.BuildLoadAgentCommand(path, arg)
		}
		return s.sendOpenJ9(raw)
	}
	code, output, err := s.hs.LoadAgent(path, arg, native)
	return s.finishHotSpot(code, output, err)
}

// LoadJavaAgent loads a Java agent jar through the instrument library.
func (s *Session) LoadJavaAgent(jarPath, options string) (Response, error) {
	return s.LoadAgent(jarPath, options, false)
}

// ThreadDump requests a thread dump.
func (s *Session) ThreadDump() (Response, error) { return s.command(CmdThreadDump, nil) }

// HeapDump creates a heap dump file at path.
func (s *Session) HeapDump(path string) (Response, error) {
	return s.command(CmdDumpHeap, []string{path})
}

// InspectHeap shows a heap histogram.
func (s *Session) InspectHeap(options string) (Response, error) {
	return s.command(CmdInspectHeap, nonEmpty(options))
}

// DataDump shows a heap and thread summary.
func (s *Session) DataDump(options string) (Response, error) {
	return s.command(CmdDataDump, nonEmpty(options))
}

// JCmd executes a jcmd command.
func (s *Session) JCmd(command string, args ...string) (Response, error) {
	return s.command(CmdJCmd, append([]string{command}, args...))
}

// GetProperties retrieves system properties.
func (s *Session) GetProperties() (Response, error) { return s.command(CmdProperties, nil) }

// GetAgentProperties retrieves agent-specific properties.
func (s *Session) GetAgentProperties() (Response, error) {
	return s.command(CmdAgentProperties, nil)
}

// SetFlag modifies a manageable VM flag.
func (s *Session) SetFlag(flag, value string) (Response, error) {
	return s.command(CmdSetFlag, []string{flag, value})
}

// PrintFlag prints a specific VM flag's value.
func (s *Session) PrintFlag(flag string) (Response, error) {
	return s.command(CmdPrintFlag, []string{flag})
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

// command dispatches the shared vocabulary, special-casing load since
// its argument layout (path, native-flag, arg) doesn't fit either
// protocol's generic translation.
func (s *Session) command(cmd string, args []string) (Response, error) {
	if err := s.checkOpen(); err != nil {
		return Response{}, err
	}
	if cmd == CmdLoad {
		path, arg := "", ""
		native := false
		if len(args) > 0 {
			path = args[0]
		}
		if len(args) > 1 {
			native = args[1] == "true"
		}
		if len(args) > 2 {
			arg = args[2]
		}
		return s.LoadAgent(path, arg, native)
	}
	if s.jvmType == JVMTypeOpenJ9 {
		return s.sendOpenJ9(openj9.TranslateCommand(cmd, args))
	}
	code, output, err := s.hs.Command(cmd, args)
	return s.finishHotSpot(code, output, err)
}

func (s *Session) sendOpenJ9(raw string) (Response, error) {
	body, err := s.oj.Command(raw)
	if err != nil {
		return Response{Output: body, JVMType: s.jvmType}, s.vm.wrapOpenJ9Error("command", err)
	}
	s.vm.printOutput(unescapeJavaProperties(body))
	return Response{Code: 0, Output: body, JVMType: s.jvmType}, nil
}

func (s *Session) finishHotSpot(code int, output string, err error) (Response, error) {
	if err != nil {
		return Response{}, s.vm.wrapHotSpotError("command", err)
	}
	resp := Response{Code: code, Output: output, JVMType: s.jvmType}
	switch code {
	case 0:
		s.vm.printOutput(output)
		return resp, nil
	case 101:
		return resp, newError("command", s.vm.target.PID(), KindProtocolMismatch, nil)
	default:
		return resp, newErrorf("command", s.vm.target.PID(), KindAgentRejected, "%s", output)
	}
}

// unescapeJavaProperties unescapes the Java Properties-format escape
// sequences OpenJ9 diagnostic output carries.
func unescapeJavaProperties(s string) string {
	replacer := strings.NewReplacer(`\f`, "\f", `\n`, "\n", `\r`, "\r", `\t`, "\t", `\\`, `\`)
	return replacer.Replace(s)
}

func (s *Session) checkOpen() error {
	if s.detached {
		return ErrAlreadyDetached
	}
	return nil
}

// Detach closes the session. Idempotent: a second call returns nil
// without touching the underlying connection again, and every other
// operation after the first Detach fails with ErrAlreadyDetached.
func (s *Session) Detach() error {
	if s.detached {
		return nil
	}
	s.detached = true

	if s.jvmType == JVMTypeOpenJ9 {
		return s.oj.Detach()
	}
	return s.hs.Close()
}

// FlushDeleteOnExit retries deletion of every sentinel/replyInfo file
// this process could not remove immediately. The library does not own
// main() or a signal handler, so a host process should call this from
// its own shutdown sequence.
func FlushDeleteOnExit() { deleteonexit.Flush() }

// Attach performs a one-shot attach/command/detach cycle with default
// options, mirroring the teacher's package-level convenience function.
func Attach(ctx context.Context, pid int, cmd string, args ...string) (Response, error) {
	return AttachWithOptions(ctx, pid, Options{Timeout: 6 * time.Second, Retry: DefaultRetryPolicy}, cmd, args...)
}

// AttachWithOptions is Attach with caller-supplied Options.
func AttachWithOptions(ctx context.Context, pid int, opts Options, cmd string, args ...string) (Response, error) {
	vm := New(pid, opts)
	sess, err := vm.Attach(ctx)
	if err != nil {
		return Response{}, err
	}
	defer sess.Detach()

	resp, err := sess.command(cmd, args)
	if err != nil {
		return resp, err
	}
	return resp, sess.Detach()
}
