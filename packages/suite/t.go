package suite

import (
	"os"
	"runtime"
	"time"

	"github.com/shtest-dev/shtest/packages/capture"
	"github.com/shtest-dev/shtest/packages/counter"
)

// T carries the execution context of one running test: its workspace,
// counters, log buffer, and command runner. It is passed to the test body
// and owned exclusively by it.
//
// Error records a recoverable failure and lets the body continue. Fatal
// and Skip end the body immediately; statements after them never execute.
// Either way the suite's finalizer runs and the sibling tests keep going.
type T struct {
	suite    *Suite
	name     string
	id       string
	dir      string
	workDir  string
	counters *counter.Store
	runner   *capture.Runner
	log      logBuffer
	logFile  *os.File
	start    time.Time
}

// Name returns the test's name within its suite.
func (t *T) Name() string {
	return t.name
}

// ID returns the fully qualified "suite/name" id.
func (t *T) ID() string {
	return t.id
}

// WorkDir returns the isolated working directory commands run in.
func (t *T) WorkDir() string {
	return t.workDir
}

// Failed reports whether the test has recorded at least one error.
func (t *T) Failed() bool {
	return t.counters.Read(counterErrors) > 0
}

// Log records an info-level message in the test's log buffer.
func (t *T) Log(args ...any) {
	t.log.append(LevelInfo, 2, "%s", sprintArgs(args))
}

// Logf records a formatted info-level message.
func (t *T) Logf(format string, args ...any) {
	t.log.append(LevelInfo, 2, format, args...)
}

// Debugf records a debug-level message. Debug entries are only kept when
// the suite runs at debug verbosity.
func (t *T) Debugf(format string, args ...any) {
	if !t.suite.debug() {
		return
	}
	t.log.append(LevelDebug, 2, format, args...)
}

// Error records a recoverable failure; the test body continues.
func (t *T) Error(args ...any) {
	t.log.append(LevelError, 2, "%s", sprintArgs(args))
	t.fail()
}

// Errorf records a formatted recoverable failure; the test body continues.
func (t *T) Errorf(format string, args ...any) {
	t.log.append(LevelError, 2, format, args...)
	t.fail()
}

// Fatal records a failure and terminates the test body immediately.
func (t *T) Fatal(args ...any) {
	t.log.append(LevelError, 2, "%s", sprintArgs(args))
	t.fail()
	runtime.Goexit()
}

// Fatalf records a formatted failure and terminates the test body
// immediately.
func (t *T) Fatalf(format string, args ...any) {
	t.log.append(LevelError, 2, format, args...)
	t.fail()
	runtime.Goexit()
}

// Skip marks the test skipped and terminates the body immediately.
func (t *T) Skip(args ...any) {
	t.log.append(LevelInfo, 2, "%s", sprintArgs(args))
	t.skip()
}

// Skipf marks the test skipped with a formatted reason and terminates the
// body immediately.
func (t *T) Skipf(format string, args ...any) {
	t.log.append(LevelInfo, 2, format, args...)
	t.skip()
}

// Run executes a shell snippet in the test's workspace, capturing stdout,
// stderr, and their interleaving. Harness errors (a duplicate invocation
// at the same call site, an unparsable script) are fatal to the test.
func (t *T) Run(src string) *capture.Result {
	return t.runScript(callerLine(), src)
}

// MustRun is Run plus a fatal signal when the snippet exits non-zero.
func (t *T) MustRun(src string) *capture.Result {
	res := t.runScript(callerLine(), src)
	if !res.Success() {
		t.log.append(LevelError, 2, "command failed with exit code %d\n%s", res.ExitCode, res.Combined)
		t.fail()
		runtime.Goexit()
	}
	return res
}

// Command executes an argv-style command in the test's workspace.
func (t *T) Command(name string, args ...string) *capture.Result {
	return t.runCommand(callerLine(), name, args...)
}

// MustCommand is Command plus a fatal signal on non-zero exit.
func (t *T) MustCommand(name string, args ...string) *capture.Result {
	res := t.runCommand(callerLine(), name, args...)
	if !res.Success() {
		t.log.append(LevelError, 2, "%s failed with exit code %d\n%s", name, res.ExitCode, res.Combined)
		t.fail()
		runtime.Goexit()
	}
	return res
}

func (t *T) runScript(line int, src string) *capture.Result {
	res, err := t.runner.Script(line, src)
	if err != nil {
		t.harnessFatal(err)
	}
	t.Debugf("run %q: exit %d", firstWord(src), res.ExitCode)
	return res
}

func (t *T) runCommand(line int, name string, args ...string) *capture.Result {
	res, err := t.runner.Command(line, name, args...)
	if err != nil {
		t.harnessFatal(err)
	}
	t.Debugf("run %q: exit %d", name, res.ExitCode)
	return res
}

// harnessFatal reports a usage or infrastructure error against the
// current test and ends the body. Never silently ignored.
func (t *T) harnessFatal(err error) {
	t.log.append(LevelError, 4, "harness error: %v", err)
	t.fail()
	runtime.Goexit()
}

func (t *T) fail() {
	if _, err := t.counters.Increment(counterErrors); err != nil {
		t.suite.logger.Warn("incrementing error counter", "test", t.id, "err", err)
	}
}

func (t *T) skip() {
	if _, err := t.counters.Increment(counterSkips); err != nil {
		t.suite.logger.Warn("incrementing skip counter", "test", t.id, "err", err)
	}
	runtime.Goexit()
}

func callerLine() int {
	_, _, line, ok := runtime.Caller(2)
	if !ok {
		return 0
	}
	return line
}
