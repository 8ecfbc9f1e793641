package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ErrDuplicateInvocation is returned when the same call site invokes the
// same command twice within one test, which would collide on the result
// directory.
var ErrDuplicateInvocation = errors.New("duplicate invocation at call site")

// Result holds everything captured from one command invocation.
type Result struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
}

// Success reports whether the command exited zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes commands for a single test, persisting each capture
// under the test's run/ directory.
type Runner struct {
	runDir  string
	workDir string
	env     []string
	echo    io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithEcho sets the live sink output is mirrored to while a command runs.
func WithEcho(w io.Writer) Option {
	return func(r *Runner) {
		r.echo = w
	}
}

// WithEnv sets the environment for spawned commands. Defaults to the
// parent environment.
func WithEnv(env []string) Option {
	return func(r *Runner) {
		r.env = env
	}
}

// NewRunner returns a runner that stores results under runDir and runs
// commands with workDir as their working directory.
func NewRunner(runDir, workDir string, opts ...Option) *Runner {
	r := &Runner{
		runDir:  runDir,
		workDir: workDir,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.env == nil {
		r.env = os.Environ()
	}
	return r
}

// streams tees every write into the per-stream buffer, the combined
// buffer, and the live echo sink, under one mutex so the combined buffer
// preserves real emission order.
type streams struct {
	mu       sync.Mutex
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	combined bytes.Buffer
	echo     io.Writer
}

type teeWriter struct {
	s   *streams
	own *bytes.Buffer
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	w.own.Write(p)
	w.s.combined.Write(p)
	if w.s.echo != nil {
		_, _ = w.s.echo.Write(p)
	}
	return len(p), nil
}

// Command runs an argv-style command. line is the call-site line used to
// name the result directory.
func (r *Runner) Command(line int, name string, args ...string) (*Result, error) {
	label := name
	return r.invoke(line, label, func(stdout, stderr io.Writer) (int, error) {
		cmd := exec.Command(name, args...)
		cmd.Dir = r.workDir
		cmd.Env = r.env
		cmd.Stdout = stdout
		cmd.Stderr = stderr

		err := cmd.Run()
		if err == nil {
			return 0, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("running %s: %w", name, err)
	})
}

// Script runs a shell snippet through the embedded interpreter. Pipefail
// is always set so a non-zero stage inside a pipeline surfaces as the
// snippet's exit code.
func (r *Runner) Script(line int, src string) (*Result, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader("set -o pipefail\n"+src), "script")
	if err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}

	return r.invoke(line, scriptLabel(src), func(stdout, stderr io.Writer) (int, error) {
		runner, err := interp.New(
			interp.Dir(r.workDir),
			interp.Env(expand.ListEnviron(r.env...)),
			interp.StdIO(nil, stdout, stderr),
		)
		if err != nil {
			return 0, fmt.Errorf("creating interpreter: %w", err)
		}

		err = runner.Run(context.Background(), prog)
		if err == nil {
			return 0, nil
		}
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return int(status), nil
		}
		return 0, fmt.Errorf("running script: %w", err)
	})
}

func (r *Runner) invoke(line int, label string, run func(stdout, stderr io.Writer) (int, error)) (*Result, error) {
	dir := filepath.Join(r.runDir, fmt.Sprintf("%d-%s", line, sanitizeLabel(label)))
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: %s already captured", ErrDuplicateInvocation, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating capture dir: %w", err)
	}

	st := &streams{echo: r.echo}
	code, err := run(&teeWriter{s: st, own: &st.stdout}, &teeWriter{s: st, own: &st.stderr})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Stdout:   st.stdout.String(),
		Stderr:   st.stderr.String(),
		Combined: st.combined.String(),
		ExitCode: code,
	}
	if err := persist(dir, res); err != nil {
		return nil, err
	}
	return res, nil
}

func persist(dir string, res *Result) error {
	for name, content := range map[string]string{
		"stdout":   res.Stdout,
		"stderr":   res.Stderr,
		"combined": res.Combined,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("persisting %s: %w", name, err)
		}
	}
	return nil
}

// scriptLabel derives a directory-name label from the snippet's first
// word, falling back to "script" for anything unusable.
func scriptLabel(src string) string {
	fields := strings.Fields(src)
	if len(fields) == 0 {
		return "script"
	}
	return fields[0]
}

const maxLabelLen = 40

func sanitizeLabel(label string) string {
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
		if b.Len() >= maxLabelLen {
			break
		}
	}
	if b.Len() == 0 {
		return "cmd"
	}
	return b.String()
}
