// Package output formats per-test and per-suite results in a go-test-like
// textual protocol and computes the suite's process exit code.
package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/fatih/color"
)

// Status is a test's terminal state.
type Status int

const (
	Passed Status = iota
	Failed
	Skipped
)

// Indent is the fixed prefix for nested log dumps.
const Indent = "    "

// Reporter emits the test protocol. Status tokens stay literal; color
// only wraps them and is disabled automatically on non-terminals.
type Reporter struct {
	w      io.Writer
	noTime bool
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithWriter directs protocol output to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(r *Reporter) {
		r.w = w
	}
}

// WithNoTime omits the parenthesized duration from status lines.
func WithNoTime(v bool) Option {
	return func(r *Reporter) {
		r.noTime = v
	}
}

// WithNoColor disables colored output.
func WithNoColor(v bool) Option {
	return func(r *Reporter) {
		if v {
			color.NoColor = true
		}
	}
}

// NewReporter returns a reporter writing to stdout unless overridden.
func NewReporter(opts ...Option) *Reporter {
	r := &Reporter{w: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run emits the begin-test line.
func (r *Reporter) Run(id string) {
	fmt.Fprintf(r.w, "=== RUN   %s\n", id)
}

// Result emits the terminal status line for one test.
func (r *Reporter) Result(status Status, id string, d time.Duration) {
	var token string
	switch status {
	case Failed:
		token = color.New(color.FgRed).Sprint("--- FAIL:")
	case Skipped:
		token = color.New(color.FgYellow).Sprint("--- SKIP:")
	default:
		token = color.New(color.FgGreen).Sprint("--- PASS:")
	}
	if r.noTime {
		fmt.Fprintf(r.w, "%s %s\n", token, id)
		return
	}
	fmt.Fprintf(r.w, "%s %s (%.3fs)\n", token, id, d.Seconds())
}

// LogLine emits one dumped log line with the fixed indentation prefix.
func (r *Reporter) LogLine(line string) {
	fmt.Fprintf(r.w, "%s%s\n", Indent, line)
}

// Error emits a harness-level error against the suite, such as a
// duplicate test id.
func (r *Reporter) Error(msg string) {
	fmt.Fprintf(r.w, "%s%s\n", Indent, color.New(color.FgRed).Sprint(msg))
}

// Summary emits the suite summary from the drained counters and returns
// the process exit code.
func (r *Reporter) Summary(suite string, tests, fails int) int {
	if fails > 0 {
		fmt.Fprintln(r.w, color.New(color.FgRed).Sprint("FAIL"))
		fmt.Fprintf(r.w, "fail      %s\n", suite)
		return 1
	}
	if tests == 0 {
		fmt.Fprintf(r.w, "ok        %s [no tests run]\n", suite)
		return 0
	}
	fmt.Fprintf(r.w, "ok        %s\n", suite)
	return 0
}

// Timing emits the duration distribution across the suite's tests. The
// histogram records milliseconds.
func (r *Reporter) Timing(hist *hdrhistogram.Histogram) {
	if hist == nil || hist.TotalCount() == 0 {
		return
	}
	fmt.Fprintf(r.w, "timing    p50=%dms p95=%dms max=%dms\n",
		hist.ValueAtQuantile(50), hist.ValueAtQuantile(95), hist.Max())
}
