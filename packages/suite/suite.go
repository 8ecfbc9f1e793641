package suite

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	charmlog "github.com/charmbracelet/log"

	"github.com/shtest-dev/shtest/packages/capture"
	"github.com/shtest-dev/shtest/packages/counter"
	"github.com/shtest-dev/shtest/packages/history"
	"github.com/shtest-dev/shtest/packages/logging"
	"github.com/shtest-dev/shtest/packages/output"
	"github.com/shtest-dev/shtest/packages/workspace"
)

// Counter file names. Suite-level counters live directly under the suite
// directory, test-level counters under each test directory.
const (
	counterTests  = "test-count"
	counterFails  = "fail-count"
	counterErrors = "error-count"
	counterSkips  = "skip-count"
)

// startTimeFile holds the test's start timestamp in unix nanoseconds.
const startTimeFile = "start-time"

// TestPrefix is the reserved prefix a registered unit must carry to be
// eligible for execution.
const TestPrefix = "Test"

const histogramMaxMs = 60 * 60 * 1000

type testCase struct {
	name string
	fn   func(*T)
}

// Config is the engine configuration consumed by a Suite. The CLI and the
// SHTEST_* environment variables only ever set these fields.
type Config struct {
	Verbosity int    // 0 quiet, 1 verbose, 2+ debug
	Filter    string // regex over "suite/name" ids
	ListOnly  bool   // print ids instead of executing
	NoTime    bool   // omit durations from status lines
	DataDir   string // defaults to .testdata
	History   bool   // record the run in the history database
	NoColor   bool
}

// Suite owns an ordered list of tests and runs them strictly sequentially
// in registration order.
type Suite struct {
	name     string
	cfg      Config
	out      io.Writer
	ws       *workspace.Manager
	counters *counter.Store
	reporter *output.Reporter
	logger   *charmlog.Logger
	hist     *hdrhistogram.Histogram

	tests []testCase
	ids   map[string]bool
	dupes []string
	skips int
}

// Option configures a Suite beyond its environment-derived defaults.
type Option func(*Config)

// WithVerbosity sets the verbosity level.
func WithVerbosity(v int) Option {
	return func(c *Config) { c.Verbosity = v }
}

// WithFilter restricts execution to tests whose id matches the regex.
func WithFilter(pattern string) Option {
	return func(c *Config) { c.Filter = pattern }
}

// WithListOnly makes Run print the ordered ids that would run and exit.
func WithListOnly(v bool) Option {
	return func(c *Config) { c.ListOnly = v }
}

// WithNoTime disables durations in status lines.
func WithNoTime(v bool) Option {
	return func(c *Config) { c.NoTime = v }
}

// WithDataDir overrides the .testdata root.
func WithDataDir(dir string) Option {
	return func(c *Config) { c.DataDir = dir }
}

// WithHistory records each run in the history database under the data
// root.
func WithHistory(v bool) Option {
	return func(c *Config) { c.History = v }
}

// WithNoColor disables colored status tokens.
func WithNoColor(v bool) Option {
	return func(c *Config) { c.NoColor = v }
}

// New creates a suite. Configuration defaults come from the SHTEST_*
// environment variables (set by the CLI for subprocess suites), then the
// options apply on top.
func New(name string, opts ...Option) *Suite {
	cfg := configFromEnv()
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Suite{
		name: name,
		cfg:  cfg,
		out:  os.Stdout,
		ids:  map[string]bool{},
		hist: hdrhistogram.New(1, histogramMaxMs, 3),
	}
	s.ws = workspace.NewManager(cfg.DataDir)
	s.counters = counter.NewStore(s.ws.SuiteDir(name))
	s.reporter = output.NewReporter(
		output.WithWriter(s.out),
		output.WithNoTime(cfg.NoTime),
		output.WithNoColor(cfg.NoColor),
	)
	s.logger = logging.New(cfg.Verbosity)
	return s
}

// SetOutput redirects the protocol stream. Useful when embedding the
// engine; the CLI leaves it on stdout.
func (s *Suite) SetOutput(w io.Writer) {
	s.out = w
	s.reporter = output.NewReporter(
		output.WithWriter(w),
		output.WithNoTime(s.cfg.NoTime),
		output.WithNoColor(s.cfg.NoColor),
	)
}

// Name returns the suite name.
func (s *Suite) Name() string {
	return s.name
}

// Add registers a test under the reserved Test prefix. Registration order
// is execution order. A duplicate name is a configuration error surfaced
// at suite end, never silently merged.
func (s *Suite) Add(name string, fn func(*T)) {
	if s.ids[name] {
		s.dupes = append(s.dupes, name)
		return
	}
	s.ids[name] = true
	s.tests = append(s.tests, testCase{name: name, fn: fn})
}

func (s *Suite) debug() bool {
	return s.cfg.Verbosity >= logging.LevelDebug
}

// Run executes the suite and returns the process exit code: 0 when every
// executed test passed (or none matched), 1 when at least one failed.
func (s *Suite) Run() int {
	var filter *regexp.Regexp
	if s.cfg.Filter != "" {
		var err error
		filter, err = regexp.Compile(s.cfg.Filter)
		if err != nil {
			s.reporter.Error(fmt.Sprintf("invalid filter %q: %v", s.cfg.Filter, err))
			return s.reporter.Summary(s.name, 0, 1)
		}
	}

	if s.cfg.ListOnly {
		for _, tc := range s.tests {
			if !strings.HasPrefix(tc.name, TestPrefix) {
				continue
			}
			id := s.name + "/" + tc.name
			if filter != nil && !filter.MatchString(id) {
				continue
			}
			fmt.Fprintln(s.out, id)
		}
		return 0
	}

	started := time.Now()
	if err := s.ws.ResetSuite(s.name); err != nil {
		s.reporter.Error(fmt.Sprintf("resetting workspace: %v", err))
		return s.reporter.Summary(s.name, 0, 1)
	}

	for _, tc := range s.tests {
		if !strings.HasPrefix(tc.name, TestPrefix) {
			s.logger.Warn("skipping unit without Test prefix", "suite", s.name, "name", tc.name)
			continue
		}
		id := s.name + "/" + tc.name
		if filter != nil && !filter.MatchString(id) {
			s.logger.Debug("filtered out", "id", id)
			continue
		}
		s.runTest(tc)
	}

	for _, name := range s.dupes {
		s.reporter.Error(fmt.Sprintf("duplicate test id: %s/%s", s.name, name))
		if _, err := s.counters.Increment(counterFails); err != nil {
			s.logger.Warn("incrementing fail counter", "err", err)
		}
	}

	tests := s.counters.Read(counterTests)
	fails := s.counters.Read(counterFails)

	if s.debug() {
		s.reporter.Timing(s.hist)
	}
	if s.cfg.History {
		s.record(tests, fails, time.Since(started), started)
	}
	return s.reporter.Summary(s.name, tests, fails)
}

// runTest wraps one test body: begin, run in its own goroutine with fault
// interception, then finalize. The next test never starts before the
// finalizer completes.
func (s *Suite) runTest(tc testCase) {
	id := s.name + "/" + tc.name

	dir, workDir, err := s.ws.Acquire(s.name, tc.name)
	if err != nil {
		s.reporter.Error(fmt.Sprintf("acquiring workspace for %s: %v", id, err))
		if _, err := s.counters.Increment(counterFails); err != nil {
			s.logger.Warn("incrementing fail counter", "err", err)
		}
		return
	}

	echo := io.Discard
	if s.cfg.Verbosity >= logging.LevelVerbose {
		echo = s.out
	}

	t := &T{
		suite:    s,
		name:     tc.name,
		id:       id,
		dir:      dir,
		workDir:  workDir,
		counters: counter.NewStore(dir),
		runner:   capture.NewRunner(filepath.Join(dir, "run"), workDir, capture.WithEcho(echo)),
	}

	// The log is written through to disk as entries arrive so it survives
	// an abnormal process exit mid-test.
	if f, err := os.Create(filepath.Join(dir, "log")); err != nil {
		s.logger.Warn("opening test log", "test", id, "err", err)
	} else {
		t.logFile = f
		t.log.sink = f
	}

	if _, err := s.counters.Increment(counterTests); err != nil {
		s.logger.Warn("incrementing test counter", "err", err)
	}

	s.reporter.Run(id)
	t.start = time.Now()
	if err := os.WriteFile(filepath.Join(dir, startTimeFile),
		[]byte(strconv.FormatInt(t.start.UnixNano(), 10)), 0o644); err != nil {
		s.logger.Warn("writing start time", "test", id, "err", err)
	}

	// The body runs in its own goroutine so Fatal and Skip can stop it
	// with Goexit and a runtime fault is caught at this boundary instead
	// of taking down the whole run.
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				t.log.append(LevelError, 0, "panic: %v", r)
				t.fail()
			}
		}()
		tc.fn(t)
	}()
	<-done

	s.finalize(t)
}

// finalize runs exactly once per test regardless of how the body ended.
// It computes the terminal status from the accumulated counters, reports
// it, and dumps the log when the status and verbosity call for it.
func (s *Suite) finalize(t *T) {
	elapsed := time.Since(t.start)

	if t.logFile != nil {
		if err := t.logFile.Close(); err != nil {
			s.logger.Warn("closing test log", "test", t.id, "err", err)
		}
	}

	var status output.Status
	switch {
	case t.counters.Read(counterErrors) > 0:
		status = output.Failed
	case t.counters.Read(counterSkips) > 0:
		status = output.Skipped
		s.skips++
	default:
		status = output.Passed
	}

	ms := elapsed.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if err := s.hist.RecordValue(ms); err != nil {
		s.logger.Debug("recording duration", "err", err)
	}

	s.reporter.Result(status, t.id, elapsed)

	dump := status == output.Failed ||
		(status != output.Passed && s.cfg.Verbosity >= logging.LevelVerbose) ||
		s.debug()
	if dump {
		for _, entry := range t.log.entries {
			s.reporter.LogLine(entry.String())
		}
	}

	if status == output.Failed {
		if _, err := s.counters.Increment(counterFails); err != nil {
			s.logger.Warn("incrementing fail counter", "err", err)
		}
	}
}

func (s *Suite) record(tests, fails int, elapsed time.Duration, started time.Time) {
	db, err := history.Open(filepath.Join(s.ws.Root(), "history.db"))
	if err != nil {
		s.logger.Warn("opening history database", "err", err)
		return
	}
	defer db.Close()

	rec := &history.Record{
		Suite:     s.name,
		Tests:     tests,
		Fails:     fails,
		Skips:     s.skips,
		Duration:  elapsed,
		StartedAt: started,
	}
	if err := db.Add(rec); err != nil {
		s.logger.Warn("recording run history", "err", err)
	}
}

func configFromEnv() Config {
	return Config{
		Verbosity: envInt("SHTEST_VERBOSE", 0),
		Filter:    os.Getenv("SHTEST_RUN"),
		ListOnly:  envBool("SHTEST_LIST"),
		NoTime:    envBool("SHTEST_NOTIME"),
		DataDir:   os.Getenv("SHTEST_DATA_DIR"),
		History:   envBool("SHTEST_HISTORY"),
		NoColor:   envBool("SHTEST_NO_COLOR"),
	}
}

func envInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func envBool(key string) bool {
	val := os.Getenv(key)
	return val == "true" || val == "1" || val == "yes"
}

func sprintArgs(args []any) string {
	return strings.TrimSuffix(fmt.Sprintln(args...), "\n")
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
