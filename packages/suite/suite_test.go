package suite

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSuite(t *testing.T, opts ...Option) (*Suite, *bytes.Buffer, string) {
	t.Helper()
	dataDir := t.TempDir()
	opts = append([]Option{WithDataDir(dataDir), WithNoColor(true)}, opts...)
	s := New("suite", opts...)
	var buf bytes.Buffer
	s.SetOutput(&buf)
	return s, &buf, dataDir
}

func TestPassingTest(t *testing.T) {
	s, buf, _ := newTestSuite(t)
	s.Add("TestAdd", func(tt *T) {
		if 1+1 != 2 {
			tt.Errorf("arithmetic is broken")
		}
	})

	code := s.Run()

	assert.Equal(t, 0, code)
	out := buf.String()
	assert.Contains(t, out, "=== RUN   suite/TestAdd\n")
	assert.Contains(t, out, "--- PASS: suite/TestAdd")
	assert.Contains(t, out, "ok        suite\n")
	assert.NotContains(t, out, "FAIL")
}

func TestRecoverableErrorContinuesBody(t *testing.T) {
	s, buf, _ := newTestSuite(t)
	reached := false
	s.Add("TestErr", func(tt *T) {
		tt.Errorf("first failure")
		tt.Errorf("second failure")
		reached = true
	})

	code := s.Run()

	assert.True(t, reached, "body must continue after Error")
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "--- FAIL: suite/TestErr")
	assert.Contains(t, buf.String(), "fail      suite\n")
}

func TestFatalStopsBody(t *testing.T) {
	s, buf, _ := newTestSuite(t)
	reached := false
	s.Add("TestBad", func(tt *T) {
		tt.Fatal("x")
		reached = true
	})

	code := s.Run()

	assert.False(t, reached, "no statement after Fatal may execute")
	assert.Equal(t, 1, code)
	out := buf.String()
	assert.Contains(t, out, "--- FAIL: suite/TestBad")
	// Failure dumps the accumulated log with the fixed indent.
	assert.Contains(t, out, "    ")
	assert.Contains(t, out, ": x")
}

func TestSkipDoesNotFail(t *testing.T) {
	s, buf, dataDir := newTestSuite(t)
	reached := false
	s.Add("TestSkip", func(tt *T) {
		tt.Skip("not on this platform")
		reached = true
	})

	code := s.Run()

	assert.False(t, reached, "no statement after Skip may execute")
	assert.Equal(t, 0, code)
	assert.Contains(t, buf.String(), "--- SKIP: suite/TestSkip")
	assert.Contains(t, buf.String(), "ok        suite\n")

	data, err := os.ReadFile(filepath.Join(dataDir, "suite", "TestSkip", "skip-count"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))
}

func TestPanicIsContained(t *testing.T) {
	s, buf, _ := newTestSuite(t)
	var order []string
	s.Add("TestPanics", func(tt *T) {
		order = append(order, "panics")
		panic("unset variable")
	})
	s.Add("TestAfter", func(tt *T) {
		order = append(order, "after")
	})

	code := s.Run()

	assert.Equal(t, []string{"panics", "after"}, order, "a fault must not stop sibling tests")
	assert.Equal(t, 1, code)
	out := buf.String()
	assert.Contains(t, out, "--- FAIL: suite/TestPanics")
	assert.Contains(t, out, "panic: unset variable")
	assert.Contains(t, out, "--- PASS: suite/TestAfter")
}

func TestDeclarationOrderPreserved(t *testing.T) {
	s, buf, _ := newTestSuite(t)
	for _, name := range []string{"TestC", "TestA", "TestB"} {
		s.Add(name, func(tt *T) {})
	}

	s.Run()

	out := buf.String()
	c := strings.Index(out, "=== RUN   suite/TestC")
	a := strings.Index(out, "=== RUN   suite/TestA")
	b := strings.Index(out, "=== RUN   suite/TestB")
	require.NotEqual(t, -1, c)
	require.NotEqual(t, -1, a)
	require.NotEqual(t, -1, b)
	assert.Less(t, c, a)
	assert.Less(t, a, b)
}

func TestFilterRestrictsExecution(t *testing.T) {
	s, buf, dataDir := newTestSuite(t, WithFilter("^suite/TestA"))
	ran := map[string]bool{}
	for _, name := range []string{"TestA1", "TestA2", "TestB1"} {
		name := name
		s.Add(name, func(tt *T) { ran[name] = true })
	}

	code := s.Run()

	assert.Equal(t, 0, code)
	assert.True(t, ran["TestA1"])
	assert.True(t, ran["TestA2"])
	assert.False(t, ran["TestB1"], "filtered-out test must not run")
	assert.NotContains(t, buf.String(), "TestB1")

	data, err := os.ReadFile(filepath.Join(dataDir, "suite", "test-count"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(data), "filtered-out tests are not counted")
}

func TestInvalidFilterFailsSuite(t *testing.T) {
	s, buf, _ := newTestSuite(t, WithFilter("["))
	s.Add("TestAdd", func(tt *T) {})

	code := s.Run()

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "invalid filter")
}

func TestListOnlyBypassesExecution(t *testing.T) {
	s, buf, _ := newTestSuite(t, WithListOnly(true), WithFilter("^suite/TestA"))
	executed := false
	s.Add("TestA", func(tt *T) { executed = true })
	s.Add("TestB", func(tt *T) { executed = true })

	code := s.Run()

	assert.Equal(t, 0, code)
	assert.False(t, executed)
	assert.Equal(t, "suite/TestA\n", buf.String())
}

func TestNoTestsRun(t *testing.T) {
	s, buf, _ := newTestSuite(t)

	code := s.Run()

	assert.Equal(t, 0, code)
	assert.Equal(t, "ok        suite [no tests run]\n", buf.String())
}

func TestDuplicateIDSurfacedAtSuiteEnd(t *testing.T) {
	s, buf, _ := newTestSuite(t)
	s.Add("TestAdd", func(tt *T) {})
	s.Add("TestAdd", func(tt *T) {})

	code := s.Run()

	assert.Equal(t, 1, code)
	out := buf.String()
	assert.Contains(t, out, "duplicate test id: suite/TestAdd")
	assert.Contains(t, out, "fail      suite\n")
}

func TestRerunResetsCounters(t *testing.T) {
	dataDir := t.TempDir()
	run := func() int {
		s := New("suite", WithDataDir(dataDir), WithNoColor(true))
		var buf bytes.Buffer
		s.SetOutput(&buf)
		s.Add("TestBad", func(tt *T) { tt.Errorf("always fails") })
		return s.Run()
	}

	assert.Equal(t, 1, run())
	assert.Equal(t, 1, run())

	data, err := os.ReadFile(filepath.Join(dataDir, "suite", "fail-count"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(data), "counters must not accumulate across runs")
}

func TestOnDiskLayout(t *testing.T) {
	s, _, dataDir := newTestSuite(t)
	s.Add("TestLayout", func(tt *T) {
		tt.MustRun(`printf hello`)
	})

	s.Run()

	base := filepath.Join(dataDir, "suite")
	for _, rel := range []string{
		"test-count",
		filepath.Join("TestLayout", "log"),
		filepath.Join("TestLayout", "start-time"),
		filepath.Join("TestLayout", "work"),
	} {
		_, err := os.Stat(filepath.Join(base, rel))
		assert.NoError(t, err, rel)
	}

	// Exactly one capture directory with the three stream files.
	runDirs, err := filepath.Glob(filepath.Join(base, "TestLayout", "run", "*-printf"))
	require.NoError(t, err)
	require.Len(t, runDirs, 1)
	for _, stream := range []string{"stdout", "stderr", "combined"} {
		_, err := os.Stat(filepath.Join(runDirs[0], stream))
		assert.NoError(t, err, stream)
	}
}

func TestLogIsDurable(t *testing.T) {
	s, buf, dataDir := newTestSuite(t)
	s.Add("TestQuiet", func(tt *T) {
		tt.Log("written through to disk")
	})

	require.Equal(t, 0, s.Run(), buf.String())

	// Passing tests stay silent on the console, but their log is still
	// persisted under the test directory.
	data, err := os.ReadFile(filepath.Join(dataDir, "suite", "TestQuiet", "log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "written through to disk")
	assert.Contains(t, string(data), "suite_test.go:")
}

func TestWorkspaceIsolation(t *testing.T) {
	dataDir := t.TempDir()
	artifact := filepath.Join(dataDir, "suite", "TestWrite", "work", "artifact.txt")

	run := func() {
		s := New("suite", WithDataDir(dataDir), WithNoColor(true))
		var buf bytes.Buffer
		s.SetOutput(&buf)
		s.Add("TestWrite", func(tt *T) {
			if _, err := os.Stat(artifact); err == nil {
				tt.Errorf("observed artifact from a prior run")
			}
			tt.MustRun(`echo data > artifact.txt`)
		})
		require.Equal(t, 0, s.Run(), buf.String())
	}

	run()
	run()
}

func TestMustRunFatalOnFailure(t *testing.T) {
	s, buf, _ := newTestSuite(t)
	reached := false
	s.Add("TestMust", func(tt *T) {
		tt.MustRun(`echo broken >&2; exit 9`)
		reached = true
	})

	code := s.Run()

	assert.False(t, reached)
	assert.Equal(t, 1, code)
	out := buf.String()
	assert.Contains(t, out, "exit code 9")
	assert.Contains(t, out, "broken")
}

func TestDuplicateInvocationIsFatal(t *testing.T) {
	s, buf, _ := newTestSuite(t)
	reached := false
	s.Add("TestDup", func(tt *T) {
		for i := 0; i < 2; i++ {
			tt.Run(`printf once`)
		}
		reached = true
	})

	code := s.Run()

	assert.False(t, reached, "duplicate capture must fail fast")
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "duplicate invocation")
}

func TestCaptureResultInBody(t *testing.T) {
	s, buf, _ := newTestSuite(t)
	s.Add("TestStreams", func(tt *T) {
		res := tt.Run(`printf out; printf err >&2`)
		if res.Stdout != "out" {
			tt.Errorf("stdout = %q", res.Stdout)
		}
		if res.Stderr != "err" {
			tt.Errorf("stderr = %q", res.Stderr)
		}
		if res.Combined != "outerr" {
			tt.Errorf("combined = %q", res.Combined)
		}
	})

	assert.Equal(t, 0, s.Run(), buf.String())
}

func TestNonTestPrefixSkipped(t *testing.T) {
	s, buf, dataDir := newTestSuite(t)
	executed := false
	s.Add("helper", func(tt *T) { executed = true })
	s.Add("TestReal", func(tt *T) {})

	code := s.Run()

	assert.Equal(t, 0, code)
	assert.False(t, executed)
	assert.NotContains(t, buf.String(), "helper")

	data, err := os.ReadFile(filepath.Join(dataDir, "suite", "test-count"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))
}

func TestVerboseDumpsSkippedLog(t *testing.T) {
	s, buf, _ := newTestSuite(t, WithVerbosity(1))
	s.Add("TestSkip", func(tt *T) {
		tt.Skip("missing dependency")
	})

	s.Run()

	assert.Contains(t, buf.String(), "missing dependency")
}

func TestPassingTestIsSilentByDefault(t *testing.T) {
	s, buf, _ := newTestSuite(t)
	s.Add("TestQuiet", func(tt *T) {
		tt.Log("chatty detail")
	})

	s.Run()

	assert.NotContains(t, buf.String(), "chatty detail")
}

func TestEndToEnd(t *testing.T) {
	s, buf, _ := newTestSuite(t)
	s.Add("TestAdd", func(tt *T) {
		if 1+1 != 2 {
			tt.Errorf("1+1 != 2")
		}
	})
	s.Add("TestBad", func(tt *T) {
		tt.Fatal("x")
	})

	code := s.Run()

	assert.Equal(t, 1, code)
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "=== RUN"))
	assert.Contains(t, out, "--- PASS: suite/TestAdd")
	assert.Contains(t, out, "--- FAIL: suite/TestBad")
	assert.Contains(t, out, ": x")
	assert.Contains(t, out, "fail      suite\n")
}
