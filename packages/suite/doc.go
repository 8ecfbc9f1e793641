// Package suite is the test-execution engine: it registers named test
// units, runs each in isolation in registration order, captures failures
// and skips through durable counters, and reports results in a go-test
// style textual protocol.
//
// A minimal suite:
//
//	s := suite.New("mathlib")
//	s.Add("TestAdd", func(t *suite.T) {
//		res := t.MustRun(`echo $((1 + 1))`)
//		if res.Stdout != "2\n" {
//			t.Errorf("got %q, want 2", res.Stdout)
//		}
//	})
//	os.Exit(s.Run())
//
// Each test body runs inside its own goroutine with fault interception at
// the boundary, so a panic, an explicit Fatal, or a failing command never
// stops the sibling tests. Every exit path funnels through the finalizer,
// which computes the terminal status from the test's error and skip
// counters. Counters are files under .testdata/, so a suite running as a
// child process and the parent aggregating its results need nothing more
// than the filesystem and exit codes to agree.
//
// There is no timeout around commands a test body runs: a hung command
// hangs the suite. That is a known, documented limitation.
package suite
