// Package logging configures the harness's own diagnostic logger. The
// diagnostic stream goes to stderr so it never pollutes the
// machine-parseable test protocol on stdout.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// Verbosity levels accepted by New. 0 is warnings only, 1 adds info,
// 2 and above adds debug traces.
const (
	LevelQuiet   = 0
	LevelVerbose = 1
	LevelDebug   = 2
)

// New returns a logger for harness diagnostics (discovery warnings,
// filtered-test traces) at the given verbosity.
func New(verbosity int) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
	})
	switch {
	case verbosity >= LevelDebug:
		logger.SetLevel(log.DebugLevel)
	case verbosity >= LevelVerbose:
		logger.SetLevel(log.InfoLevel)
	default:
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}
