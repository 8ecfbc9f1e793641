package suite

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
)

// Level classifies a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

// LogEntry is one line in a test's log buffer. File and Line point at the
// call site of the logging helper, not the helper itself.
type LogEntry struct {
	Level   Level
	File    string
	Line    int
	Message string
}

// String renders the entry the way go test renders t.Log output.
func (e LogEntry) String() string {
	if e.File == "" {
		return e.Message
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
}

// logBuffer is the append-only log owned exclusively by one test. Every
// entry is also written through to the durable sink (the test's log file)
// as it happens, so the log survives even if the process dies mid-test.
type logBuffer struct {
	entries []LogEntry
	sink    io.Writer
}

// append records a message attributed to the call site skip frames up.
// A helper that wants its own caller's location passes 2; skip 0 records
// no location (used for faults with no meaningful call site).
func (b *logBuffer) append(level Level, skip int, format string, args ...any) {
	entry := LogEntry{
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	}
	if skip > 0 {
		if _, file, line, ok := runtime.Caller(skip); ok {
			entry.File = filepath.Base(file)
			entry.Line = line
		}
	}
	b.entries = append(b.entries, entry)
	if b.sink != nil {
		fmt.Fprintln(b.sink, entry.String())
	}
}
