package suite

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	charmlog "github.com/charmbracelet/log"

	"github.com/shtest-dev/shtest/packages/workspace"
)

// Token is the engine's identifying token. A candidate file that does not
// contain it is assumed unrelated and skipped, so a stray executable
// matching the glob is never invoked by accident.
const Token = "shtest"

// DefaultPattern is the test-file naming convention for directory-scan
// discovery.
const DefaultPattern = "*_test.sh"

// ScanDir walks root in filesystem enumeration order and returns the
// suite files to invoke as subprocesses. Non-executable or token-less
// candidates are skipped with a warning, not a failure.
func ScanDir(root, pattern string, logger *charmlog.Logger) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}

	var suites []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == workspace.DefaultRoot {
				return filepath.SkipDir
			}
			return nil
		}
		matched, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if !matched {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode()&0o111 == 0 {
			logger.Warn("skipping non-executable suite file", "path", path)
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !bytes.Contains(content, []byte(Token)) {
			logger.Warn("skipping unrelated file (no engine token)", "path", path)
			return nil
		}

		suites = append(suites, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return suites, nil
}

// InvokeSuite runs one discovered suite file as an opaque subprocess,
// streaming its output through. Configuration travels via SHTEST_*
// environment variables; the result comes back as the child's exit code
// and its counters under the data root.
func InvokeSuite(path string, extraEnv []string, stdout, stderr io.Writer) (int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	cmd := exec.Command(abs)
	cmd.Dir = filepath.Dir(abs)
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err = cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, fmt.Errorf("invoking suite %s: %w", path, err)
}
