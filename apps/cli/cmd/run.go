package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/shtest-dev/shtest/packages/core/config"
	"github.com/shtest-dev/shtest/packages/logging"
	"github.com/shtest-dev/shtest/packages/suite"
)

var runCmd = &cobra.Command{
	Use:   "run [directory]",
	Short: "Discover and run suite files",
	Long: `Recursively discover suite files beneath the given directory
(default: current directory) and run each as an isolated subprocess.

Examples:
  shtest run
  shtest run ./tests
  shtest run --run '^mathlib/TestAdd$'
  shtest run -v --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCommand,
}

// WatchRelimit caps how often watch mode re-runs after a burst of writes.
const WatchRelimit = time.Second

var (
	verboseFlag int // 0=off, 1=-v, 2=-vv (debug)
	debugFlag   bool
	filterFlag  string
	patternFlag string
	noTimeFlag  bool
	noColorFlag bool
	historyFlag bool
	watchFlag   bool
	configFlag  string
)

func init() {
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for debug detail)")
	runCmd.Flags().BoolVar(&debugFlag, "debug", getEnvBool("SHTEST_DEBUG", false), "Debug output, implies -vv (env: SHTEST_DEBUG)")
	runCmd.Flags().StringVarP(&filterFlag, "run", "r", getEnvString("SHTEST_RUN", ""), "Run only tests whose suite/name id matches the regex (env: SHTEST_RUN)")
	runCmd.Flags().StringVar(&patternFlag, "pattern", getEnvString("SHTEST_PATTERN", ""), "Suite-file naming convention glob (default *_test.sh) (env: SHTEST_PATTERN)")
	runCmd.Flags().BoolVar(&noTimeFlag, "no-time", getEnvBool("SHTEST_NOTIME", false), "Omit durations from status lines (env: SHTEST_NOTIME)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("SHTEST_NO_COLOR", false), "Disable colored output (env: SHTEST_NO_COLOR)")
	runCmd.Flags().BoolVar(&historyFlag, "history", getEnvBool("SHTEST_HISTORY", false), "Record runs in the history database (env: SHTEST_HISTORY)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch suite files and re-run on change")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("SHTEST_CONFIG", ""), "Path to config file (env: SHTEST_CONFIG)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

// settings is the merged flag/config view consumed by run and list.
type settings struct {
	verbosity int
	filter    string
	pattern   string
	dataDir   string
	noTime    bool
	noColor   bool
	history   bool
	watch     bool
}

func resolveSettings(cmd *cobra.Command) (*settings, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}

	s := &settings{
		verbosity: fileConfig.GetVerbose(),
		filter:    fileConfig.Filter,
		pattern:   fileConfig.Pattern,
		dataDir:   getEnvString("SHTEST_DATA_DIR", fileConfig.DataDir),
		noTime:    fileConfig.GetNoTime(),
		noColor:   fileConfig.GetNoColor(),
		history:   fileConfig.GetHistory(),
		watch:     fileConfig.GetWatch(),
	}

	// Flags (and their env-var defaults) win over the config file.
	if verboseFlag > 0 {
		s.verbosity = verboseFlag
	}
	if debugFlag && s.verbosity < logging.LevelDebug {
		s.verbosity = logging.LevelDebug
	}
	if cmd.Flags().Changed("run") || filterFlag != "" {
		s.filter = filterFlag
	}
	if cmd.Flags().Changed("pattern") || patternFlag != "" {
		s.pattern = patternFlag
	}
	if noTimeFlag {
		s.noTime = true
	}
	if noColorFlag {
		s.noColor = true
	}
	if historyFlag {
		s.history = true
	}
	if watchFlag {
		s.watch = true
	}
	return s, nil
}

// childEnv translates settings into the SHTEST_* variables the suite
// engine consumes inside each subprocess.
func (s *settings) childEnv() []string {
	env := []string{
		"SHTEST_VERBOSE=" + strconv.Itoa(s.verbosity),
		"SHTEST_RUN=" + s.filter,
	}
	if s.dataDir != "" {
		env = append(env, "SHTEST_DATA_DIR="+s.dataDir)
	}
	if s.noTime {
		env = append(env, "SHTEST_NOTIME=1")
	}
	if s.noColor {
		env = append(env, "SHTEST_NO_COLOR=1")
	}
	if s.history {
		env = append(env, "SHTEST_HISTORY=1")
	}
	return env
}

func runCommand(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	logger := logging.New(s.verbosity)

	runAll := func() (failed int, err error) {
		suites, err := suite.ScanDir(root, s.pattern, logger)
		if err != nil {
			return 0, err
		}
		if len(suites) == 0 {
			return 0, fmt.Errorf("no suite files found under %s", root)
		}

		for _, path := range suites {
			code, err := suite.InvokeSuite(path, s.childEnv(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				logger.Error("invoking suite", "path", path, "err", err)
				failed++
				continue
			}
			if code != 0 {
				failed++
			}
		}
		logger.Info("run complete", "suites", len(suites), "failed", failed)
		return failed, nil
	}

	failed, err := runAll()
	if err != nil {
		return err
	}

	if !s.watch {
		if failed > 0 {
			os.Exit(ExitTestFailure)
		}
		return nil
	}

	return watchAndRerun(cmd, root, s, logger, runAll)
}

// watchAndRerun re-runs the discovered suites whenever a matching file is
// written. A rate limiter collapses editor write bursts into one re-run.
func watchAndRerun(cmd *cobra.Command, root string, s *settings, logger *charmlog.Logger, runAll func() (int, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, root); err != nil {
		return err
	}

	pattern := s.pattern
	if pattern == "" {
		pattern = suite.DefaultPattern
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)")

	limiter := rate.NewLimiter(rate.Every(WatchRelimit), 1)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			matched, _ := filepath.Match(pattern, filepath.Base(event.Name))
			if !event.Has(fsnotify.Write) || !matched {
				continue
			}
			if !limiter.Allow() {
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nFile changed: %s\nRe-running suites...\n\n", event.Name)
			if _, err := runAll(); err != nil {
				logger.Error("re-run failed", "err", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "err", err)
		}
	}
}

func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".testdata" {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}
