package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shtest-dev/shtest/packages/logging"
	"github.com/shtest-dev/shtest/packages/suite"
)

var listCmd = &cobra.Command{
	Use:   "list [directory]",
	Short: "List the test ids that would run, without executing them",
	Long: `Discover suite files and print the ordered suite/name ids that
would run after filtering, one per line.

Examples:
  shtest list
  shtest list ./tests --run '^mathlib/'`,
	Args: cobra.MaximumNArgs(1),
	RunE: listCommand,
}

func init() {
	listCmd.Flags().StringVarP(&filterFlag, "run", "r", getEnvString("SHTEST_RUN", ""), "List only tests whose id matches the regex (env: SHTEST_RUN)")
	listCmd.Flags().StringVar(&patternFlag, "pattern", getEnvString("SHTEST_PATTERN", ""), "Suite-file naming convention glob (default *_test.sh) (env: SHTEST_PATTERN)")
	listCmd.Flags().StringVar(&configFlag, "config", getEnvString("SHTEST_CONFIG", ""), "Path to config file (env: SHTEST_CONFIG)")
}

func listCommand(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	logger := logging.New(s.verbosity)

	suites, err := suite.ScanDir(root, s.pattern, logger)
	if err != nil {
		return err
	}
	if len(suites) == 0 {
		return fmt.Errorf("no suite files found under %s", root)
	}

	env := append(s.childEnv(), "SHTEST_LIST=1")
	for _, path := range suites {
		if _, err := suite.InvokeSuite(path, env, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
			logger.Error("listing suite", "path", path, "err", err)
		}
	}
	return nil
}
