package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shtest-dev/shtest/packages/history"
	"github.com/shtest-dev/shtest/packages/workspace"
)

var historyCmd = &cobra.Command{
	Use:   "history [suite]",
	Short: "Show recent suite runs from the history database",
	Long: `Show recent runs recorded with --history, newest first.
Without a suite name, runs across all suites are shown.

Examples:
  shtest history
  shtest history mathlib --limit 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: historyCommand,
}

var (
	historyLimitFlag int
	historyDirFlag   string
)

func init() {
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Maximum number of runs to show")
	historyCmd.Flags().StringVar(&historyDirFlag, "data-dir", getEnvString("SHTEST_DATA_DIR", workspace.DefaultRoot), "Data root holding the history database (env: SHTEST_DATA_DIR)")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	suiteName := ""
	if len(args) == 1 {
		suiteName = args[0]
	}

	db, err := history.Open(filepath.Join(historyDirFlag, "history.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.Recent(suiteName, historyLimitFlag)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no recorded runs")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for _, rec := range records {
		status := green("ok  ")
		if rec.Failed() {
			status = red("fail")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %-20s tests=%d fails=%d skips=%d (%dms)\n",
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			status, rec.Suite, rec.Tests, rec.Fails, rec.Skips,
			rec.Duration.Milliseconds())
	}
	return nil
}
