package cmd

// Exit codes for the shtest CLI
const (
	// ExitSuccess indicates all suites passed (or no tests matched)
	ExitSuccess = 0

	// ExitTestFailure indicates at least one test failed
	ExitTestFailure = 1

	// ExitConfigError indicates a configuration or discovery error
	ExitConfigError = 3

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
