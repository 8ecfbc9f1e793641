// Package capture runs commands on behalf of a test body and multiplexes
// their output into three independently readable streams: stdout only,
// stderr only, and the true chronological interleaving of both.
//
// While a command runs its output is simultaneously echoed to a live sink,
// so a human watching verbose output sees progress rather than a stall
// followed by a dump. Results are persisted under the test's run/
// directory as run/<line>-<cmd>/{stdout,stderr,combined}; a second
// invocation from the same call site with the same command is a usage
// error, because it would collide with the first result directory.
//
// Plain argv commands run through os/exec. Shell snippets run through the
// embedded mvdan.cc/sh interpreter with pipefail set, so a failing stage
// in the middle of a pipeline is never masked by a later successful one.
//
// There is no timeout around a running command: a hung command hangs the
// suite.
package capture
