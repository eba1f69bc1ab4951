package checker

import (
	"context"
	"fmt"
	"strings"

	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

// SudoPrivilege confirms the super credential set can actually escalate on
// the host, and flags a mismatch if it lands as an unexpected user.
func SudoPrivilege(ctx context.Context, pool *sshexec.Pool, host task.HostSpec, pkg task.PackageSpec) Result {
	res, err := runCommand(ctx, pool, host, "whoami", true)
	if err != nil {
		return errorResult("Sudo Privileges", "failed to execute command with elevated privileges", err)
	}
	if res.ExitCode != 0 {
		return Result{
			Name: "Sudo Privileges", Level: LevelError, Passed: false,
			Message: "failed to execute command with elevated privileges",
			Details: map[string]string{"error": res.Stderr},
		}
	}

	return sudoResult(strings.TrimSpace(res.Stdout), host.Super.User)
}

// sudoResult is the pure decision behind SudoPrivilege: a mismatch between
// the user the elevated session actually lands as and the configured super
// user is always an Error, never a Warning, since it means the super
// credential set can't be trusted to do what an install step expects.
func sudoResult(actualUser, expectedUser string) Result {
	expected := expectedUser
	if expected == "" {
		expected = "root"
	}
	if actualUser == expected {
		return Result{Name: "Sudo Privileges", Level: LevelInfo, Passed: true,
			Message: fmt.Sprintf("privileges confirmed (running as %s)", actualUser),
			Details: map[string]string{"user": actualUser}}
	}
	return Result{Name: "Sudo Privileges", Level: LevelError, Passed: false,
		Message: fmt.Sprintf("elevated session runs as %s instead of %s", actualUser, expected),
		Details: map[string]string{"user": actualUser, "expected": expected}}
}
