package checker

import (
	"context"
	"fmt"

	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

// Connectivity confirms the owner credential set can reach the host over
// SSH before any other check runs.
func Connectivity(ctx context.Context, pool *sshexec.Pool, host task.HostSpec, pkg task.PackageSpec) Result {
	res, err := runCommand(ctx, pool, host, "true", false)
	if err != nil {
		return errorResult("SSH Connectivity", fmt.Sprintf("failed to connect: %v", err), err)
	}
	return connectivityResult(res, host)
}

// connectivityResult is the pure decision behind Connectivity, given the
// already-executed probe result.
func connectivityResult(res *sshexec.CommandResult, host task.HostSpec) Result {
	if res.ExitCode != 0 {
		return Result{
			Name:    "SSH Connectivity",
			Level:   LevelError,
			Passed:  false,
			Message: "SSH session established but command failed",
			Details: map[string]string{"stderr": res.Stderr},
		}
	}
	return Result{
		Name:    "SSH Connectivity",
		Level:   LevelInfo,
		Passed:  true,
		Message: fmt.Sprintf("successfully connected to %s:%d", host.Host, host.Port),
		Details: map[string]string{"host": host.Host, "user": host.Owner.User},
	}
}
