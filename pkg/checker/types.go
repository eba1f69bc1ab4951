// Package checker runs pre-installation health checks against a host
// before any installer touches it: connectivity, resources, package
// manager availability, and privilege escalation.
package checker

import (
	"context"
	"fmt"
	"strconv"

	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

// Level classifies how serious a failed check is.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Result is the outcome of one check.
type Result struct {
	Name    string
	Level   Level
	Passed  bool
	Message string
	Details map[string]string
}

// Checker inspects one host/package pairing and reports a Result. Checkers
// are pure functions of their inputs: no checker holds state across calls,
// so the same checker can run concurrently across many hosts.
type Checker func(ctx context.Context, pool *sshexec.Pool, host task.HostSpec, pkg task.PackageSpec) Result

// runCommand executes command on host, using the super credential set when
// become is true (mirroring Ansible's become_user escalation) and the owner
// credential set otherwise.
func runCommand(ctx context.Context, pool *sshexec.Pool, host task.HostSpec, command string, become bool) (*sshexec.CommandResult, error) {
	cred := host.Owner
	if become {
		cred = host.Super
	}
	cfg := &sshexec.ConnectionConfig{
		Address:  host.Host,
		Port:     host.Port,
		User:     cred.User,
		KeyPath:  cred.KeyPath,
		Password: cred.Pass,
	}
	return pool.Run(ctx, cfg, command)
}

func errorResult(name, message string, err error) Result {
	return Result{
		Name:    name,
		Level:   LevelError,
		Passed:  false,
		Message: message,
		Details: map[string]string{"error": err.Error()},
	}
}

// warningResult is errorResult's non-gating counterpart, for checkers (like
// Memory) whose FAIL level is Warning: a probe failure here must never trip
// HasErrors, since it isn't itself evidence the host is unfit to install on.
func warningResult(name, message string, err error) Result {
	return Result{
		Name:    name,
		Level:   LevelWarning,
		Passed:  false,
		Message: message,
		Details: map[string]string{"error": err.Error()},
	}
}

// configInt reads an integer out of a package's loosely-typed config map,
// falling back to def when the key is absent or not parseable as an int
// (config values arrive from YAML as int, float64, or string depending on
// how the author wrote them).
func configInt(pkg task.PackageSpec, key string, def int) int {
	v, ok := pkg.Config[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(fmt.Sprintf("%v", v))
	if err != nil {
		return def
	}
	return n
}
