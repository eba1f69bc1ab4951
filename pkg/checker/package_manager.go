package checker

import (
	"context"

	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

// PackageManager confirms a supported package manager is present and
// working. When none is found, the severity depends on the package's
// source: a "repository" install cannot proceed without one, so that case
// escalates from warning to error, while "local"/"url" installs can still
// proceed without a package manager and only warn.
func PackageManager(ctx context.Context, pool *sshexec.Pool, host task.HostSpec, pkg task.PackageSpec) Result {
	for _, binary := range []string{"apt-get", "dnf", "yum"} {
		if manager, ok := detectManager(ctx, pool, host, binary); ok {
			return packageManagerResult(manager, pkg.Source)
		}
	}
	return packageManagerResult("", pkg.Source)
}

// packageManagerResult is the pure decision behind PackageManager: given
// which manager (if any) was detected, and the package's source, decide the
// result. A missing manager only fails the check outright when source is
// "repository", since local/url installs don't depend on one.
func packageManagerResult(manager string, source task.Source) Result {
	if manager != "" {
		return Result{Name: "Package Manager", Level: LevelInfo, Passed: true,
			Message: manager + " is available and working", Details: map[string]string{"manager": manager}}
	}

	level := LevelWarning
	if source == task.SourceRepository {
		level = LevelError
	}
	return Result{
		Name:    "Package Manager",
		Level:   level,
		Passed:  false,
		Message: "no supported package manager found (apt-get, dnf, yum)",
	}
}

func detectManager(ctx context.Context, pool *sshexec.Pool, host task.HostSpec, binary string) (string, bool) {
	which, err := runCommand(ctx, pool, host, "which "+binary, false)
	if err != nil || which.ExitCode != 0 {
		return "", false
	}
	version, err := runCommand(ctx, pool, host, binary+" --version", true)
	if err != nil || version.ExitCode != 0 {
		return "", false
	}
	return binary, true
}
