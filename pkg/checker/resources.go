package checker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

// Memory builds a checker that warns (but does not fail) when available
// memory falls below minMemoryMB, or when the probe itself fails.
func Memory(minMemoryMB int) Checker {
	return func(ctx context.Context, pool *sshexec.Pool, host task.HostSpec, pkg task.PackageSpec) Result {
		res, err := runCommand(ctx, pool, host, "free -m | grep Mem | awk '{print $7}'", false)
		if err != nil {
			return warningResult("Memory", "failed to check memory", err)
		}
		if res.ExitCode != 0 {
			return warningResult("Memory", "failed to check memory", fmt.Errorf("%s", res.Stderr))
		}

		availableMB, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
		if err != nil {
			return warningResult("Memory", "could not parse memory output", err)
		}

		return memoryResult(availableMB, minMemoryMB)
	}
}

// memoryResult is the pure decision behind Memory: never Error-level,
// since low memory only ever warns.
func memoryResult(availableMB, minMemoryMB int) Result {
	details := map[string]string{
		"available_mb": strconv.Itoa(availableMB),
		"required_mb":  strconv.Itoa(minMemoryMB),
	}
	if availableMB >= minMemoryMB {
		return Result{Name: "Memory", Level: LevelInfo, Passed: true,
			Message: fmt.Sprintf("sufficient memory: %dMB available (required %dMB)", availableMB, minMemoryMB),
			Details: details}
	}
	return Result{Name: "Memory", Level: LevelWarning, Passed: false,
		Message: fmt.Sprintf("low memory: %dMB available (recommended %dMB)", availableMB, minMemoryMB),
		Details: details}
}

// DiskSpace builds a checker that fails when free space on the parent
// directory of pkg.InstallPath falls below defaultMinSpaceMB, or below
// pkg.Config["min_free"] when the package overrides it.
func DiskSpace(defaultMinSpaceMB int) Checker {
	return func(ctx context.Context, pool *sshexec.Pool, host task.HostSpec, pkg task.PackageSpec) Result {
		minSpaceMB := configInt(pkg, "min_free", defaultMinSpaceMB)

		dir := parentDir(pkg.InstallPath)
		clean, err := sshexec.ValidateShellPath(dir)
		if err != nil {
			return errorResult("Disk Space", "invalid install_path", err)
		}

		cmd := fmt.Sprintf("df -BM %s | tail -1 | awk '{print $4}'", sshexec.ShellQuote(clean))
		res, err := runCommand(ctx, pool, host, cmd, true)
		if err != nil {
			return errorResult("Disk Space", "failed to check disk space", err)
		}
		if res.ExitCode != 0 {
			return errorResult("Disk Space", "failed to check disk space", fmt.Errorf("%s", res.Stderr))
		}

		availableStr := strings.TrimSuffix(strings.TrimSpace(res.Stdout), "M")
		availableMB, err := strconv.Atoi(availableStr)
		if err != nil {
			return errorResult("Disk Space", "could not parse disk space output", err)
		}

		return diskResult(availableMB, minSpaceMB, clean)
	}
}

// diskResult is the pure decision behind DiskSpace: unlike Memory, running out
// of disk mid-install is fatal, so the FAIL branch stays Error-level.
func diskResult(availableMB, minSpaceMB int, path string) Result {
	details := map[string]string{
		"available_mb": strconv.Itoa(availableMB),
		"required_mb":  strconv.Itoa(minSpaceMB),
		"path":         path,
	}
	if availableMB >= minSpaceMB {
		return Result{Name: "Disk Space", Level: LevelInfo, Passed: true,
			Message: fmt.Sprintf("sufficient disk space: %dMB available on %s (required %dMB)", availableMB, path, minSpaceMB),
			Details: details}
	}
	return Result{Name: "Disk Space", Level: LevelError, Passed: false,
		Message: fmt.Sprintf("insufficient disk space: %dMB available on %s (required %dMB)", availableMB, path, minSpaceMB),
		Details: details}
}

// parentDir returns the parent directory of path, matching the installer
// package's own disk probe so both layers agree on what "disk space for
// this package" means.
func parentDir(path string) string {
	idx := strings.LastIndex(strings.TrimRight(path, "/"), "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}

// SystemInfo gathers OS, kernel, CPU, and memory facts for diagnostics. It
// never fails the run: missing facts just shrink the details map.
func SystemInfo(ctx context.Context, pool *sshexec.Pool, host task.HostSpec, pkg task.PackageSpec) Result {
	info := make(map[string]string)

	if res, err := runCommand(ctx, pool, host, "cat /etc/os-release", false); err == nil && res.ExitCode == 0 {
		for _, line := range strings.Split(res.Stdout, "\n") {
			if key, value, ok := strings.Cut(line, "="); ok {
				info[strings.ToLower(key)] = strings.Trim(value, `"`)
			}
		}
	}
	if res, err := runCommand(ctx, pool, host, "uname -r", false); err == nil && res.ExitCode == 0 {
		info["kernel"] = strings.TrimSpace(res.Stdout)
	}
	if res, err := runCommand(ctx, pool, host, "nproc", false); err == nil && res.ExitCode == 0 {
		info["cpu_cores"] = strings.TrimSpace(res.Stdout)
	}
	if res, err := runCommand(ctx, pool, host, "free -m | grep Mem | awk '{print $2}'", false); err == nil && res.ExitCode == 0 {
		info["total_memory_mb"] = strings.TrimSpace(res.Stdout)
	}

	prettyName := info["pretty_name"]
	if prettyName == "" {
		prettyName = "unknown"
	}
	kernel := info["kernel"]
	if kernel == "" {
		kernel = "unknown"
	}

	return Result{
		Name:    "System Info",
		Level:   LevelInfo,
		Passed:  true,
		Message: fmt.Sprintf("system: %s, kernel: %s", prettyName, kernel),
		Details: info,
	}
}
