package sshexec

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Probe bundles the read-only facts the checker framework needs about a
// host: its kernel/arch, free memory, free disk on the install path, and
// whether a given port is already bound. Each field is populated
// best-effort; a failed command leaves its field zeroed rather than
// aborting the whole probe, so one missing tool never blocks every check.
type Probe struct {
	OS           string
	Arch         string
	MemAvailKB   int64
	DiskAvailKB  int64
	PortsBound   map[int]bool
	SudoWorks    bool
}

// ProbeHost runs the fixed set of read-only commands a checker needs
// against one host, using config's credentials.
func ProbeHost(ctx context.Context, pool *Pool, config *ConnectionConfig, installPath string, ports []int) (*Probe, error) {
	p := &Probe{PortsBound: make(map[int]bool)}

	if res, err := pool.Run(ctx, config, "uname -sm"); err == nil && res.ExitCode == 0 {
		p.OS, p.Arch, _ = ParseUnameOutput(res.Stdout)
	}

	if res, err := pool.Run(ctx, config, "cat /proc/meminfo"); err == nil && res.ExitCode == 0 {
		p.MemAvailKB = parseMemAvailable(res.Stdout)
	}

	if installPath != "" {
		clean, err := ValidateShellPath(installPath)
		if err == nil {
			if res, err := pool.Run(ctx, config, fmt.Sprintf("df -Pk %s 2>/dev/null | tail -1", ShellQuote(clean))); err == nil && res.ExitCode == 0 {
				p.DiskAvailKB = parseDfAvailable(res.Stdout)
			}
		}
	}

	for _, port := range ports {
		cmd := fmt.Sprintf("ss -ltn 2>/dev/null | awk '{print $4}' | grep -E ':%d$' | head -1", port)
		if res, err := pool.Run(ctx, config, cmd); err == nil {
			p.PortsBound[port] = strings.TrimSpace(res.Stdout) != ""
		}
	}

	if res, err := pool.Run(ctx, config, "sudo -n true"); err == nil {
		p.SudoWorks = res.ExitCode == 0
	}

	return p, nil
}

// ParseUnameOutput converts `uname -sm` output (e.g. "Linux x86_64") into a
// normalized (os, arch) pair.
func ParseUnameOutput(output string) (osName, arch string, err error) {
	fields := strings.Fields(strings.TrimSpace(output))
	if len(fields) != 2 {
		return "", "", fmt.Errorf("unexpected uname output: %q", output)
	}
	osName = strings.ToLower(fields[0])
	switch fields[1] {
	case "x86_64", "amd64":
		arch = "amd64"
	case "aarch64", "arm64":
		arch = "arm64"
	default:
		arch = fields[1]
	}
	return osName, arch, nil
}

// parseMemAvailable extracts MemAvailable (kB) from /proc/meminfo text.
func parseMemAvailable(meminfo string) int64 {
	for _, line := range strings.Split(meminfo, "\n") {
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb
	}
	return 0
}

// parseDfAvailable extracts the available-space column (kB) from one
// `df -Pk` data row.
func parseDfAvailable(line string) int64 {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return 0
	}
	kb, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return 0
	}
	return kb
}
