package checker

import (
	"context"

	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

// Manager runs a fixed list of checkers against one host/package pairing
// and aggregates their results.
type Manager struct {
	checkers []Checker
}

// NewManager creates a manager that will run checkers in the given order.
func NewManager(checkers ...Checker) *Manager {
	return &Manager{checkers: checkers}
}

// RunAll runs every checker in order, collecting all results even after a
// failure, since later checks may still carry useful diagnostic detail.
func (m *Manager) RunAll(ctx context.Context, pool *sshexec.Pool, host task.HostSpec, pkg task.PackageSpec) []Result {
	results := make([]Result, 0, len(m.checkers))
	for _, c := range m.checkers {
		results = append(results, c(ctx, pool, host, pkg))
	}
	return results
}

// HasErrors reports whether any result is a non-passing Error, the
// threshold the scheduler uses to decide whether to skip installation.
func HasErrors(results []Result) bool {
	for _, r := range results {
		if r.Level == LevelError && !r.Passed {
			return true
		}
	}
	return false
}

// Default returns the standard checker pipeline run before every install,
// grounded on the original checker suite's fixed ordering: connectivity
// first, then resources, then package manager and privilege checks.
// PortAvailability derives the ports to check from each package's own
// config, so no port list is threaded in here.
func Default() []Checker {
	return []Checker{
		Connectivity,
		SystemInfo,
		Memory(512),
		DiskSpace(1024),
		PortAvailability(),
		PackageManager,
		SudoPrivilege,
	}
}
