// Package installer drives one piece of software through its
// pre-check/install/post-config/verify lifecycle on a single host, via
// generated Ansible playbooks.
package installer

import (
	"context"
	"fmt"

	"hostfleet/pkg/ansible"
	"hostfleet/pkg/task"
)

// StepResult is what one lifecycle phase reports back to the scheduler.
type StepResult struct {
	Status  string // "success", "skipped"
	Message string
	Details map[string]string
}

// Installer drives one software package through its full lifecycle on one
// host. Implementations hold no per-call state: every method takes the
// host/package it operates on as arguments.
type Installer interface {
	Name() string
	SupportsVersion(version string) bool
	PreCheck(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (StepResult, error)
	Install(ctx context.Context, host task.HostSpec, pkg task.PackageSpec, onEvent ansible.EventHandler) (StepResult, error)
	PostConfig(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (StepResult, error)
	Verify(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (StepResult, error)
}

// Error is a non-fatal installer failure: the scheduler fails only the
// task that raised it, never the whole run.
type Error struct {
	Package string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("installer %s: %s: %v", e.Package, e.Reason, e.Err)
	}
	return fmt.Sprintf("installer %s: %s", e.Package, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func newInstallError(pkgName, reason string, err error) *Error {
	return &Error{Package: pkgName, Reason: reason, Err: err}
}
