// Package task defines the deployment data model: the hosts and software
// packages read from configuration, and the per-(host,package) tasks the
// scheduler drives through their lifecycle.
package task

import (
	"fmt"
	"time"
)

// CredentialSet is one SSH identity: a username plus either a password or a
// private key path (at least one of Pass/KeyPath must be set).
type CredentialSet struct {
	User    string
	Pass    string
	KeyPath string
}

// HasCredential reports whether the set carries a usable password or key.
func (c CredentialSet) HasCredential() bool {
	return c.Pass != "" || c.KeyPath != ""
}

// HostSpec is one target node: its connection details plus the two
// credential sets used to reach it (an unprivileged owner account for most
// work, and a privileged super account for installs that need root).
type HostSpec struct {
	Name  string
	Host  string
	Port  int
	Owner CredentialSet
	Super CredentialSet
}

// Source identifies where an installer should obtain package bits from.
type Source string

const (
	SourceRepository Source = "repository"
	SourceLocal      Source = "local"
	SourceURL        Source = "url"
)

// PackageSpec is one piece of software to install on a host.
type PackageSpec struct {
	Name        string
	Version     string
	InstallPath string
	Source      Source
	SourcePath  string
	Config      map[string]any
}

// Status is a task's lifecycle state. Transitions are monotonic: once a task
// leaves Pending it never returns to it, and once it reaches a terminal
// state (Completed/Failed/Skipped) it never changes again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether s is one a task cannot leave.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Task tracks one (host, package) unit of work end to end.
type Task struct {
	ID      string
	Host    string
	Package string
	Version string

	Status       Status
	Progress     int
	StartedAt    time.Time
	EndedAt      time.Time
	ErrorMessage string
}

// NewTask builds a pending task with the conventional ID used across the
// engine, logs, and replay files: "{host}_{package}_{version}".
func NewTask(host, pkg, version string) *Task {
	return &Task{
		ID:      fmt.Sprintf("%s_%s_%s", host, pkg, version),
		Host:    host,
		Package: pkg,
		Version: version,
		Status:  StatusPending,
	}
}

// Start transitions a pending task to running. Calling it on a task that is
// not pending is a programmer error and panics, since the scheduler is the
// sole owner of a task's lifecycle and must never double-start it.
func (t *Task) Start() {
	t.mustBe(StatusPending)
	t.Status = StatusRunning
	t.Progress = 0
	t.StartedAt = time.Now()
}

// Complete transitions a running task to completed.
func (t *Task) Complete() {
	t.mustBe(StatusRunning)
	t.Status = StatusCompleted
	t.Progress = 100
	t.EndedAt = time.Now()
}

// Fail transitions a running task to failed, recording why.
func (t *Task) Fail(reason string) {
	t.mustBe(StatusRunning)
	t.Status = StatusFailed
	t.EndedAt = time.Now()
	t.ErrorMessage = reason
}

// Skip transitions a task to skipped, either before it ever ran (an earlier
// task on the same host already failed) or after a running installer's
// pre_check reports the package is already satisfied.
func (t *Task) Skip(reason string) {
	if t.Status != StatusPending && t.Status != StatusRunning {
		panic(fmt.Sprintf("task %s: invalid transition from %s (expected pending or running)", t.ID, t.Status))
	}
	t.Status = StatusSkipped
	t.EndedAt = time.Now()
	t.ErrorMessage = reason
}

// SetProgress clamps and records progress on a running task.
func (t *Task) SetProgress(progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	t.Progress = progress
}

// Duration returns how long the task has run, or has been running so far if
// it has not yet ended. Zero if it has not started.
func (t *Task) Duration() time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	if t.EndedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.EndedAt.Sub(t.StartedAt)
}

func (t *Task) mustBe(want Status) {
	if t.Status != want {
		panic(fmt.Sprintf("task %s: invalid transition from %s (expected %s)", t.ID, t.Status, want))
	}
}
