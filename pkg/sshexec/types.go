// Package sshexec runs commands and transfers files on remote hosts over
// SSH, and on the local machine for "host: localhost" deployments. It is
// the sole place in the engine that opens a network connection to a target.
package sshexec

import (
	"context"
	"time"
)

// ConnectionConfig holds the parameters needed to reach one host under one
// credential set. Checkers and installers build a ConnectionConfig per call
// from a task.HostSpec's Owner or Super CredentialSet, so the same pool can
// serve both privilege levels for a single host.
type ConnectionConfig struct {
	Address        string
	Port           int
	User           string
	KeyPath        string
	Password       string
	Timeout        time.Duration
	KnownHostsPath string
}

// CommandResult holds the outcome of a single command execution.
type CommandResult struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Error    error
}

// UploadOptions describes a file transfer to a remote path.
type UploadOptions struct {
	LocalPath  string
	RemotePath string
	Mode       uint32
	Owner      string
	Group      string
}

// Runner executes commands and transfers files against one target.
type Runner interface {
	Run(ctx context.Context, command string) (*CommandResult, error)
	RunScript(ctx context.Context, script string) (*CommandResult, error)
	Upload(ctx context.Context, opts UploadOptions) error
	Close() error
}
