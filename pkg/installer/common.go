package installer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"hostfleet/pkg/ansible"
	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

// base holds the collaborators every concrete installer needs: an SSH pool
// for lightweight pre-check/verify probes, and an Ansible executor for the
// actual install step.
type base struct {
	pool   *sshexec.Pool
	exec   *ansible.Executor
	dryRun bool
}

func newBase(pool *sshexec.Pool, exec *ansible.Executor, dryRun bool) base {
	return base{pool: pool, exec: exec, dryRun: dryRun}
}

func (b base) probe(ctx context.Context, host task.HostSpec, command string, become bool) (*sshexec.CommandResult, error) {
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
	return b.pool.Run(ctx, cfg, command)
}

// availableDiskMB checks free space on the parent directory of installPath,
// matching every installer's pre_check disk probe.
func (b base) availableDiskMB(ctx context.Context, host task.HostSpec, installPath string) (int, error) {
	clean, err := sshexec.ValidateShellPath(parentDir(installPath))
	if err != nil {
		return 0, err
	}
	res, err := b.probe(ctx, host, fmt.Sprintf("df -BM %s | tail -1 | awk '{print $4}'", sshexec.ShellQuote(clean)), true)
	if err != nil {
		return 0, err
	}
	if res.ExitCode != 0 {
		return 0, fmt.Errorf("df failed: %s", res.Stderr)
	}
	return strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(res.Stdout), "M"))
}

// versionMatches reports whether a version-string probe output contains the
// declared version, the shared pre_check-skip predicate every installer
// uses to decide an already-installed, already-matching package needs no
// further work; Java's and Python's Verify use it to confirm the installed
// version.
func versionMatches(probeOutput, declaredVersion string) bool {
	return declaredVersion != "" && strings.Contains(probeOutput, declaredVersion)
}

func parentDir(path string) string {
	idx := strings.LastIndex(strings.TrimRight(path, "/"), "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}

// runInstallPlaybook materializes and runs a single-play, single-host
// playbook carrying tasks. It connects with the owner credential bundle and
// escalates to the super user through become (installers need root to write
// into system paths).
func (b base) runInstallPlaybook(ctx context.Context, host task.HostSpec, pkg task.PackageSpec, name string, tasks []ansible.Task, extraVars map[string]string, onEvent ansible.EventHandler) (*ansible.ExecuteResult, error) {
	pb := ansible.SingleTaskPlaybook(name, "target", true, tasks)
	inv := ansible.FromHost(host, host.Owner)

	opts := ansible.ExecuteOptions{
		ExtraVars:  extraVars,
		Check:      b.dryRun,
		BecomeUser: host.Super.User,
		User:       host.Owner.User,
		PrivateKey: host.Owner.KeyPath,
	}

	return b.exec.Execute(ctx, pb, inv, opts, onEvent)
}

// commonExtraVars returns the extra-vars every installer's Install step
// passes regardless of package, per spec.md's playbook contract.
func commonExtraVars(pkg task.PackageSpec) map[string]string {
	vars := map[string]string{
		"version":      pkg.Version,
		"install_path": pkg.InstallPath,
		"source":       string(pkg.Source),
	}
	if pkg.SourcePath != "" {
		vars["source_path"] = pkg.SourcePath
	}
	return vars
}
