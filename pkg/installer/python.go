package installer

import (
	"context"
	"fmt"
	"strings"

	"hostfleet/pkg/ansible"
	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

// Python installs a Python interpreter through an in-memory playbook built
// from installTasks.
type Python struct {
	base
}

func NewPython(pool *sshexec.Pool, exec *ansible.Executor, dryRun bool) *Python {
	return &Python{base: newBase(pool, exec, dryRun)}
}

func (p *Python) Name() string { return "python" }

// SupportsVersion accepts any Python 3 release, plus the 2.7 maintenance
// line still carried in legacy environments.
func (p *Python) SupportsVersion(version string) bool {
	if version == "" {
		return false
	}
	if strings.SplitN(version, ".", 2)[0] == "3" {
		return true
	}
	return version == "2.7" || strings.HasPrefix(version, "2.7.")
}

func (p *Python) PreCheck(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (StepResult, error) {
	details := map[string]string{}

	verRes, _ := p.probe(ctx, host, pythonVersionCommand(pkg), false)
	if verRes != nil && verRes.ExitCode == 0 {
		version := strings.TrimSpace(verRes.Stdout)
		details["python_version"] = version
		if versionMatches(version, pkg.Version) {
			return StepResult{
				Status:  "skipped",
				Message: fmt.Sprintf("python already installed and matches version %s", pkg.Version),
				Details: details,
			}, nil
		}
	}

	availMB, err := p.availableDiskMB(ctx, host, pkg.InstallPath)
	if err != nil {
		return StepResult{}, newInstallError(p.Name(), "could not determine available disk space", err)
	}
	if availMB < 300 {
		return StepResult{}, newInstallError(p.Name(), fmt.Sprintf("insufficient disk space: %dMB available, 300MB required", availMB), nil)
	}
	details["available_disk_mb"] = fmt.Sprintf("%d", availMB)

	return StepResult{Status: "success", Message: "pre-check passed", Details: details}, nil
}

func (p *Python) Install(ctx context.Context, host task.HostSpec, pkg task.PackageSpec, onEvent ansible.EventHandler) (StepResult, error) {
	vars := commonExtraVars(pkg)
	vars["python_install_pip"] = "true"
	vars["python_install_venv"] = "true"

	result, err := p.runInstallPlaybook(ctx, host, pkg, "install-python", p.installTasks(pkg), vars, onEvent)
	if err != nil {
		return StepResult{}, newInstallError(p.Name(), "playbook execution failed", err)
	}
	if !result.Success {
		return StepResult{}, newInstallError(p.Name(), fmt.Sprintf("playbook reported failures: %+v", result.Stats), nil)
	}
	return StepResult{Status: "success", Message: "python installed via playbook"}, nil
}

// installTasks is split out from Install so tests can render the task list
// and check its When clauses against commonExtraVars' keys without driving
// an actual playbook run.
func (p *Python) installTasks(pkg task.PackageSpec) []ansible.Task {
	return []ansible.Task{
		{
			Name:   "install python package",
			Module: "package",
			Args: map[string]any{
				"name":  fmt.Sprintf("python%s", pkg.Version),
				"state": "present",
			},
			When: "source == 'repository'",
		},
		{
			Name:   "build python from source archive",
			Module: "unarchive",
			Args: map[string]any{
				"src":        "{{ source_path }}",
				"dest":       "{{ install_path }}",
				"remote_src": false,
			},
			When: "source != 'repository'",
		},
		{
			Name:   "ensure pip is present",
			Module: "package",
			Args: map[string]any{
				"name":  "python3-pip",
				"state": "present",
			},
		},
	}
}

func (p *Python) PostConfig(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (StepResult, error) {
	return StepResult{Status: "success", Message: "post-configuration handled by playbook"}, nil
}

func (p *Python) Verify(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (StepResult, error) {
	binary := pythonBinary(pkg)
	res, err := p.probe(ctx, host, pythonVersionCommand(pkg), false)
	if err != nil {
		return StepResult{}, newInstallError(p.Name(), "verification command failed", err)
	}
	if res.ExitCode != 0 {
		return StepResult{}, newInstallError(p.Name(), fmt.Sprintf("%s not found after installation", binary), nil)
	}

	version := strings.TrimSpace(res.Stdout + res.Stderr)
	if !versionMatches(version, pkg.Version) {
		return StepResult{}, newInstallError(p.Name(), fmt.Sprintf("%s reports %q, expected version %s", binary, version, pkg.Version), nil)
	}

	details := map[string]string{"python_version": version}
	pipCmd := fmt.Sprintf("%s -m pip --version", sshexec.ShellQuote(binary))
	if pipRes, err := p.probe(ctx, host, pipCmd, false); err == nil && pipRes.ExitCode == 0 {
		details["pip_version"] = strings.TrimSpace(pipRes.Stdout)
	}

	return StepResult{Status: "success", Message: "python verified", Details: details}, nil
}

// pythonBinary is the interpreter path the package's own install_path
// governs, per the installers' convention of verifying the binary that was
// actually just installed rather than whatever "python3" resolves to on
// the system PATH.
func pythonBinary(pkg task.PackageSpec) string {
	return fmt.Sprintf("%s/bin/python%s", strings.TrimRight(pkg.InstallPath, "/"), majorMinor(pkg.Version))
}

func pythonVersionCommand(pkg task.PackageSpec) string {
	return fmt.Sprintf("%s --version", sshexec.ShellQuote(pythonBinary(pkg)))
}

// majorMinor extracts "X.Y" from a version string like "3.11.4"; for a
// bare major version like "3" it returns that unchanged.
func majorMinor(version string) string {
	parts := strings.Split(version, ".")
	switch {
	case len(parts) >= 2:
		return parts[0] + "." + parts[1]
	case len(parts) == 1:
		return parts[0]
	default:
		return version
	}
}
