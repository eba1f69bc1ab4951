package installer

import (
	"context"
	"fmt"
	"strings"

	"hostfleet/pkg/ansible"
	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

// Java installs a JDK through an in-memory playbook built from installTasks.
type Java struct {
	base
}

// NewJava creates a Java installer backed by pool for probes and exec for
// the actual playbook run. dryRun maps onto ansible --check for Install.
func NewJava(pool *sshexec.Pool, exec *ansible.Executor, dryRun bool) *Java {
	return &Java{base: newBase(pool, exec, dryRun)}
}

func (j *Java) Name() string { return "java" }

// SupportsVersion accepts the three LTS major versions the install
// playbook packages for: 8, 11, 17 (also accepting the legacy "1.8"
// spelling of Java 8).
func (j *Java) SupportsVersion(version string) bool {
	switch javaMajor(version) {
	case "8", "11", "17":
		return true
	default:
		return false
	}
}

func javaMajor(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) == 0 {
		return version
	}
	if parts[0] == "1" && len(parts) > 1 {
		return parts[1]
	}
	return parts[0]
}

// PreCheck probes for an existing Java install, required disk space, and
// whether the declared version is already satisfied.
func (j *Java) PreCheck(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (StepResult, error) {
	details := map[string]string{}

	verRes, _ := j.probe(ctx, host, "java -version 2>&1", false)
	installed := verRes != nil && verRes.ExitCode == 0
	if installed {
		details["java_version"] = firstLine(verRes.Stdout + verRes.Stderr)
		if versionMatches(details["java_version"], pkg.Version) {
			return StepResult{
				Status:  "skipped",
				Message: fmt.Sprintf("java already installed and matches version %s", pkg.Version),
				Details: details,
			}, nil
		}
	}

	availMB, err := j.availableDiskMB(ctx, host, pkg.InstallPath)
	if err != nil {
		return StepResult{}, newInstallError(j.Name(), "could not determine available disk space", err)
	}
	if availMB < 500 {
		return StepResult{}, newInstallError(j.Name(), fmt.Sprintf("insufficient disk space: %dMB available, 500MB required", availMB), nil)
	}
	details["available_disk_mb"] = fmt.Sprintf("%d", availMB)

	return StepResult{Status: "success", Message: "pre-check passed", Details: details}, nil
}

func (j *Java) Install(ctx context.Context, host task.HostSpec, pkg task.PackageSpec, onEvent ansible.EventHandler) (StepResult, error) {
	vars := commonExtraVars(pkg)
	vars["java_add_to_path"] = "true"

	result, err := j.runInstallPlaybook(ctx, host, pkg, "install-java", j.installTasks(pkg), vars, onEvent)
	if err != nil {
		return StepResult{}, newInstallError(j.Name(), "playbook execution failed", err)
	}
	if !result.Success {
		return StepResult{}, newInstallError(j.Name(), fmt.Sprintf("playbook reported failures: %+v", result.Stats), nil)
	}
	return StepResult{Status: "success", Message: "java installed via playbook"}, nil
}

// installTasks is split out from Install so tests can render the task list
// and check its When clauses against commonExtraVars' keys without driving
// an actual playbook run.
func (j *Java) installTasks(pkg task.PackageSpec) []ansible.Task {
	return []ansible.Task{
		{
			Name:   "install java",
			Module: "package",
			Args: map[string]any{
				"name":  fmt.Sprintf("openjdk-%s-jdk", pkg.Version),
				"state": "present",
			},
			When: "source == 'repository'",
		},
		{
			Name:   "unpack java archive",
			Module: "unarchive",
			Args: map[string]any{
				"src":        "{{ source_path }}",
				"dest":       "{{ install_path }}",
				"remote_src": false,
			},
			When: "source != 'repository'",
		},
	}
}

// PostConfig exports JAVA_HOME into /etc/profile.d only when the package's
// config explicitly opts in; the default is to leave the environment alone.
func (j *Java) PostConfig(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (StepResult, error) {
	setHome, _ := pkg.Config["set_java_home"].(bool)
	if !setHome {
		return StepResult{Status: "success", Message: "set_java_home not requested, skipping"}, nil
	}

	script := fmt.Sprintf(
		"echo 'export JAVA_HOME=%s' > /etc/profile.d/java_home.sh && chmod 644 /etc/profile.d/java_home.sh",
		pkg.InstallPath,
	)
	res, err := j.probe(ctx, host, script, true)
	if err != nil {
		return StepResult{}, newInstallError(j.Name(), "failed to export JAVA_HOME", err)
	}
	if res.ExitCode != 0 {
		return StepResult{}, newInstallError(j.Name(), fmt.Sprintf("failed to export JAVA_HOME: %s", res.Stderr), nil)
	}
	return StepResult{Status: "success", Message: "JAVA_HOME exported"}, nil
}

func (j *Java) Verify(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (StepResult, error) {
	res, err := j.probe(ctx, host, "java -version 2>&1", false)
	if err != nil {
		return StepResult{}, newInstallError(j.Name(), "verification command failed", err)
	}
	if res.ExitCode != 0 {
		return StepResult{}, newInstallError(j.Name(), "java command not found after installation", nil)
	}
	output := firstLine(res.Stdout + res.Stderr)
	if !versionMatches(output, javaMajor(pkg.Version)) {
		return StepResult{}, newInstallError(j.Name(), fmt.Sprintf("installed java %q does not match declared version %s", output, pkg.Version), nil)
	}
	return StepResult{
		Status:  "success",
		Message: "java verified",
		Details: map[string]string{"version_output": output},
	}, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
