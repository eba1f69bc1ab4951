package installer

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"hostfleet/pkg/ansible"
	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

// Zookeeper installs Apache Zookeeper through an in-memory playbook built
// from installTasks. It depends
// on Java already being present, mirroring the original installer's
// dependency probe.
type Zookeeper struct {
	base
}

func NewZookeeper(pool *sshexec.Pool, exec *ansible.Executor, dryRun bool) *Zookeeper {
	return &Zookeeper{base: newBase(pool, exec, dryRun)}
}

func (z *Zookeeper) Name() string { return "zookeeper" }

// SupportsVersion accepts the three Zookeeper minor lines 3.6, 3.7 and 3.8.
func (z *Zookeeper) SupportsVersion(version string) bool {
	switch majorMinor(version) {
	case "3.6", "3.7", "3.8":
		return true
	default:
		return false
	}
}

func (z *Zookeeper) PreCheck(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (StepResult, error) {
	details := map[string]string{}

	binCheck := fmt.Sprintf("test -f %s/bin/zkServer.sh && echo installed", sshexec.ShellQuote(pkg.InstallPath))
	installedRes, _ := z.probe(ctx, host, binCheck, true)
	if installedRes != nil && strings.Contains(installedRes.Stdout, "installed") {
		verRes, _ := z.probe(ctx, host, fmt.Sprintf("%s/bin/zkServer.sh version", sshexec.ShellQuote(pkg.InstallPath)), true)
		if verRes != nil && versionMatches(verRes.Stdout, pkg.Version) {
			details["zookeeper_version"] = firstLine(verRes.Stdout)
			return StepResult{
				Status:  "skipped",
				Message: fmt.Sprintf("zookeeper already installed and matches version %s", pkg.Version),
				Details: details,
			}, nil
		}
	}

	javaRes, _ := z.probe(ctx, host, "java -version 2>&1", false)
	javaInstalled := javaRes != nil && javaRes.ExitCode == 0
	details["java_installed"] = fmt.Sprintf("%v", javaInstalled)
	if !javaInstalled {
		return StepResult{}, newInstallError(z.Name(), "java is required but not installed", nil)
	}

	availMB, err := z.availableDiskMB(ctx, host, pkg.InstallPath)
	if err != nil {
		return StepResult{}, newInstallError(z.Name(), "could not determine available disk space", err)
	}
	if availMB < 200 {
		return StepResult{}, newInstallError(z.Name(), fmt.Sprintf("insufficient disk space: %dMB available, 200MB required", availMB), nil)
	}
	details["available_disk_mb"] = fmt.Sprintf("%d", availMB)

	return StepResult{Status: "success", Message: "pre-check passed", Details: details}, nil
}

func (z *Zookeeper) Install(ctx context.Context, host task.HostSpec, pkg task.PackageSpec, onEvent ansible.EventHandler) (StepResult, error) {
	vars := commonExtraVars(pkg)
	vars["zk_data_dir"] = configString(pkg, "data_dir", "/var/lib/zookeeper")

	result, err := z.runInstallPlaybook(ctx, host, pkg, "install-zookeeper", z.installTasks(pkg), vars, onEvent)
	if err != nil {
		return StepResult{}, newInstallError(z.Name(), "playbook execution failed", err)
	}
	if !result.Success {
		return StepResult{}, newInstallError(z.Name(), fmt.Sprintf("playbook reported failures: %+v", result.Stats), nil)
	}
	return StepResult{Status: "success", Message: "zookeeper installed via playbook"}, nil
}

// installTasks is split out from Install so tests can render the task list
// and check its When clauses against commonExtraVars' keys without driving
// an actual playbook run.
func (z *Zookeeper) installTasks(pkg task.PackageSpec) []ansible.Task {
	return []ansible.Task{
		{
			Name:   "create zookeeper data directory",
			Module: "file",
			Args: map[string]any{
				"path":  "{{ zk_data_dir }}",
				"state": "directory",
				"mode":  "0755",
			},
		},
		{
			Name:   "unpack zookeeper archive",
			Module: "unarchive",
			Args: map[string]any{
				"src":        "{{ source_path }}",
				"dest":       "{{ install_path }}",
				"remote_src": false,
			},
			When: "source != 'repository'",
		},
		{
			// No templates/ directory is shipped alongside the generated
			// playbook (runInstallPlaybook writes only playbook.yml and
			// inventory.ini under the run directory), so zoo.cfg is built in
			// Go and copied verbatim rather than rendered from a .j2 source.
			Name:   "write zoo.cfg",
			Module: "copy",
			Args: map[string]any{
				"dest":    "{{ install_path }}/conf/zoo.cfg",
				"content": renderZooCfg(pkg),
				"mode":    "0644",
			},
		},
	}
}

func (z *Zookeeper) PostConfig(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (StepResult, error) {
	return StepResult{Status: "success", Message: "post-configuration handled by playbook"}, nil
}

func (z *Zookeeper) Verify(ctx context.Context, host task.HostSpec, pkg task.PackageSpec) (StepResult, error) {
	check := fmt.Sprintf("test -f %s/bin/zkServer.sh && echo found", sshexec.ShellQuote(pkg.InstallPath))
	res, err := z.probe(ctx, host, check, true)
	if err != nil {
		return StepResult{}, newInstallError(z.Name(), "verification command failed", err)
	}
	if !strings.Contains(res.Stdout, "found") {
		return StepResult{}, newInstallError(z.Name(), "zookeeper binaries not found after installation", nil)
	}

	details := map[string]string{}
	verRes, err := z.probe(ctx, host, fmt.Sprintf("%s/bin/zkServer.sh version", sshexec.ShellQuote(pkg.InstallPath)), true)
	if err == nil && verRes.ExitCode == 0 {
		details["version_info"] = firstLine(verRes.Stdout)
	} else {
		details["version_info"] = "version info not available"
	}

	return StepResult{Status: "success", Message: "zookeeper verified", Details: details}, nil
}

func configString(pkg task.PackageSpec, key, def string) string {
	v, ok := pkg.Config[key]
	if !ok {
		return def
	}
	return fmt.Sprintf("%v", v)
}

// renderZooCfg builds the zoo.cfg file content for pkg: the scalar settings
// from pkg.Config, followed by one server.N line per ensemble member. A
// single-node install with no server.N keys in pkg.Config gets a zoo.cfg
// with no server lines at all, which zkServer.sh treats as standalone mode.
func renderZooCfg(pkg task.PackageSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tickTime=%s\n", configString(pkg, "tick_time", "2000"))
	fmt.Fprintf(&b, "dataDir=%s\n", configString(pkg, "data_dir", "/var/lib/zookeeper"))
	fmt.Fprintf(&b, "clientPort=%s\n", configString(pkg, "client_port", "2181"))
	fmt.Fprintf(&b, "initLimit=%s\n", configString(pkg, "init_limit", "10"))
	fmt.Fprintf(&b, "syncLimit=%s\n", configString(pkg, "sync_limit", "5"))
	for _, line := range ensembleServerLines(pkg) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

var serverKeyPattern = regexp.MustCompile(`^server\.(\d+)$`)

// ensembleServerLines collects the "server.N" = "host:peerPort:leaderPort"
// entries out of pkg.Config and renders them as "server.N=host:peerPort:leaderPort"
// lines, ordered by N, for renderZooCfg to append to zoo.cfg. A single-node
// install with no server.N keys returns nil.
func ensembleServerLines(pkg task.PackageSpec) []string {
	type entry struct {
		n     int
		value string
	}
	var entries []entry
	for key, v := range pkg.Config {
		m := serverKeyPattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		entries = append(entries, entry{n: n, value: fmt.Sprintf("server.%d=%v", n, v)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].n < entries[j].n })

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.value
	}
	return lines
}
