package installer

import (
	"testing"

	"hostfleet/pkg/task"
)

func TestPythonInstallTasksWhenClausesMatchExtraVars(t *testing.T) {
	pkg := task.PackageSpec{Name: "python", Version: "3.11.4", InstallPath: "/opt/python3.11", Source: task.SourceURL, SourcePath: "https://example.com/python.tar.gz"}
	p := &Python{}
	assertWhenVarsDefined(t, p.installTasks(pkg), commonExtraVars(pkg))
}

func TestPythonSupportsVersion(t *testing.T) {
	p := &Python{}
	cases := map[string]bool{
		"3.11.4": true, "3.9": true, "3": true, "2.7": true, "2.7.18": true,
		"2.6": false, "": false,
	}
	for version, want := range cases {
		if got := p.SupportsVersion(version); got != want {
			t.Errorf("SupportsVersion(%q) = %v, want %v", version, got, want)
		}
	}
}

func TestPythonBinaryAndVersionCommand(t *testing.T) {
	pkg := task.PackageSpec{InstallPath: "/opt/python3.11/", Version: "3.11.4"}
	if got := pythonBinary(pkg); got != "/opt/python3.11/bin/python3.11" {
		t.Fatalf("pythonBinary() = %q", got)
	}
	if got := pythonVersionCommand(pkg); got != "'/opt/python3.11/bin/python3.11' --version" {
		t.Fatalf("pythonVersionCommand() = %q", got)
	}
}

func TestMajorMinor(t *testing.T) {
	cases := map[string]string{
		"3.11.4": "3.11",
		"3.11":   "3.11",
		"3":      "3",
		"":       "",
	}
	for in, want := range cases {
		if got := majorMinor(in); got != want {
			t.Errorf("majorMinor(%q) = %q, want %q", in, got, want)
		}
	}
}
