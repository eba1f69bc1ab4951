package installer

import (
	"regexp"
	"testing"

	"hostfleet/pkg/ansible"
	"hostfleet/pkg/task"
)

var whenVarPattern = regexp.MustCompile(`^(\w+)\s*(==|!=)`)

// assertWhenVarsDefined fails t if any task's When clause references a
// Jinja variable that vars does not carry, the class of bug that made
// java/python/zookeeper's repository-vs-archive branching silently break
// against a real host (undefined-variable errors evaluating "when:").
func assertWhenVarsDefined(t *testing.T, tasks []ansible.Task, vars map[string]string) {
	t.Helper()
	for _, tk := range tasks {
		if tk.When == "" {
			continue
		}
		m := whenVarPattern.FindStringSubmatch(tk.When)
		if m == nil {
			t.Fatalf("task %q: could not parse variable out of When clause %q", tk.Name, tk.When)
		}
		if _, ok := vars[m[1]]; !ok {
			t.Fatalf("task %q: When clause references undefined var %q (vars: %+v)", tk.Name, m[1], vars)
		}
	}
}

func TestVersionMatches(t *testing.T) {
	cases := []struct {
		output, declared string
		want             bool
	}{
		{"openjdk version \"17.0.2\" 2022-01-18", "17", true},
		{"Python 3.11.4", "3.11", true},
		{"Python 3.9.0", "3.11", false},
		{"", "3.11", false},
		{"Python 3.9.0", "", false},
	}
	for _, c := range cases {
		if got := versionMatches(c.output, c.declared); got != c.want {
			t.Errorf("versionMatches(%q, %q) = %v, want %v", c.output, c.declared, got, c.want)
		}
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("one\ntwo\nthree"); got != "one" {
		t.Fatalf("got %q", got)
	}
	if got := firstLine("solo"); got != "solo" {
		t.Fatalf("got %q", got)
	}
}

func TestParentDir(t *testing.T) {
	cases := map[string]string{
		"/opt/java/jdk17": "/opt/java",
		"/opt":            "/",
		"relative":        "/",
	}
	for in, want := range cases {
		if got := parentDir(in); got != want {
			t.Errorf("parentDir(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConfigString(t *testing.T) {
	pkg := task.PackageSpec{Config: map[string]any{"client_port": 2181}}
	if got := configString(pkg, "client_port", "9999"); got != "2181" {
		t.Fatalf("got %q", got)
	}
	if got := configString(pkg, "missing", "default"); got != "default" {
		t.Fatalf("got %q", got)
	}
}

func TestCommonExtraVars(t *testing.T) {
	pkg := task.PackageSpec{
		Name:        "java",
		Version:     "17",
		InstallPath: "/opt/java",
		Source:      task.SourceURL,
		SourcePath:  "https://example.com/jdk.tar.gz",
	}
	vars := commonExtraVars(pkg)
	if vars["version"] != "17" || vars["install_path"] != "/opt/java" || vars["source"] != "url" {
		t.Fatalf("unexpected vars: %+v", vars)
	}
	if vars["source_path"] != pkg.SourcePath {
		t.Fatalf("expected source_path to be carried through, got %+v", vars)
	}
}
