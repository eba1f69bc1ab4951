package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hostfleet.yml")
	body := `
nodes:
  - name: db1
    host: 10.0.0.1
    owner_user: deploy
    owner_pass: secret
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.General.DataDir != defaultDataDir {
		t.Fatalf("expected default data dir, got %q", doc.General.DataDir)
	}
	if doc.General.MaxConcurrentNodes != defaultMaxConcurrentNodes {
		t.Fatalf("expected default concurrency, got %d", doc.General.MaxConcurrentNodes)
	}
	if doc.Log.Level != defaultLogLevel {
		t.Fatalf("expected default log level, got %q", doc.Log.Level)
	}
	if len(doc.Nodes) != 1 || doc.Nodes[0].Port != defaultPort {
		t.Fatalf("expected default port on node, got %+v", doc.Nodes)
	}
	if doc.Nodes[0].SuperUser != defaultSuperUser {
		t.Fatalf("expected default super_user, got %q", doc.Nodes[0].SuperUser)
	}
}

func TestLoadCapsMaxConcurrentNodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hostfleet.yml")
	body := `
general:
  max_concurrent_nodes: 50
nodes:
  - name: db1
    host: 10.0.0.1
    owner_user: deploy
    owner_pass: secret
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.General.MaxConcurrentNodes != maxMaxConcurrentNodes {
		t.Fatalf("expected concurrency capped at %d, got %d", maxMaxConcurrentNodes, doc.General.MaxConcurrentNodes)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected error loading a missing file")
	}
}

func TestExpandPathHandlesTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory available: %v", err)
	}
	got := expandPath("~/keys/id_rsa")
	want := filepath.Join(home, "keys/id_rsa")
	if got != want {
		t.Fatalf("expandPath(~/keys/id_rsa) = %q, want %q", got, want)
	}
}
