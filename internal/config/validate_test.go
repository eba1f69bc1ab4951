package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeKey(t *testing.T, dir string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "id_rsa")
	if err := os.WriteFile(path, []byte("fake key"), mode); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path
}

func validDoc(t *testing.T) *Document {
	t.Helper()
	dir := t.TempDir()
	key := writeKey(t, dir, 0o600)
	doc := &Document{
		General: GeneralDoc{DataDir: filepath.Join(dir, "data"), MaxConcurrentNodes: 4},
		Log:     LogDoc{Dir: filepath.Join(dir, "log"), Level: "INFO"},
		Nodes: []NodeDoc{
			{
				Name: "db1", Host: "10.0.0.1", Port: 22,
				OwnerUser: "deploy", OwnerKey: key,
				SuperUser: "root", SuperPass: "s3cret",
				Install: []SoftwareDoc{
					{Name: "java", Version: "17", InstallPath: "/opt/java", Source: "repository"},
				},
			},
		},
	}
	return doc
}

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	doc := validDoc(t)
	if errs := Validate(doc); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateRejectsEmptyNodes(t *testing.T) {
	doc := validDoc(t)
	doc.Nodes = nil
	errs := Validate(doc)
	if !containsSubstring(errs, "at least one node is required") {
		t.Fatalf("expected empty-nodes error, got %v", errs)
	}
}

func TestValidateRejectsDuplicateNodeNames(t *testing.T) {
	doc := validDoc(t)
	doc.Nodes = append(doc.Nodes, doc.Nodes[0])
	errs := Validate(doc)
	if !containsSubstring(errs, "duplicate node name") {
		t.Fatalf("expected duplicate name error, got %v", errs)
	}
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	doc := validDoc(t)
	doc.Nodes[0].Port = 70000
	errs := Validate(doc)
	if !containsSubstring(errs, "out of range") {
		t.Fatalf("expected port range error, got %v", errs)
	}
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	doc := validDoc(t)
	doc.Nodes[0].OwnerKey = ""
	errs := Validate(doc)
	if !containsSubstring(errs, "requires either a password or a key path") {
		t.Fatalf("expected missing-credential error, got %v", errs)
	}
}

func TestValidateRejectsOverlyPermissiveKey(t *testing.T) {
	doc := validDoc(t)
	dir := t.TempDir()
	key := writeKey(t, dir, 0o644)
	doc.Nodes[0].OwnerKey = key
	errs := Validate(doc)
	if !containsSubstring(errs, "overly permissive mode") {
		t.Fatalf("expected permissive-key error, got %v", errs)
	}
}

func TestValidateRejectsMissingKeyFile(t *testing.T) {
	doc := validDoc(t)
	doc.Nodes[0].OwnerKey = filepath.Join(t.TempDir(), "does-not-exist")
	errs := Validate(doc)
	if len(errs) == 0 {
		t.Fatal("expected an error for missing key file")
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	doc := validDoc(t)
	doc.Log.Level = "VERBOSE"
	errs := Validate(doc)
	if !containsSubstring(errs, "log.level") {
		t.Fatalf("expected log level error, got %v", errs)
	}
}

func TestValidateRejectsInvalidSource(t *testing.T) {
	doc := validDoc(t)
	doc.Nodes[0].Install[0].Source = "ftp"
	errs := Validate(doc)
	if !containsSubstring(errs, "must be one of repository, local, url") {
		t.Fatalf("expected invalid source error, got %v", errs)
	}
}

func TestValidateRequiresSourcePathForLocalSource(t *testing.T) {
	doc := validDoc(t)
	doc.Nodes[0].Install[0].Source = "local"
	doc.Nodes[0].Install[0].SourcePath = ""
	errs := Validate(doc)
	if !containsSubstring(errs, "source_path is required") {
		t.Fatalf("expected source_path error, got %v", errs)
	}
}

func TestValidateRejectsEmptyInstallList(t *testing.T) {
	doc := validDoc(t)
	doc.Nodes[0].Install = nil
	errs := Validate(doc)
	if !containsSubstring(errs, "install list is empty") {
		t.Fatalf("expected empty install list error, got %v", errs)
	}
}

func containsSubstring(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}
