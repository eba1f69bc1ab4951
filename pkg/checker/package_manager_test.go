package checker

import (
	"testing"

	"hostfleet/pkg/task"
)

func TestPackageManagerResultFoundAlwaysPasses(t *testing.T) {
	r := packageManagerResult("apt-get", task.SourceRepository)
	if !r.Passed || r.Level != LevelInfo {
		t.Fatalf("expected passing info result, got %+v", r)
	}
}

func TestPackageManagerResultMissingEscalatesForRepository(t *testing.T) {
	r := packageManagerResult("", task.SourceRepository)
	if r.Passed || r.Level != LevelError {
		t.Fatalf("expected error-level failure for repository source, got %+v", r)
	}
}

func TestPackageManagerResultMissingWarnsForLocal(t *testing.T) {
	r := packageManagerResult("", task.SourceLocal)
	if r.Passed || r.Level != LevelWarning {
		t.Fatalf("expected warning-level failure for local source, got %+v", r)
	}
}

func TestHasErrors(t *testing.T) {
	results := []Result{
		{Name: "a", Level: LevelInfo, Passed: true},
		{Name: "b", Level: LevelWarning, Passed: false},
	}
	if HasErrors(results) {
		t.Fatal("warnings alone should not count as errors")
	}

	results = append(results, Result{Name: "c", Level: LevelError, Passed: false})
	if !HasErrors(results) {
		t.Fatal("expected an unpassed error-level result to trip HasErrors")
	}
}
