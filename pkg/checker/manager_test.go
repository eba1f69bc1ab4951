package checker

import (
	"context"
	"testing"

	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

func fakeChecker(name string, level Level, passed bool) Checker {
	return func(ctx context.Context, pool *sshexec.Pool, host task.HostSpec, pkg task.PackageSpec) Result {
		return Result{Name: name, Level: level, Passed: passed}
	}
}

func TestRunAllPreservesOrderAndRunsEveryChecker(t *testing.T) {
	m := NewManager(
		fakeChecker("a", LevelInfo, true),
		fakeChecker("b", LevelError, false),
		fakeChecker("c", LevelInfo, true),
	)
	results := m.RunAll(context.Background(), nil, task.HostSpec{}, task.PackageSpec{})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, name := range []string{"a", "b", "c"} {
		if results[i].Name != name {
			t.Errorf("index %d: got %q, want %q", i, results[i].Name, name)
		}
	}
}

func TestRunAllContinuesPastAFailure(t *testing.T) {
	m := NewManager(
		fakeChecker("a", LevelError, false),
		fakeChecker("b", LevelInfo, true),
	)
	results := m.RunAll(context.Background(), nil, task.HostSpec{}, task.PackageSpec{})
	if len(results) != 2 {
		t.Fatalf("expected both checkers to run, got %d results", len(results))
	}
}

func TestDefaultReturnsFixedOrder(t *testing.T) {
	checkers := Default()
	if len(checkers) != 7 {
		t.Fatalf("expected 7 checkers, got %d", len(checkers))
	}
}
